package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	sch, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"port", "rule", "switch"}, sch.TableNames())

	sw, ok := sch.Table("switch")
	require.True(t, ok)
	assert.True(t, sw.Root)
	assert.Equal(t, []string{"name", "ports", "rules"}, sw.ColumnNames())

	ports, ok := sw.Column("ports")
	require.True(t, ok)
	assert.Equal(t, TypeSet, ports.Type)
	assert.Equal(t, "port", ports.Ref)
	assert.Equal(t, RefStrong, ports.Strength)

	port, ok := sch.Table("port")
	require.True(t, ok)
	assert.False(t, port.Root)

	peer, ok := port.Column("peer")
	require.True(t, ok)
	assert.Equal(t, RefWeak, peer.Strength)
	assert.True(t, peer.IsRef())

	name, ok := port.Column("name")
	require.True(t, ok)
	assert.Equal(t, TypeString, name.Type)
	assert.False(t, name.IsRef())
}

func TestDecode_RejectsRefFromNonSetColumn(t *testing.T) {
	_, err := decode(`
tables: {
	a: {
		root: true
		columns: {
			other: {type: "string"}
		}
	}
}
`)
	require.NoError(t, err)

	_, err = decode(`
tables: {
	a: {
		root: true
		columns: {
			other: {type: "string", ref: "a"}
		}
	}
}
`)
	assert.Error(t, err)
}

func TestDecode_RejectsDanglingRefTarget(t *testing.T) {
	_, err := decode(`
tables: {
	a: {
		root: true
		columns: {
			others: {type: "set", ref: "missing", strength: "strong"}
		}
	}
}
`)
	assert.ErrorContains(t, err, "missing")
}

func TestDecode_RefDefaultsToStrong(t *testing.T) {
	sch, err := decode(`
tables: {
	a: {
		root: true
		columns: {
			others: {type: "set", ref: "b"}
		}
	}
	b: {
		columns: {
			name: {type: "string"}
		}
	}
}
`)
	require.NoError(t, err)
	col, ok := sch.Tables["a"].Column("others")
	require.True(t, ok)
	assert.Equal(t, RefStrong, col.Strength)
}
