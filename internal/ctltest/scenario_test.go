package ctltest

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

func TestScenarios(t *testing.T) {
	scenarios, err := LoadDir("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios, "no scenario files found")

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			r := NewRunner(t)
			res := r.Run(s)
			s.Check(t, res)
			if s.WantErr != "" {
				return
			}
			g := goldie.New(t,
				goldie.WithFixtureDir("testdata/golden"),
				goldie.WithNameSuffix(".golden"),
			)
			g.Assert(t, s.Name, []byte(res.Stdout))
		})
	}
}
