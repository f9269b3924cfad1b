package ctl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *Registry {
	reg := NewRegistry()
	reg.Register(&Syntax{
		Name: "thing-add", MinArgs: 1, MaxArgs: 2,
		Options: []string{"--may-exist", "--id="},
		Mode:    ReadWrite,
	})
	reg.Register(&Syntax{
		Name: "thing-list", MinArgs: 0, MaxArgs: 0,
		Mode: ReadOnly,
	})
	return reg
}

func TestParseBatch_SplitsOnDoubleDash(t *testing.T) {
	cmds, err := ParseBatch(testRegistry(), []string{
		"thing-add", "a", "--", "thing-add", "b", "--", "thing-list",
	})
	require.NoError(t, err)
	require.Len(t, cmds, 3)
	assert.Equal(t, "thing-add", cmds[0].Syntax.Name)
	assert.Equal(t, []string{"a"}, cmds[0].Args)
	assert.Equal(t, []string{"b"}, cmds[1].Args)
	assert.Equal(t, "thing-list", cmds[2].Syntax.Name)
}

func TestParseBatch_LeadingAndEmptyGroupsAreSkipped(t *testing.T) {
	cmds, err := ParseBatch(testRegistry(), []string{"--", "thing-list", "--"})
	require.NoError(t, err)
	require.Len(t, cmds, 1)
}

func TestParseBatch_EmptyBatch(t *testing.T) {
	_, err := ParseBatch(testRegistry(), nil)
	assert.ErrorContains(t, err, "missing command name")
}

func TestParseBatch_UnknownCommand(t *testing.T) {
	_, err := ParseBatch(testRegistry(), []string{"thing-destroy", "a"})
	assert.ErrorContains(t, err, "unknown command 'thing-destroy'")
}

func TestParseCommand_OptionsAnywhereInGroup(t *testing.T) {
	cmds, err := ParseBatch(testRegistry(), []string{"thing-add", "a", "--may-exist"})
	require.NoError(t, err)
	assert.True(t, cmds[0].HasOption("--may-exist"))

	cmds, err = ParseBatch(testRegistry(), []string{"--may-exist", "thing-add", "a"})
	require.NoError(t, err)
	assert.True(t, cmds[0].HasOption("--may-exist"))
}

func TestParseCommand_OptionValues(t *testing.T) {
	cmds, err := ParseBatch(testRegistry(), []string{"--id=@x", "thing-add", "a"})
	require.NoError(t, err)
	v, ok := cmds[0].OptionValue("--id")
	require.True(t, ok)
	assert.Equal(t, "@x", v)

	_, err = ParseBatch(testRegistry(), []string{"--id", "thing-add", "a"})
	assert.ErrorContains(t, err, "requires an argument")

	_, err = ParseBatch(testRegistry(), []string{"--may-exist=yes", "thing-add", "a"})
	assert.ErrorContains(t, err, "does not accept an argument")

	_, err = ParseBatch(testRegistry(), []string{"--bogus", "thing-add", "a"})
	assert.ErrorContains(t, err, "has no '--bogus' option")

	_, err = ParseBatch(testRegistry(), []string{"--may-exist", "--may-exist", "thing-add", "a"})
	assert.ErrorContains(t, err, "specified multiple times")
}

func TestParseCommand_Arity(t *testing.T) {
	_, err := ParseBatch(testRegistry(), []string{"thing-add"})
	assert.ErrorContains(t, err, "requires at least 1")

	_, err = ParseBatch(testRegistry(), []string{"thing-add", "a", "b", "c"})
	assert.ErrorContains(t, err, "takes at most 2")
}

func TestMightWrite(t *testing.T) {
	reg := testRegistry()

	ro, err := ParseBatch(reg, []string{"thing-list"})
	require.NoError(t, err)
	assert.False(t, MightWrite(ro))

	rw, err := ParseBatch(reg, []string{"thing-list", "--", "thing-add", "a"})
	require.NoError(t, err)
	assert.True(t, MightWrite(rw))
}

func TestEscapeArgs(t *testing.T) {
	assert.Equal(t, `thing-add a`, EscapeArgs([]string{"thing-add", "a"}))
	assert.Equal(t, `thing-add "a b" "" "quo\"te"`, EscapeArgs([]string{"thing-add", "a b", "", `quo"te`}))
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	reg := testRegistry()
	assert.Panics(t, func() {
		reg.Register(&Syntax{Name: "thing-add"})
	})
}
