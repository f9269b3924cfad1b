package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/meshctl/internal/ctl"
	"github.com/roach88/meshctl/internal/table"
)

func TestOnelineFold(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", "\n"},
		{"single line keeps one newline", "up\n", "up\n"},
		{"interior newlines escape", "a\nb\nc\n", `a\nb\nc` + "\n"},
		{"only final newline is dropped", "a\n\n", `a\n` + "\n"},
		{"backslashes double", `a\b` + "\n", `a\\b` + "\n"},
		{"backslash before newline", "a\\\nb\n", `a\\\nb` + "\n"},
		{"no trailing newline", "bare", "bare\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, onelineFold(tt.in))
		})
	}
}

func TestDispatch_OrderAndModes(t *testing.T) {
	first := &ctl.Command{Syntax: &ctl.Syntax{Name: "a"}}
	first.Output.WriteString("one\ntwo\n")
	second := &ctl.Command{Syntax: &ctl.Syntax{Name: "b"}}
	second.Output.WriteString("three\n")

	var raw bytes.Buffer
	require.NoError(t, Dispatch(&raw, []*ctl.Command{first, second}, table.StyleList, false))
	assert.Equal(t, "one\ntwo\nthree\n", raw.String())

	var folded bytes.Buffer
	require.NoError(t, Dispatch(&folded, []*ctl.Command{first, second}, table.StyleList, true))
	assert.Equal(t, "one\\ntwo\nthree\n", folded.String())
}

func TestDispatch_PrefersTableOverText(t *testing.T) {
	cmd := &ctl.Command{Syntax: &ctl.Syntax{Name: "list"}}
	tab := table.New("name")
	tab.AddRow("sw0")
	cmd.Table = tab
	cmd.Output.WriteString("ignored")

	var buf bytes.Buffer
	require.NoError(t, Dispatch(&buf, []*ctl.Command{cmd}, table.StyleList, false))
	assert.Equal(t, "name : sw0\n", buf.String())
}

func TestPrintCommands(t *testing.T) {
	reg := ctl.NewRegistry()
	reg.Register(&ctl.Syntax{Name: "thing-list", MinArgs: 0, MaxArgs: 0, Mode: ctl.ReadOnly})
	reg.Register(&ctl.Syntax{
		Name: "thing-add", MinArgs: 1, MaxArgs: 1, Usage: "NAME",
		Options: []string{"--may-exist"},
		Mode:    ctl.ReadWrite,
	})

	var buf bytes.Buffer
	PrintCommands(&buf, reg)
	assert.Equal(t, "thing-add NAME [--may-exist]\nthing-list\n", buf.String())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))

	wrapped := WrapExitError(ExitCommandError, "outer", errors.New("inner"))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
	assert.EqualError(t, wrapped, "outer: inner")
	assert.EqualError(t, errors.Unwrap(wrapped), "inner")
}

func TestDiagnostic(t *testing.T) {
	var buf bytes.Buffer
	Diagnostic(&buf, errors.New("sw0: switch not found"))
	assert.Equal(t, "meshctl: sw0: switch not found\n", buf.String())
}
