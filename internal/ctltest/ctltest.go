// Package ctltest runs command batches declared in YAML against a scratch
// database and compares their output against golden files.
//
// Scenarios live in testdata/scenarios; the expected output of each lives
// in testdata/golden. Row ids come from a sequential generator so output
// is byte-identical between runs. Regenerate golden files with:
//
//	go test ./internal/ctltest -update
package ctltest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/meshctl/internal/cli"
	"github.com/roach88/meshctl/internal/ctl"
	"github.com/roach88/meshctl/internal/engine"
	"github.com/roach88/meshctl/internal/nb"
	"github.com/roach88/meshctl/internal/schema"
	"github.com/roach88/meshctl/internal/session"
	"github.com/roach88/meshctl/internal/table"
	"github.com/roach88/meshctl/internal/testutil"
)

// Scenario is one declarative test case: optional setup batches, a main
// batch, and its expected result.
type Scenario struct {
	// Name identifies the scenario and its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario exercises.
	Description string `yaml:"description,omitempty"`

	// Setup lists batches committed before the main one. Each must
	// succeed.
	Setup [][]string `yaml:"setup,omitempty"`

	// Argv is the main batch, already split into arguments.
	Argv []string `yaml:"argv"`

	// DryRun, Oneline and Format mirror the corresponding global flags.
	DryRun  bool   `yaml:"dry_run,omitempty"`
	Oneline bool   `yaml:"oneline,omitempty"`
	Format  string `yaml:"format,omitempty"`

	// WantErr, when set, means the main batch must fail and its message
	// must contain this substring. No golden comparison happens then.
	WantErr string `yaml:"want_err,omitempty"`

	// Warnings lists substrings that must each appear in the warning
	// output of the main batch.
	Warnings []string `yaml:"warnings,omitempty"`
}

// Load reads one scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.Name == "" {
		return nil, fmt.Errorf("%s: scenario has no name", path)
	}
	if len(s.Argv) == 0 {
		return nil, fmt.Errorf("%s: scenario has no argv", path)
	}
	return &s, nil
}

// LoadDir reads every scenario under dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := Load(p)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// Result captures what a batch produced.
type Result struct {
	Stdout   string
	Warnings string
	Err      error
}

// Runner executes scenario batches against one scratch database.
type Runner struct {
	t      *testing.T
	dbPath string
	gen    *testutil.SequentialGenerator
	sch    *schema.Schema
}

// NewRunner creates a runner with a fresh database under t.TempDir().
func NewRunner(t *testing.T) *Runner {
	t.Helper()
	sch, err := schema.Load()
	if err != nil {
		t.Fatalf("loading schema: %v", err)
	}
	return &Runner{
		t:      t,
		dbPath: filepath.Join(t.TempDir(), "mesh.db"),
		gen:    testutil.NewSequentialGenerator(),
		sch:    sch,
	}
}

// RunBatch parses and executes one batch the way the binary would,
// capturing stdout and warnings instead of writing to the process
// streams.
func (r *Runner) RunBatch(argv []string, dryRun, oneline bool, format string) Result {
	r.t.Helper()

	style := table.StyleList
	if format != "" {
		var err error
		style, err = table.ParseStyle(format)
		if err != nil {
			return Result{Err: err}
		}
	}

	cmds, err := ctl.ParseBatch(nb.Commands(), argv)
	if err != nil {
		return Result{Err: err}
	}

	conn, err := session.Open(r.dbPath, r.sch,
		session.WithIDGenerator(r.gen),
		session.WithPollInterval(5*time.Millisecond),
	)
	if err != nil {
		return Result{Err: err}
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var warnings bytes.Buffer
	eng := engine.New(conn,
		engine.WithDryRun(dryRun),
		engine.WithInvocation(ctl.EscapeArgs(argv)),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithWarnf(func(f string, a ...any) {
			fmt.Fprintf(&warnings, f+"\n", a...)
		}),
	)
	if err := eng.Run(ctx, cmds); err != nil {
		return Result{Warnings: warnings.String(), Err: err}
	}

	var out bytes.Buffer
	if err := cli.Dispatch(&out, cmds, style, oneline); err != nil {
		return Result{Warnings: warnings.String(), Err: err}
	}
	return Result{Stdout: out.String(), Warnings: warnings.String()}
}

// Run executes the scenario: setup batches first, then the main batch,
// returning its result. Setup failures abort the test.
func (r *Runner) Run(s *Scenario) Result {
	r.t.Helper()
	for i, batch := range s.Setup {
		res := r.RunBatch(batch, false, false, "")
		if res.Err != nil {
			r.t.Fatalf("scenario %s: setup batch %d failed: %v", s.Name, i, res.Err)
		}
	}
	return r.RunBatch(s.Argv, s.DryRun, s.Oneline, s.Format)
}

// Check validates the result against the scenario's expectations other
// than the golden file.
func (s *Scenario) Check(t *testing.T, res Result) {
	t.Helper()
	if s.WantErr != "" {
		if res.Err == nil {
			t.Fatalf("scenario %s: expected error containing %q, got success", s.Name, s.WantErr)
		}
		if !strings.Contains(res.Err.Error(), s.WantErr) {
			t.Fatalf("scenario %s: error %q does not contain %q", s.Name, res.Err, s.WantErr)
		}
	} else if res.Err != nil {
		t.Fatalf("scenario %s: %v", s.Name, res.Err)
	}
	for _, want := range s.Warnings {
		if !strings.Contains(res.Warnings, want) {
			t.Fatalf("scenario %s: warnings %q do not contain %q", s.Name, res.Warnings, want)
		}
	}
}
