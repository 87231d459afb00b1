// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "missing.env")))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestRunJSON(t *testing.T) {
	out, _, err := execute(t, "run",
		"--initial", "0.1,0.9",
		"--field", "1 / x",
		"--volume", "sum - 1",
		"--max-iter", "100",
		"--json",
	)
	if err != nil {
		t.Fatal(err)
	}

	var report runReport
	if err = json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("invalid output %q: %v", out, err)
	}

	switch {
	case !report.Converged:
		t.Fatal("not converged")
	case report.RunID == "":
		t.Fatal("missing run id")
	case len(report.Parameters) != 2:
		t.Fatalf("unexpected parameters %v", report.Parameters)
	case math.Abs(report.Parameters[0]-0.5) > 1e-2 || math.Abs(report.Parameters[1]-0.5) > 1e-2:
		t.Fatalf("unexpected parameters %v", report.Parameters)
	case math.Abs(report.ExceededVolume) > 1e-4:
		t.Fatalf("exceeded volume %g", report.ExceededVolume)
	}
}

func TestRunText(t *testing.T) {
	out, logs, err := execute(t, "run",
		"--initial", "0.5,0.5",
		"--field", "i == 0 ? 3 : 1",
		"--volume", "sum - 1",
		"--method", "secant",
		"--log-format", "json",
	)
	switch {
	case err != nil:
		t.Fatal(err)
	case !strings.HasPrefix(out, "converged after"):
		t.Fatalf("unexpected output %q", out)
	case !strings.Contains(out, "x[0] = 0.99"):
		t.Fatalf("largest field not saturated: %q", out)
	case !strings.Contains(logs, `"run_id"`):
		t.Fatalf("run id not logged: %q", logs)
	}
}

func TestRunEnvDefaults(t *testing.T) {
	env := filepath.Join(t.TempDir(), "toptim.env")
	if err := os.WriteFile(env, []byte("TOPTIM_MAX_ITER=1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("TOPTIM_MAX_ITER") })

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"run",
		"--initial", "0.35,0.45",
		"--field", "x",
		"--volume", "sum - 1",
		"--env-file", env,
	})
	err := cmd.ExecuteContext(context.Background())
	if err == nil || !strings.Contains(err.Error(), "max iterations") {
		t.Fatalf("env default not applied: %v", err)
	}
}

func TestRunErrors(t *testing.T) {
	cases := map[string][]string{
		"field":       {"run", "--initial", "0.5", "--field", "x +", "--volume", "sum - 1"},
		"volume":      {"run", "--initial", "0.5", "--field", "x", "--volume", ""},
		"method":      {"run", "--initial", "0.5", "--field", "x", "--volume", "sum - 1", "--method", "brent"},
		"bounds":      {"run", "--initial", "0.5,0.5", "--field", "x", "--volume", "sum - 1", "--lower", "0,0,0"},
		"variable":    {"run", "--initial", "0.5", "--field", "y", "--volume", "sum - 1"},
		"log level":   {"run", "--initial", "0.5", "--field", "x", "--volume", "sum - 1", "--log-level", "trace"},
		"log format":  {"run", "--initial", "0.5", "--field", "x", "--volume", "sum - 1", "--log-format", "xml"},
		"missing arg": {"run", "--initial", "0.5"},
	}
	for name, args := range cases {
		if _, _, err := execute(t, args...); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	switch {
	case err != nil:
		t.Fatal(err)
	case out != "toptim version "+version+"\n":
		t.Fatalf("unexpected output %q", out)
	}
}
