package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCmd(&out, &errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// --- Command Tests ---

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "tablectl v"+Version+"\n" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestDemo_MemoryBackend(t *testing.T) {
	out, err := run(t, "demo", "--count", "250", "--log-level", "error")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"creating 250 items", "next page with size 250", "loaded 250", "done"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestInsert_PrintsTop(t *testing.T) {
	out, err := run(t, "insert", "P3", "DefaultFirstName", "DefaultLastName", "--log-level", "error")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var person map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &person); err != nil {
		t.Fatalf("expected one JSON document, got %q: %v", out, err)
	}
	if person["Partition"] != "P3" || person["LastName"] != "DefaultLastName" {
		t.Errorf("unexpected person %v", person)
	}
	if id, _ := person["Id"].(string); len(id) != 36 {
		t.Errorf("expected a generated uuid, got %v", person["Id"])
	}
}

func TestSeedAndQuery_BoltBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.db")
	flags := []string{"--backend", "bolt", "--bolt-path", path, "--log-level", "error"}

	out, err := run(t, append([]string{"seed", "MassInsert", "150", "--mode", "insert"}, flags...)...)
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if !strings.Contains(out, "stored 150 persons") {
		t.Errorf("unexpected seed output %q", out)
	}

	out, err = run(t, append([]string{"query", "--partition", "MassInsert", "--paged"}, flags...)...)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if !strings.Contains(out, "loaded 150 persons") {
		t.Errorf("unexpected query output %q", out)
	}

	if _, err := run(t, append([]string{"delete-partition", "MassInsert"}, flags...)...); err != nil {
		t.Fatalf("delete-partition failed: %v", err)
	}

	out, err = run(t, append([]string{"query", "--partition", "MassInsert"}, flags...)...)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if out != "" {
		t.Errorf("expected empty partition after delete, got %q", out)
	}
}

func TestInvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"backend", []string{"query", "--backend", "nope"}},
		{"log level", []string{"query", "--log-level", "loud"}},
		{"log format", []string{"query", "--log-format", "xml"}},
		{"seed mode", []string{"seed", "p", "1", "--mode", "upsert"}},
		{"seed count", []string{"seed", "p", "many"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, tt.args...); err == nil {
				t.Errorf("expected error for %v", tt.args)
			}
		})
	}
}

// --- Config Tests ---

func TestEnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("TABLECTL_TABLE", "People")

	v := viper.New()
	initConfig(v)
	if got := v.GetString("table"); got != "People" {
		t.Errorf("expected table from environment, got %q", got)
	}
}

func TestWrapString(t *testing.T) {
	wrapped := wrapString(strings.Repeat("word ", 30))
	for _, line := range strings.Split(wrapped, "\n") {
		if len(line) > wrap {
			t.Errorf("line exceeds %d characters: %q", wrap, line)
		}
	}
	if wrapString("") != "" {
		t.Error("expected empty string to stay empty")
	}
}
