package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	content := fmt.Sprintf(`[paths]
data_dir = %q
documents_dir = %q
snippets_dir = %q
export_dir = %q
log_dir = %q

[logging]
level = "warn"
`,
		filepath.Join(base, "data"),
		filepath.Join(base, "documents"),
		filepath.Join(base, "snippets"),
		filepath.Join(base, "export"),
		filepath.Join(base, "logs"),
	)
	path := filepath.Join(base, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeCompaniesCSV(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "companies.csv")
	body := "ticker,name,sector\nACME,Acme Corp,Industrials\nGLOBO,Globo Ltd,Energy\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write companies csv: %v", err)
	}
	return path
}

func TestCLIImportTypesAndStatus(t *testing.T) {
	configPath := writeTestConfig(t)
	csvPath := writeCompaniesCSV(t, t.TempDir())

	out, _, err := runCLI(t, configPath, "import", csvPath)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out, "Imported 2 companies") {
		t.Fatalf("unexpected import output: %q", out)
	}

	out, _, err = runCLI(t, configPath, "types", "default")
	if err != nil {
		t.Fatalf("types default: %v", err)
	}
	if !strings.Contains(out, "Configured") {
		t.Fatalf("unexpected types output: %q", out)
	}

	out, _, err = runCLI(t, configPath, "types")
	if err != nil {
		t.Fatalf("types: %v", err)
	}
	if !strings.Contains(out, "sustainability") || !strings.Contains(out, "annual") {
		t.Fatalf("types listing missing defaults: %q", out)
	}

	out, _, err = runCLI(t, configPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "ACME") || !strings.Contains(out, "GLOBO") {
		t.Fatalf("status missing companies: %q", out)
	}
	if !strings.Contains(out, "import✓") {
		t.Fatalf("status should mark the import step valid: %q", out)
	}
}

func TestCLIStatePersistsAcrossInvocations(t *testing.T) {
	configPath := writeTestConfig(t)
	csvPath := writeCompaniesCSV(t, t.TempDir())

	if _, _, err := runCLI(t, configPath, "import", csvPath); err != nil {
		t.Fatalf("import: %v", err)
	}
	if _, _, err := runCLI(t, configPath, "types", "default"); err != nil {
		t.Fatalf("types default: %v", err)
	}

	// A later invocation sees the imported state.
	out, _, err := runCLI(t, configPath, "settings")
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if !strings.Contains(out, "config default") {
		t.Fatalf("unexpected settings output: %q", out)
	}

	if _, _, err := runCLI(t, configPath, "settings", "set", "--model", "test/model"); err != nil {
		t.Fatalf("settings set: %v", err)
	}
	out, _, err = runCLI(t, configPath, "settings")
	if err != nil {
		t.Fatalf("settings after set: %v", err)
	}
	if !strings.Contains(out, "test/model") {
		t.Fatalf("model override not persisted: %q", out)
	}
}

func TestCLINewRunResets(t *testing.T) {
	configPath := writeTestConfig(t)
	csvPath := writeCompaniesCSV(t, t.TempDir())

	if _, _, err := runCLI(t, configPath, "import", csvPath); err != nil {
		t.Fatalf("import: %v", err)
	}
	out, _, err := runCLI(t, configPath, "new")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if !strings.Contains(out, "Started run") {
		t.Fatalf("unexpected new output: %q", out)
	}

	out, _, err = runCLI(t, configPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "No companies imported") {
		t.Fatalf("new run should start empty: %q", out)
	}
}

func TestCLIExportWithNothingAccepted(t *testing.T) {
	configPath := writeTestConfig(t)

	_, _, err := runCLI(t, configPath, "export", "--stdout")
	if err == nil {
		t.Fatal("export with no accepted analyses should fail")
	}
	if !strings.Contains(err.Error(), "nothing to export") {
		t.Fatalf("unexpected export error: %v", err)
	}
}

func TestCLIAdvanceGating(t *testing.T) {
	configPath := writeTestConfig(t)

	// Without imported companies the configure step is unreachable.
	_, _, err := runCLI(t, configPath, "advance", "configure")
	if err == nil {
		t.Fatal("advance past an incomplete step should fail")
	}

	csvPath := writeCompaniesCSV(t, t.TempDir())
	if _, _, err := runCLI(t, configPath, "import", csvPath); err != nil {
		t.Fatalf("import: %v", err)
	}
	if _, _, err := runCLI(t, configPath, "advance", "configure"); err != nil {
		t.Fatalf("advance configure after import: %v", err)
	}
}

func TestCLIConfigValidate(t *testing.T) {
	configPath := writeTestConfig(t)

	out, _, err := runCLI(t, configPath, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "Configuration valid") {
		t.Fatalf("unexpected validate output: %q", out)
	}
}

func TestCLIUnknownStage(t *testing.T) {
	configPath := writeTestConfig(t)

	_, _, err := runCLI(t, configPath, "reject", "bogus", "ACME", "annual_report")
	if err == nil || !strings.Contains(err.Error(), "unknown stage") {
		t.Fatalf("expected unknown stage error, got %v", err)
	}
}
