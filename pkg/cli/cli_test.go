package cli

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/devicelab-dev/flowpatch/pkg/config"
	"github.com/devicelab-dev/flowpatch/pkg/flow"
	"github.com/devicelab-dev/flowpatch/pkg/report"
)

const scannerFlow = `{
  "properties": {
    "definition": {
      "actions": {
        "Try_Scope": {
          "actions": {
            "Catch_Scope": {
              "actions": {},
              "type": "Scope"
            }
          },
          "runAfter": {},
          "type": "Scope"
        }
      }
    }
  }
}`

func writeFlow(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	err := app.Run(append([]string{"flowpatch"}, args...))
	return out.String(), err
}

func topLevelActions(t *testing.T, path string) map[string]any {
	t.Helper()
	doc, err := flow.ParseFile(path)
	if err != nil {
		t.Fatalf("unexpected error reading %s: %v", path, err)
	}
	actions, err := doc.Actions()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return actions
}

func TestPatch_InPlace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flow.json")
	writeFlow(t, path, scannerFlow)

	out, err := run(t, "--file", path, "--no-color")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	actions := topLevelActions(t, path)
	for _, name := range []string{"Catch_Scope", "Finally_Scope"} {
		if _, ok := actions[name]; !ok {
			t.Errorf("expected top-level %s", name)
		}
	}
	tryActions, err := flow.Object(actions["Try_Scope"].(map[string]any), "actions")
	if err != nil {
		t.Fatal(err)
	}
	if len(tryActions) != 0 {
		t.Errorf("expected empty Try_Scope.actions, got %v", tryActions)
	}

	want := `Flow JSON fixed successfully!
- Removed Catch_Scope from inside Try_Scope
- Added Catch_Scope at top level with runAfter: Try_Scope [Failed, TimedOut]
- Added Get_Error_Details Compose action
- Added Update_Scan_Session_Failed action
- Added Finally_Scope at top level
- Added Check_No_Error condition with Update_Scan_Session_Completed
`
	if out != want {
		t.Errorf("unexpected status output:\n%s", out)
	}
}

func TestPatch_WrittenFileRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flow.json")
	writeFlow(t, path, scannerFlow)

	if _, err := run(t, "--file", path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	// A second run rewrites the same content.
	if _, err := run(t, "--file", path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("expected second run to produce identical file")
	}
	if !strings.HasPrefix(string(first), "{\n  \"properties\"") {
		t.Errorf("expected two-space indented output, got %q", string(first[:20]))
	}
}

func TestPatch_Output(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flow.json")
	fixed := filepath.Join(dir, "fixed", "flow_FIXED.json")
	writeFlow(t, path, scannerFlow)

	if _, err := run(t, "--file", path, "--output", fixed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	original, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(original) != scannerFlow {
		t.Error("expected source flow untouched")
	}
	if _, ok := topLevelActions(t, fixed)["Finally_Scope"]; !ok {
		t.Error("expected Finally_Scope in output file")
	}
}

func TestPatch_DryRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flow.json")
	writeFlow(t, path, scannerFlow)

	out, err := run(t, "--file", path, "--dry-run")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != scannerFlow {
		t.Error("expected dry run to leave the file untouched")
	}
	if !strings.Contains(out, `+ `) || !strings.Contains(out, "Finally_Scope") {
		t.Errorf("expected diff output, got:\n%s", out)
	}
	if !strings.Contains(out, "Dry run") {
		t.Errorf("expected dry run notice, got:\n%s", out)
	}
	if strings.Contains(out, report.Headline) {
		t.Error("dry run must not claim the flow was fixed")
	}
}

func TestPatch_PrintPatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flow.json")
	writeFlow(t, path, scannerFlow)

	out, err := run(t, "--file", path, "--print-patch")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, `"op": "remove"`) {
		t.Errorf("expected remove operation in output, got:\n%s", out)
	}
	if !strings.Contains(out, `"path": "/properties/definition/actions/Finally_Scope"`) {
		t.Errorf("expected Finally_Scope add in output, got:\n%s", out)
	}
}

func TestPatch_Report(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flow.json")
	reportPath := filepath.Join(dir, "summary.json")
	writeFlow(t, path, scannerFlow)

	if _, err := run(t, "--file", path, "--report", reportPath); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatal(err)
	}
	var summary report.Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		t.Fatalf("invalid summary: %v", err)
	}
	if !summary.RemovedNested || !summary.Changed {
		t.Errorf("expected removedNested and changed, got %+v", summary)
	}
	if summary.Output != path {
		t.Errorf("expected output %s, got %s", path, summary.Output)
	}
	if len(summary.Operations) != 3 {
		t.Errorf("expected 3 operations, got %v", summary.Operations)
	}
}

func TestPatch_LogFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flow.json")
	logPath := filepath.Join(dir, "flowpatch.log")
	writeFlow(t, path, scannerFlow)

	if _, err := run(t, "--file", path, "--log-file", logPath); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "remove /properties/definition/actions/Try_Scope/actions/Catch_Scope") {
		t.Errorf("expected operations in log, got %q", data)
	}
}

func TestPatch_MissingFile(t *testing.T) {
	_, err := run(t, "--file", filepath.Join(t.TempDir(), "missing.json"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestPatch_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flow.json")
	writeFlow(t, path, `{"properties": `)

	_, err := run(t, "--file", path)
	var parseErr *flow.ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("expected *flow.ParseError, got %v", err)
	}
}

func TestPatch_MissingTryScope(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flow.json")
	content := `{"properties":{"definition":{"actions":{}}}}`
	writeFlow(t, path, content)

	_, err := run(t, "--file", path)
	if !errors.Is(err, flow.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != content {
		t.Error("expected file untouched on failure")
	}
}

func TestPatch_UnexpectedArgument(t *testing.T) {
	_, err := run(t, "flow.json")
	if err == nil || !strings.Contains(err.Error(), "--file") {
		t.Errorf("expected usage error, got %v", err)
	}
}

func TestPatch_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flow.json")
	fixed := filepath.Join(dir, "flow_FIXED.json")
	cfgPath := filepath.Join(dir, "flowpatch.yaml")
	writeFlow(t, path, scannerFlow)
	writeFlow(t, cfgPath, "flow: "+path+"\noutput: "+fixed+"\n")

	if _, err := run(t, "--config", cfgPath); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := topLevelActions(t, fixed)["Catch_Scope"]; !ok {
		t.Error("expected Catch_Scope in configured output")
	}
}

func TestPatch_FlagOverridesConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flow.json")
	cfgPath := filepath.Join(dir, "flowpatch.yaml")
	writeFlow(t, path, scannerFlow)
	writeFlow(t, cfgPath, "flow: "+filepath.Join(dir, "missing.json")+"\n")

	if _, err := run(t, "--config", cfgPath, "--file", path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPatch_DefaultPath(t *testing.T) {
	dir := t.TempDir()
	writeFlow(t, filepath.Join(dir, config.DefaultFlowPath), scannerFlow)

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	out, err := run(t)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out, report.Headline) {
		t.Errorf("expected status lines, got:\n%s", out)
	}
	if _, ok := topLevelActions(t, config.DefaultFlowPath)["Finally_Scope"]; !ok {
		t.Error("expected default flow patched in place")
	}
}

func writeSolution(t *testing.T, path string, entries map[string]string, order []string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := zip.NewWriter(f)
	for _, name := range order {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(entries[name])); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func readEntry(t *testing.T, archive, name string) string {
	t.Helper()
	r, err := zip.OpenReader(archive)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			t.Fatal(err)
		}
		return string(data)
	}
	t.Fatalf("entry %s not found in %s", name, archive)
	return ""
}

func TestRepack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "extracted", "Workflows", "Scanner.json")
	src := filepath.Join(dir, "validate_check.zip")
	dst := filepath.Join(dir, "Scanner_FIXED.zip")
	writeFlow(t, path, scannerFlow)
	writeSolution(t, src, map[string]string{
		"solution.xml":           "<ImportExportXml/>",
		"Workflows/Scanner.json": scannerFlow,
	}, []string{"solution.xml", "Workflows/Scanner.json"})

	out, err := run(t, "--file", path, "repack", "--solution", src, "--solution-output", dst)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Replaced Workflows/Scanner.json") {
		t.Errorf("expected replace notice, got:\n%s", out)
	}

	patched, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := readEntry(t, dst, "Workflows/Scanner.json"); got != string(patched) {
		t.Error("expected archive entry to match the patched flow")
	}
	if got := readEntry(t, dst, "solution.xml"); got != "<ImportExportXml/>" {
		t.Errorf("expected solution.xml unchanged, got %q", got)
	}
	if got := readEntry(t, src, "Workflows/Scanner.json"); got != scannerFlow {
		t.Error("expected source archive untouched")
	}
}

func TestRepack_SkipPatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Scanner.json")
	src := filepath.Join(dir, "in.zip")
	dst := filepath.Join(dir, "out.zip")
	writeFlow(t, path, `{"already":"fixed"}`)
	writeSolution(t, src, map[string]string{"Workflows/Scanner.json": "{}"}, []string{"Workflows/Scanner.json"})

	if _, err := run(t, "--file", path, "repack", "--skip-patch", "--solution", src, "--solution-output", dst); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := readEntry(t, dst, "Workflows/Scanner.json"); got != `{"already":"fixed"}` {
		t.Errorf("expected flow packaged as-is, got %q", got)
	}
}

func TestRepack_CustomEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Scanner.json")
	src := filepath.Join(dir, "in.zip")
	dst := filepath.Join(dir, "out.zip")
	writeFlow(t, path, scannerFlow)
	writeSolution(t, src, map[string]string{"Workflows/Other.json": "{}"}, []string{"Workflows/Other.json"})

	if _, err := run(t, "--file", path, "repack", "--entry", "Workflows/Other.json", "--solution", src, "--solution-output", dst); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := readEntry(t, dst, "Workflows/Other.json"); !strings.Contains(got, "Finally_Scope") {
		t.Errorf("expected patched flow in custom entry, got %q", got)
	}
}

func TestRepack_DryRunRejected(t *testing.T) {
	_, err := run(t, "--dry-run", "repack")
	if err == nil || !strings.Contains(err.Error(), "dry-run") {
		t.Errorf("expected dry-run error, got %v", err)
	}
}
