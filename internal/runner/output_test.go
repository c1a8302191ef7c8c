package runner

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"reportqa/internal/categorize"
	"reportqa/internal/report"
	"reportqa/internal/testutil"
)

func sampleRunReport(runID string) report.Report {
	three := 3
	rep := report.Report{
		RunID:          runID,
		Document:       "esg.pdf",
		EmbeddingModel: "text-embedding-3-small",
		LanguageModel:  "gpt-4o",
		StartedAt:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		FinishedAt:     time.Date(2025, 1, 1, 0, 0, 2, 0, time.UTC),
		Rows: []report.Row{
			{Question: "Are emissions disclosed?", Answer: "Yes, on page 3.", SourcePages: []*int{&three}, Label: categorize.Yes},
			{Question: "Is water reported?", Answer: "No.", SourcePages: []*int{}, Label: categorize.No},
		},
	}
	rep.Finalize()
	return rep
}

// TestWriteRunOutputsWritesAllFiles verifies the JSON, CSV and HTML artifacts.
func TestWriteRunOutputsWritesAllFiles(t *testing.T) {
	root := t.TempDir()
	rep := sampleRunReport("20250101T000000Z-abcdefabcdef")

	paths, err := WriteRunOutputs(testutil.Context(t, 0), rep, root)
	if err != nil {
		t.Fatalf("write outputs: %v", err)
	}
	if paths.RunDir() != filepath.Join(root, rep.RunID) {
		t.Fatalf("unexpected run dir %s", paths.RunDir())
	}

	file, err := os.Open(paths.CSVPath())
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer file.Close()
	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if got := strings.Join(records[0], ","); got != "Questions,Response,Relevant_pages,Answer_model" {
		t.Fatalf("unexpected header %q", got)
	}
	if len(records) != 3 || records[1][2] != "[3]" || records[2][3] != "No" {
		t.Fatalf("unexpected records %v", records)
	}

	html, err := os.ReadFile(paths.ReportPath())
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !bytes.Contains(html, []byte("Are emissions disclosed?")) {
		t.Fatalf("report does not list questions")
	}

	loaded, err := LoadResults(paths.ResultsPath())
	if err != nil {
		t.Fatalf("load results: %v", err)
	}
	if loaded.RunID != rep.RunID || len(loaded.Rows) != 2 || loaded.Summary.Labels.Yes != 1 {
		t.Fatalf("unexpected loaded report %+v", loaded)
	}
	if got := report.FormatPages(loaded.Rows[0].SourcePages); got != "[3]" {
		t.Fatalf("unexpected loaded pages %s", got)
	}
}

func TestNewRunIDFormat(t *testing.T) {
	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.FixedZone("CET", 3600))
	id, err := newRunID(now, bytes.NewReader([]byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01}))
	if err != nil {
		t.Fatalf("new run id: %v", err)
	}
	if id != "20250304T040607Z-deadbeef0001" {
		t.Fatalf("unexpected id %q", id)
	}
	if _, err := newRunID(now, bytes.NewReader([]byte{1, 2})); err == nil {
		t.Fatalf("expected error for short random source")
	}
	generated, err := NewRunID()
	if err != nil {
		t.Fatalf("NewRunID: %v", err)
	}
	if !regexp.MustCompile(`^\d{8}T\d{6}Z-[0-9a-f]{12}$`).MatchString(generated) {
		t.Fatalf("unexpected generated id %q", generated)
	}
}

func TestNewOutputPathsValidation(t *testing.T) {
	if _, err := NewOutputPaths("", "run"); err == nil {
		t.Fatalf("expected error for empty root")
	}
	for _, runID := range []string{"", "  ", "a/b", `a\b`} {
		if _, err := NewOutputPaths("out", runID); err == nil {
			t.Fatalf("expected error for run id %q", runID)
		}
	}
}

// TestResolveRunLatest verifies "latest" picks the newest run directory.
func TestResolveRunLatest(t *testing.T) {
	root := t.TempDir()
	ctx := testutil.Context(t, 0)
	for _, id := range []string{"20250101T000000Z-aaaaaaaaaaaa", "20250102T000000Z-bbbbbbbbbbbb"} {
		if _, err := WriteRunOutputs(ctx, sampleRunReport(id), root); err != nil {
			t.Fatalf("write outputs: %v", err)
		}
	}
	if err := os.MkdirAll(filepath.Join(root, "20991231T000000Z-empty"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	rep, paths, err := ResolveRun(root, LatestRef)
	if err != nil {
		t.Fatalf("resolve latest: %v", err)
	}
	if rep.RunID != "20250102T000000Z-bbbbbbbbbbbb" || paths.RunID != rep.RunID {
		t.Fatalf("unexpected latest run %q", rep.RunID)
	}

	rep, _, err = ResolveRun(root, "20250101T000000Z-aaaaaaaaaaaa")
	if err != nil {
		t.Fatalf("resolve by id: %v", err)
	}
	if rep.RunID != "20250101T000000Z-aaaaaaaaaaaa" {
		t.Fatalf("unexpected run %q", rep.RunID)
	}
	if _, _, err := ResolveRun(root, "missing"); err == nil {
		t.Fatalf("expected error for unknown run")
	}
	if _, _, err := ResolveRun(t.TempDir(), LatestRef); err == nil {
		t.Fatalf("expected error when no runs exist")
	}
}
