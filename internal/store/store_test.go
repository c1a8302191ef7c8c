package store_test

import (
	"errors"
	"testing"
	"time"

	"reportqa/internal/categorize"
	"reportqa/internal/rag"
	"reportqa/internal/report"
	"reportqa/internal/store"
	"reportqa/internal/store/storetesting"
	"reportqa/internal/testutil"
)

func page(n int) *int {
	return &n
}

func sampleReport(runID string) report.Report {
	rep := report.Report{
		RunID:          runID,
		Document:       "esg.pdf",
		DocumentSHA256: "a1b2c3",
		EmbeddingModel: "text-embedding-3-small",
		LanguageModel:  "gpt-4o",
		StartedAt:      time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC),
		FinishedAt:     time.Date(2025, 2, 1, 9, 0, 3, 0, time.UTC),
		Header:         []string{"Id", "Questions"},
		QuestionColumn: 1,
		Rows: []report.Row{
			{Question: "Are emissions disclosed?", Answer: "Yes.", SourcePages: []*int{page(3), page(3), nil}, Label: categorize.Yes, Record: []string{"1", "Are emissions disclosed?"}},
			{Question: "Is water reported?", Answer: "query failed", SourcePages: []*int{}, Label: categorize.NotGiven, Error: "query failed", Record: []string{"2", "Is water reported?"}},
		},
	}
	rep.Finalize()
	return rep
}

// TestSaveAndLoadReport verifies an archived report is rebuilt in row order.
func TestSaveAndLoadReport(t *testing.T) {
	s := storetesting.Open(t)
	ctx := testutil.Context(t, 0)
	rep := sampleReport("20250201T090000Z-000000000001")

	fingerprint, err := s.SaveReport(ctx, rep)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(fingerprint) != 64 {
		t.Fatalf("unexpected fingerprint %q", fingerprint)
	}

	loaded, err := s.LoadReport(ctx, rep.RunID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Document != "esg.pdf" || loaded.DocumentSHA256 != "a1b2c3" || loaded.QuestionColumn != 1 {
		t.Fatalf("unexpected metadata %+v", loaded)
	}
	if !loaded.StartedAt.Equal(rep.StartedAt) || !loaded.FinishedAt.Equal(rep.FinishedAt) {
		t.Fatalf("unexpected timestamps %s %s", loaded.StartedAt, loaded.FinishedAt)
	}
	if len(loaded.Rows) != 2 || loaded.Rows[0].Question != "Are emissions disclosed?" {
		t.Fatalf("unexpected rows %+v", loaded.Rows)
	}
	if got := report.FormatPages(loaded.Rows[0].SourcePages); got != "[3, 3, null]" {
		t.Fatalf("unexpected pages %s", got)
	}
	if loaded.Rows[1].Error != "query failed" || loaded.Rows[1].Label != categorize.NotGiven {
		t.Fatalf("unexpected failed row %+v", loaded.Rows[1])
	}
	if len(loaded.Rows[1].Record) != 2 || loaded.Rows[1].Record[0] != "2" {
		t.Fatalf("unexpected record %v", loaded.Rows[1].Record)
	}
	if loaded.Summary.Failed != 1 || loaded.Summary.Labels.Yes != 1 || loaded.Summary.DurationSeconds != 3 {
		t.Fatalf("unexpected summary %+v", loaded.Summary)
	}
}

// TestSaveReportIsIdempotent verifies repeated archiving neither duplicates rows nor documents.
func TestSaveReportIsIdempotent(t *testing.T) {
	s := storetesting.Open(t)
	ctx := testutil.Context(t, 0)
	rep := sampleReport("20250201T090000Z-000000000001")

	first, err := s.SaveReport(ctx, rep)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	second, err := s.SaveReport(ctx, rep)
	if err != nil {
		t.Fatalf("save again: %v", err)
	}
	if first != second {
		t.Fatalf("fingerprints differ: %s vs %s", first, second)
	}
	other := sampleReport("20250201T090000Z-000000000002")
	if _, err := s.SaveReport(ctx, other); err != nil {
		t.Fatalf("save second run: %v", err)
	}

	for table, want := range map[string]int{"runs": 2, "run_rows": 4, "documents": 1} {
		var got int
		if err := s.DB().QueryRowContext(ctx, "SELECT count(*) FROM "+table).Scan(&got); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if got != want {
			t.Fatalf("expected %d rows in %s, got %d", want, table, got)
		}
	}

	changed := rep
	changed.Rows = append([]report.Row(nil), rep.Rows[:1]...)
	if _, err := s.SaveReport(ctx, changed); !errors.Is(err, store.ErrRunConflict) {
		t.Fatalf("expected ErrRunConflict, got %v", err)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	s := storetesting.Open(t)
	ctx := testutil.Context(t, 0)
	for _, id := range []string{"20250201T090000Z-000000000001", "20250202T090000Z-000000000002", "20250203T090000Z-000000000003"} {
		if _, err := s.SaveReport(ctx, sampleReport(id)); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}
	runs, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "20250203T090000Z-000000000003" {
		t.Fatalf("unexpected runs %+v", runs)
	}
	if runs[0].Summary.Total != 2 || runs[0].Summary.Failed != 1 || runs[0].LanguageModel != "gpt-4o" {
		t.Fatalf("unexpected summary %+v", runs[0])
	}
}

func TestLoadReportUnknownRun(t *testing.T) {
	s := storetesting.Open(t)
	if _, err := s.LoadReport(testutil.Context(t, 0), "missing"); !errors.Is(err, store.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

// TestVectorCacheRoundTrip verifies cached passages come back in chunk order.
func TestVectorCacheRoundTrip(t *testing.T) {
	s := storetesting.Open(t)
	ctx := testutil.Context(t, 0)
	key := rag.CacheKey{DocumentSHA256: "a1b2c3", EmbeddingModel: "nomic-embed-text", ChunkSize: 1000, ChunkOverlap: 100}

	if _, ok, err := s.LookupVectors(ctx, key); err != nil || ok {
		t.Fatalf("expected cache miss, got ok=%v err=%v", ok, err)
	}
	passages := []rag.Passage{
		{Text: "Scope 1 emissions", Page: 3, Vector: []float32{0.5, -1.25, 3}},
		{Text: "Water", Page: 7, Vector: []float32{1, 0}},
	}
	if err := s.StoreVectors(ctx, key, passages); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := s.StoreVectors(ctx, key, passages); err != nil {
		t.Fatalf("store again: %v", err)
	}
	got, ok, err := s.LookupVectors(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected cache hit, got ok=%v err=%v", ok, err)
	}
	if len(got) != 2 || got[0].Text != "Scope 1 emissions" || got[1].Page != 7 {
		t.Fatalf("unexpected passages %+v", got)
	}
	if got[0].Vector[1] != -1.25 || len(got[1].Vector) != 2 {
		t.Fatalf("unexpected vectors %+v", got)
	}

	other := key
	other.ChunkSize = 500
	if _, ok, _ := s.LookupVectors(ctx, other); ok {
		t.Fatalf("different chunk size must miss")
	}
}

func TestFingerprintIgnoresMapOrder(t *testing.T) {
	left, err := store.FingerprintJSON(map[string]any{"a": 1, "b": []any{"x"}})
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	right, err := store.FingerprintJSON(map[string]any{"b": []any{"x"}, "a": 1})
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if left != right {
		t.Fatalf("fingerprints differ")
	}
}
