package runner

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reportqa/internal/report"
)

// Run output file names.
const (
	ResultsFile = "results.json"
	ReportFile  = "report.html"
	runIDLayout = "20060102T150405Z"
)

// NewRunID returns an id of the form 20060102T150405Z-<12 hex>.
func NewRunID() (string, error) {
	return newRunID(time.Now(), rand.Reader)
}

func newRunID(now time.Time, random io.Reader) (string, error) {
	suffix := make([]byte, 6)
	if _, err := io.ReadFull(random, suffix); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return now.UTC().Format(runIDLayout) + "-" + hex.EncodeToString(suffix), nil
}

// OutputPaths locates the files of one run under <root>/<run id>.
type OutputPaths struct {
	Root  string
	RunID string
}

// NewOutputPaths validates and constructs output paths metadata.
func NewOutputPaths(root, runID string) (OutputPaths, error) {
	if strings.TrimSpace(root) == "" {
		return OutputPaths{}, fmt.Errorf("output root is empty")
	}
	if strings.TrimSpace(runID) == "" || strings.ContainsAny(runID, `/\`) {
		return OutputPaths{}, fmt.Errorf("invalid run ID %q", runID)
	}
	return OutputPaths{Root: root, RunID: runID}, nil
}

func (o OutputPaths) RunDir() string      { return filepath.Join(o.Root, o.RunID) }
func (o OutputPaths) ResultsPath() string { return filepath.Join(o.RunDir(), ResultsFile) }
func (o OutputPaths) CSVPath() string     { return filepath.Join(o.RunDir(), report.DownloadName) }
func (o OutputPaths) ReportPath() string  { return filepath.Join(o.RunDir(), ReportFile) }

// WriteRunOutputs writes results.json, qa_results.csv and report.html for rep.
func WriteRunOutputs(ctx context.Context, rep report.Report, outputDir string) (OutputPaths, error) {
	paths, err := NewOutputPaths(outputDir, rep.RunID)
	if err != nil {
		return OutputPaths{}, err
	}
	if err := os.MkdirAll(paths.RunDir(), 0o755); err != nil {
		return OutputPaths{}, fmt.Errorf("create output dir: %w", err)
	}

	payload, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return OutputPaths{}, fmt.Errorf("marshal results: %w", err)
	}
	if err := writeFile(paths.ResultsPath(), append(payload, '\n')); err != nil {
		return OutputPaths{}, err
	}

	var csvBuf bytes.Buffer
	if err := report.WriteCSV(&csvBuf, rep); err != nil {
		return OutputPaths{}, fmt.Errorf("render csv: %w", err)
	}
	if err := writeFile(paths.CSVPath(), csvBuf.Bytes()); err != nil {
		return OutputPaths{}, err
	}

	var htmlBuf bytes.Buffer
	if err := report.Render(ctx, &htmlBuf, rep); err != nil {
		return OutputPaths{}, fmt.Errorf("render report: %w", err)
	}
	if err := writeFile(paths.ReportPath(), htmlBuf.Bytes()); err != nil {
		return OutputPaths{}, err
	}
	return paths, nil
}

// LoadResults reads a results.json written by WriteRunOutputs.
func LoadResults(path string) (report.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return report.Report{}, fmt.Errorf("read results: %w", err)
	}
	var rep report.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return report.Report{}, fmt.Errorf("parse results: %w", err)
	}
	return rep, nil
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
