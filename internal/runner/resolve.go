package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"reportqa/internal/report"
)

// LatestRef selects the most recent run in ResolveRun.
const LatestRef = "latest"

// ResolveRun loads results.json for a run id, or for the newest run when ref
// is "latest". Run ids sort chronologically, so newest is the last name.
func ResolveRun(outputDir, ref string) (report.Report, OutputPaths, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return report.Report{}, OutputPaths{}, fmt.Errorf("run ref is required")
	}
	if ref == LatestRef {
		latest, err := latestRunID(outputDir)
		if err != nil {
			return report.Report{}, OutputPaths{}, err
		}
		ref = latest
	}
	paths, err := NewOutputPaths(outputDir, ref)
	if err != nil {
		return report.Report{}, OutputPaths{}, err
	}
	if info, err := os.Stat(paths.RunDir()); err != nil || !info.IsDir() {
		return report.Report{}, OutputPaths{}, fmt.Errorf("run %s not found", ref)
	}
	rep, err := LoadResults(paths.ResultsPath())
	if err != nil {
		return report.Report{}, OutputPaths{}, err
	}
	return rep, paths, nil
}

func latestRunID(outputDir string) (string, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return "", fmt.Errorf("read output dir: %w", err)
	}
	runIDs := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(outputDir, entry.Name(), ResultsFile)); err == nil {
			runIDs = append(runIDs, entry.Name())
		}
	}
	if len(runIDs) == 0 {
		return "", fmt.Errorf("no runs found in %s", outputDir)
	}
	sort.Strings(runIDs)
	return runIDs[len(runIDs)-1], nil
}
