package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"reportqa/internal/config"
	"reportqa/internal/spec"
)

// resolveSpecPath normalizes a config path or finds it from CWD.
func resolveSpecPath(specPath string) (string, error) {
	if strings.TrimSpace(specPath) == "" {
		return config.FindConfigPath("")
	}
	abs, err := filepath.Abs(specPath)
	if err != nil {
		return "", fmt.Errorf("resolve spec path: %w", err)
	}
	return abs, nil
}

// loadedConfig is a validated config plus the directory its relative paths
// resolve against.
type loadedConfig struct {
	cfg     spec.Config
	path    string
	baseDir string
}

func (l loadedConfig) resolve(path string) string {
	return config.ResolvePath(l.baseDir, path)
}

// loadConfig loads an explicit --spec, or searches from CWD. Without an
// explicit path a missing config falls back to the defaults rooted at CWD.
func loadConfig(specPath string) (loadedConfig, error) {
	explicit := strings.TrimSpace(specPath) != ""
	resolved, err := resolveSpecPath(specPath)
	if err != nil {
		if explicit || !errors.Is(err, config.ErrConfigNotFound) {
			return loadedConfig{}, err
		}
		wd, wdErr := os.Getwd()
		if wdErr != nil {
			return loadedConfig{}, fmt.Errorf("get working directory: %w", wdErr)
		}
		return loadedConfig{cfg: config.Default(), baseDir: wd}, nil
	}
	cfg, err := config.Load(resolved)
	if err != nil {
		return loadedConfig{}, err
	}
	return loadedConfig{cfg: cfg, path: resolved, baseDir: config.BaseDirFromConfigPath(resolved)}, nil
}
