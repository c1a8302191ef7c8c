package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// yamlScalar encodes value as a single YAML scalar so folder names with
// quotes or colons survive the round trip through Load.
func yamlScalar(value string) string {
	out, err := yaml.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%q", value)
	}
	return strings.TrimSuffix(string(out), "\n")
}

// renderScaffoldConfig builds the scaffold YAML via the compiled template.
func renderScaffoldConfig(outputDir string) (string, error) {
	var builder strings.Builder
	if err := ScaffoldConfig(outputDir).Render(context.Background(), &builder); err != nil {
		return "", err
	}
	return builder.String(), nil
}

// Scaffold writes a starter config to specPath. It refuses to overwrite.
func Scaffold(specPath, outputDir string) error {
	if strings.TrimSpace(specPath) == "" {
		return fmt.Errorf("spec path is required")
	}
	if strings.TrimSpace(outputDir) == "" {
		outputDir = DefaultOutputDir
	}
	if info, err := os.Stat(specPath); err == nil {
		if info.IsDir() {
			return fmt.Errorf("spec path %q is a directory", specPath)
		}
		return fmt.Errorf("spec file already exists at %q", specPath)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat spec file: %w", err)
	}
	content, err := renderScaffoldConfig(outputDir)
	if err != nil {
		return fmt.Errorf("render config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(specPath), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(specPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write spec file: %w", err)
	}
	return nil
}
