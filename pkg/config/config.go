// Package config handles configuration for flowpatch.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Default locations, relative to the working directory.
const (
	DefaultFlowPath       = "validate_check_extracted/Workflows/SharePointPermissionScanner-17C3F8FE-0FEC-F011-8407-000D3AE1FF22.json"
	DefaultSolution       = "validate_check.zip"
	DefaultSolutionOutput = "SharePointPermissionScanner_FIXED.zip"
)

// Config represents the workspace configuration (flowpatch.yaml).
type Config struct {
	// Flow file selection
	Flow   string `yaml:"flow"`   // Workflow definition to patch
	Output string `yaml:"output"` // Write here instead of overwriting Flow

	Solution Solution `yaml:"solution"`

	// Output settings
	Report  string `yaml:"report"`  // JSON summary path
	LogFile string `yaml:"logFile"` // Diagnostic log path
	NoColor bool   `yaml:"noColor"`
}

// Solution describes the exported solution archive to rebuild.
type Solution struct {
	Source string `yaml:"source"` // Original exported zip
	Output string `yaml:"output"` // Rebuilt zip
	Entry  string `yaml:"entry"`  // Workflow entry name inside the zip
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Flow: DefaultFlowPath,
		Solution: Solution{
			Source: DefaultSolution,
			Output: DefaultSolutionOutput,
		},
	}
}

// Load loads configuration from a file. Unset fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir looks for flowpatch.yaml or flowpatch.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range []string{"flowpatch.yaml", "flowpatch.yml"} {
		configPath := filepath.Join(dir, name)
		if _, err := os.Stat(configPath); err == nil {
			return Load(configPath)
		}
	}

	// No config file found
	return Default(), nil
}

// OutputPath returns where the patched flow is written.
func (c *Config) OutputPath() string {
	if c.Output != "" {
		return c.Output
	}
	return c.Flow
}
