// Package config loads YAML configuration files with environment variable
// expansion, strict field checking, and per-section validation.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// EnvFile names the environment variable that points at the config file.
const EnvFile = "APP_CONFIG_FILE"

// DefaultPath is used when neither a flag nor EnvFile names a file.
const DefaultPath = "config/config.yaml"

// Validator is an interface for configuration validation.
type Validator interface {
	Validate() error
}

// Section is one top-level YAML block and its validator.
type Section struct {
	Name string
	Validator
}

// SectionError reports which top-level block failed validation.
type SectionError struct {
	Section string
	Err     error
}

func (e *SectionError) Error() string {
	return fmt.Sprintf("section %q: %v", e.Section, e.Err)
}

func (e *SectionError) Unwrap() error { return e.Err }

// ValidateSections validates sections in order and stops at the first
// failure, wrapping it in a SectionError.
func ValidateSections(sections ...Section) error {
	for _, s := range sections {
		if s.Validator == nil {
			continue
		}
		if err := s.Validate(); err != nil {
			return &SectionError{Section: s.Name, Err: err}
		}
	}
	return nil
}

// Resolve picks the config file: an explicit path, then EnvFile, then DefaultPath.
func Resolve(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv(EnvFile); env != "" {
		return env
	}
	return DefaultPath
}

// Load reads filename, expands ${VAR} references, decodes it into target
// and runs target's Validate when it has one. Unknown keys are rejected so
// a misspelt option does not silently fall back to its default. An empty
// file leaves target unchanged apart from validation.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	expandedData := os.ExpandEnv(string(data))

	dec := yaml.NewDecoder(bytes.NewReader([]byte(expandedData)))
	dec.KnownFields(true)
	if err := dec.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}

	if validator, ok := any(target).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}

	return nil
}
