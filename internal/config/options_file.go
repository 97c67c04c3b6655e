package config

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// optionsDocument is the on-disk shape used by settings import/export
type optionsDocument struct {
	Namespace string            `yaml:"namespace"`
	Options   map[string]string `yaml:"options"`
}

// ReadOptionsFile reads a settings document written by WriteOptions
func ReadOptionsFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var doc optionsDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}
	if doc.Namespace != "" && doc.Namespace != SettingsNamespace {
		return nil, fmt.Errorf("settings file is for namespace %q, expected %q", doc.Namespace, SettingsNamespace)
	}
	for key := range doc.Options {
		if !IsKnownOption(key) {
			return nil, fmt.Errorf("unknown option %q", key)
		}
	}
	if doc.Options == nil {
		doc.Options = map[string]string{}
	}
	return doc.Options, nil
}

// WriteOptions writes opts as a YAML settings document
func WriteOptions(w io.Writer, opts map[string]string) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(optionsDocument{Namespace: SettingsNamespace, Options: opts}); err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return enc.Close()
}
