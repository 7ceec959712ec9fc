package config

import (
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/prefabpool/pkg/errors"
)

// Load reads a YAML pool configuration from disk into config. Environment
// references of the form ${VAR} are expanded before parsing, and unknown
// keys are rejected so a misspelled section fails loudly instead of silently
// falling back to defaults.
func Load(path string, config interface{}) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is chosen by the operator
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "read config file")
	}

	dec := yaml.NewDecoder(strings.NewReader(substituteEnvVars(string(data))))
	dec.KnownFields(true)
	if err := dec.Decode(config); err != nil && err != io.EOF {
		return errors.Wrap(err, errors.ErrorTypeConfig, "parse config file")
	}
	return nil
}

// Save writes a configuration to disk as YAML.
func Save(path string, config interface{}) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "marshal config")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "write config file")
	}
	return nil
}

// substituteEnvVars expands ${VAR} references against the process
// environment. Unset variables expand to the empty string; an unterminated
// reference is left as-is for the YAML parser to reject.
func substituteEnvVars(content string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "${")
		if start < 0 {
			break
		}
		end := strings.Index(content[start+2:], "}")
		if end < 0 {
			break
		}
		b.WriteString(content[:start])
		b.WriteString(os.Getenv(content[start+2 : start+2+end]))
		content = content[start+2+end+1:]
	}
	b.WriteString(content)
	return b.String()
}
