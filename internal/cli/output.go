package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rileyhilliard/dutctl/internal/errors"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by --format.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// checkFormat rejects formats a command doesn't support.
func checkFormat(format string, allowed ...string) error {
	for _, a := range allowed {
		if format == a {
			return nil
		}
	}
	return errors.New(errors.ErrConfig,
		fmt.Sprintf("Unsupported --format '%s'", format),
		"Use one of: "+strings.Join(allowed, ", "))
}

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeYAML writes v as YAML.
func writeYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// writeStructured writes v as JSON or YAML.
func writeStructured(w io.Writer, format string, v interface{}) error {
	if format == FormatYAML {
		return writeYAML(w, v)
	}
	return writeJSON(w, v)
}
