package handlers

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/imamik/oscp/internal/request"
)

// printYAML writes v as a YAML document.
func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return enc.Close()
}

// report prints a result and turns a failed one into the command's error.
func report(w io.Writer, res request.Result) error {
	if err := printYAML(w, res); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("%s: %s", res.Error.Kind, res.Error.Message)
	}
	return nil
}
