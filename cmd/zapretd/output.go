package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

func normalizeOutput(value string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", outputText:
		return outputText, nil
	case outputJSON:
		return outputJSON, nil
	case outputYAML, "yml":
		return outputYAML, nil
	default:
		return "", exitWith(exitUsage, fmt.Sprintf("unknown output format %q (want text, json or yaml)", value))
	}
}

// writeStructured renders value as JSON or YAML. It reports false for text
// output so the caller prints its own table.
func writeStructured(w io.Writer, format string, value any) (bool, error) {
	switch format {
	case outputJSON:
		data, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return true, err
		}
		_, err = fmt.Fprintln(w, string(data))
		return true, err
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(value); err != nil {
			return true, err
		}
		return true, enc.Close()
	default:
		return false, nil
	}
}
