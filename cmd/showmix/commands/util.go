package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// loadRequest loads a request from a YAML or JSON file. JSON is a subset of
// YAML, so one parser covers both.
func loadRequest(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// outputResult prints the result as YAML, or JSON when --json is set.
func outputResult(result any) error {
	var (
		data []byte
		err  error
	)
	if outputJSON {
		data, err = json.MarshalIndent(result, "", "  ")
		data = append(data, '\n')
	} else {
		data, err = yaml.Marshal(result)
	}
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

// requireInputFile checks if input file is provided
func requireInputFile() error {
	if inputFile == "" {
		return fmt.Errorf("input file is required, use -f flag")
	}
	return nil
}
