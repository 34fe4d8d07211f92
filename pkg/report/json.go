// Package report renders a finished analysis run as JSON for machines
// and Markdown for humans.
package report

import (
	"encoding/json"
	"fmt"
	"os"
)

// RenderJSON renders the run as indented JSON with a trailing newline.
// Timestamps are UTC RFC 3339; key order follows the run struct, so equal
// runs render byte-identically.
func RenderJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("report: marshal: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteJSON renders the run to a file.
func WriteJSON(path string, v any) error {
	data, err := RenderJSON(v)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	return nil
}
