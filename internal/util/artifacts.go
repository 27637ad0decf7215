package util

import (
	"encoding/json"
	"fmt"
	"os"
)

// WriteJSONAtomic stages an intermediate artifact for the next pipeline step.
func WriteJSONAtomic(path string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode json %s: %w", path, err)
	}
	return WriteFileAtomic(path, b)
}

func ReadJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read json %s: %w", path, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode json %s: %w", path, err)
	}
	return nil
}
