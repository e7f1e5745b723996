// Package candidates loads the static list of discovery candidate base
// URLs an orchestrator process starts from, the same way
// agent.go:LoadAgentsFromConfig reads a JSON agent list from disk
// instead of hardcoding it in source.
package candidates

import (
	"encoding/json"
	"fmt"
	"os"
)

// Load reads a JSON array of base URLs from path.
func Load(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open candidates file: %w", err)
	}
	defer file.Close()

	var urls []string
	if err := json.NewDecoder(file).Decode(&urls); err != nil {
		return nil, fmt.Errorf("decode candidates file: %w", err)
	}
	return urls, nil
}
