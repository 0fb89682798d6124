// Package testutil holds fixtures shared by package tests: property bags,
// a dynamic protobuf Order message, a Thrift Order struct, registry types
// whose constructors misbehave and self-signed broker certificates.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	json "github.com/goccy/go-json"
)

// LoadJSON reads and unmarshals a JSON file located next to this package. If
// target is provided, the document is also unmarshaled into it.
func LoadJSON(filename string, target ...any) (map[string]any, error) {
	var result map[string]any

	_, currentFile, _, _ := runtime.Caller(0)
	dir := filepath.Dir(currentFile)

	data, err := os.ReadFile(filepath.Join(dir, filename))
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	if len(target) > 0 && target[0] != nil {
		if err := json.Unmarshal(data, target[0]); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// Properties returns the named property bag from tables.json.
func Properties(name string) (map[string]any, error) {
	var bags map[string]map[string]any
	if _, err := LoadJSON("tables.json", &bags); err != nil {
		return nil, err
	}
	props, ok := bags[name]
	if !ok {
		return nil, fmt.Errorf("no property bag named %q", name)
	}
	return props, nil
}
