package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const markerFile = "index.json"

// manifest is the marker file content. Its presence alone means "built".
type manifest struct {
	Backend      string    `json:"backend"`
	Collection   string    `json:"collection"`
	ModelVersion string    `json:"model_version"`
	Count        int       `json:"count"`
	BuiltAt      time.Time `json:"built_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func readManifest(dir string) (manifest, error) {
	var m manifest
	data, err := os.ReadFile(filepath.Join(dir, markerFile))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("corrupt %s: %w", markerFile, err)
	}
	return m, nil
}

// writeManifest replaces the marker atomically (temp file + rename).
func writeManifest(dir string, m manifest) error {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	tmp := filepath.Join(dir, markerFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(dir, markerFile))
}

func removeManifest(dir string) error {
	err := os.Remove(filepath.Join(dir, markerFile))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
