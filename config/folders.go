package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNoFolders is returned when the folder file has no "folders" list
var ErrNoFolders = errors.New(`invalid folder configuration: expected {"folders": [{"name": "...", "context": {...}}, ...]}`)

// Folder is one configured input folder and the context merged into
// every record extracted from it
type Folder struct {
	Name    string         `json:"name" yaml:"name"`
	Context map[string]any `json:"context" yaml:"context"`
}

type folderFile struct {
	Folders *[]Folder `json:"folders" yaml:"folders"`
}

// SkippedFolder describes a folder entry that was ignored
type SkippedFolder struct {
	Index  int // 1-based position in the file
	Reason string
}

// LoadFolders reads the folder configuration from a JSON or YAML file,
// chosen by extension (.yaml/.yml, anything else is JSON). Entries with an
// empty name or context are returned in skipped rather than folders.
func LoadFolders(path string) (folders []Folder, skipped []SkippedFolder, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("%s not found", path)
		}
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var file folderFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &file)
	default:
		err = json.Unmarshal(data, &file)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if file.Folders == nil {
		return nil, nil, ErrNoFolders
	}

	for i, f := range *file.Folders {
		switch {
		case strings.TrimSpace(f.Name) == "":
			skipped = append(skipped, SkippedFolder{Index: i + 1, Reason: "missing name"})
		case len(f.Context) == 0:
			skipped = append(skipped, SkippedFolder{Index: i + 1, Reason: "missing context"})
		default:
			folders = append(folders, f)
		}
	}
	return folders, skipped, nil
}

// Select keeps the folders named in names, in configuration order.
// Unknown names are returned separately. An empty names list keeps all.
func Select(folders []Folder, names []string) (selected []Folder, unknown []string) {
	if len(names) == 0 {
		return folders, nil
	}

	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	for _, f := range folders {
		if want[f.Name] {
			selected = append(selected, f)
			delete(want, f.Name)
		}
	}
	for _, n := range names {
		if want[n] {
			unknown = append(unknown, n)
			delete(want, n)
		}
	}
	return selected, unknown
}
