package batch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"mcqscan/question"
)

// MergedFileName is the consolidated output of a folder
const MergedFileName = "full.json"

// WriteResult contains information about a written file
type WriteResult struct {
	Path    string
	Records int
	Bytes   int64
}

// MergeResult contains information about a merged folder output
type MergeResult struct {
	Path        string
	Records     int
	Bytes       int64
	FilesMerged int
	Missing     []string
	Errors      []error
}

// WriteRecords writes records as an indented JSON array
func WriteRecords(path string, records []question.Record) (*WriteResult, error) {
	if records == nil {
		records = []question.Record{}
	}
	n, err := writeJSON(path, records)
	if err != nil {
		return nil, err
	}
	return &WriteResult{Path: path, Records: len(records), Bytes: n}, nil
}

// ReadRecords reads a JSON array of records
func ReadRecords(path string) ([]question.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []question.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return records, nil
}

// MergeFolder concatenates the per-image files of images, in order, into
// dir/full.json. Images without an output file are listed in Missing.
// Nothing is written when no records are found; Path is then empty.
func MergeFolder(dir string, images []string) (*MergeResult, error) {
	result := &MergeResult{}
	var all []question.Record

	for _, img := range images {
		path := ImageOutputPath(dir, img)
		records, err := ReadRecords(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				result.Missing = append(result.Missing, filepath.Base(img))
			} else {
				result.Errors = append(result.Errors, err)
			}
			continue
		}
		all = append(all, records...)
		result.FilesMerged++
	}

	if len(all) == 0 {
		return result, nil
	}

	dest := filepath.Join(dir, MergedFileName)
	n, err := writeJSON(dest, all)
	if err != nil {
		return result, fmt.Errorf("failed to write merged output: %w", err)
	}

	result.Path = dest
	result.Records = len(all)
	result.Bytes = n
	return result, nil
}

// ImageOutputPath is the per-image output file for an image
func ImageOutputPath(dir, imagePath string) string {
	base := filepath.Base(imagePath)
	stem := base[:len(base)-len(filepath.Ext(base))]
	return filepath.Join(dir, stem+".json")
}

// writeJSON writes v with two-space indentation and no HTML escaping.
// The file is replaced by rename so an interrupted write leaves the old
// content in place.
func writeJSON(path string, v any) (int64, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return 0, fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", path, err)
	}

	return int64(buf.Len()), nil
}
