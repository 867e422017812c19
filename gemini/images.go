package gemini

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// MaxFileSize is the maximum inline image size (20MB)
const MaxFileSize = 20 * 1024 * 1024

var digitRun = regexp.MustCompile(`\d+`)

// LoadImages lists the page images of a folder in page order.
// Order is by the last run of digits in the file stem (page_2 before
// page_10); names without digits sort after numbered ones, by name.
func LoadImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var images []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if isImageFile(path) {
			images = append(images, path)
		}
	}

	sort.SliceStable(images, func(i, j int) bool {
		return pageLess(filepath.Base(images[i]), filepath.Base(images[j]))
	})

	return images, nil
}

// ReadImage loads an image file as an inline payload
func ReadImage(path string) (*Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to access file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file")
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("file size %d exceeds maximum %d bytes (20MB)", info.Size(), MaxFileSize)
	}

	mimeType := getMIMEType(strings.ToLower(filepath.Ext(path)))
	if mimeType == "" {
		return nil, fmt.Errorf("unsupported image format: %s", filepath.Ext(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	return &Image{MIMEType: mimeType, Data: data}, nil
}

// Stem returns the file name without directory and extension
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// pageNumber returns the last run of digits in the stem, if any
func pageNumber(name string) (int, bool) {
	runs := digitRun.FindAllString(Stem(name), -1)
	if len(runs) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(runs[len(runs)-1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func pageLess(a, b string) bool {
	an, aok := pageNumber(a)
	bn, bok := pageNumber(b)
	switch {
	case aok && bok:
		if an != bn {
			return an < bn
		}
		return a < b
	case aok:
		return true
	case bok:
		return false
	default:
		return a < b
	}
}

// getMIMEType returns the MIME type for an image extension
func getMIMEType(ext string) string {
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return ""
	}
}

// isImageFile checks if a file has a supported image extension
func isImageFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, supported := range SupportedImageTypes {
		if ext == supported {
			return true
		}
	}
	return false
}
