// Package model holds the on-disk model catalog and the process-wide
// active-provider lifecycle.
package model

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// RequiredConfigFilename is the metadata file a model directory must carry
// to appear in the catalog.
const RequiredConfigFilename = "config.json"

// maxModelIDLength bounds directory-safe model identifiers.
const maxModelIDLength = 255

// ErrInvalidModelID is returned for identifiers that are not safe as a
// directory name.
var ErrInvalidModelID = errors.New("model: invalid model id")

// Entry is one catalog row. Enumerated fresh on every scan; never cached.
type Entry struct {
	ModelID     string `json:"model_id"`
	DisplayName string `json:"display_name"`
	HasConfig   bool   `json:"has_config"`
	Path        string `json:"-"`
	LastError   string `json:"last_error,omitempty"`
}

// ValidateModelID rejects identifiers that could escape the models root or
// break on any supported filesystem: empty strings, dot entries, path
// separators, NUL bytes, reserved Windows characters and a leading '~'.
func ValidateModelID(id string) error {
	if id == "" || id == "." || id == ".." {
		return ErrInvalidModelID
	}
	if len(id) > maxModelIDLength {
		return ErrInvalidModelID
	}
	if strings.HasPrefix(id, "~") {
		return ErrInvalidModelID
	}
	if strings.ContainsAny(id, "/\\\x00:<>\"|?*") {
		return ErrInvalidModelID
	}
	return nil
}

// ListModels enumerates the immediate subdirectories of modelsDir, sorted
// case-insensitively, keeping only those with a valid id and a readable
// config.json. A missing models root yields an empty catalog.
func ListModels(modelsDir string) []Entry {
	dirents, err := os.ReadDir(modelsDir)
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(dirents))
	byName := make(map[string]os.DirEntry, len(dirents))
	for _, d := range dirents {
		if !d.IsDir() {
			continue
		}
		names = append(names, d.Name())
		byName[d.Name()] = d
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})

	var entries []Entry
	for _, name := range names {
		if ValidateModelID(name) != nil {
			continue
		}
		dir := filepath.Join(modelsDir, name)
		cfgPath := filepath.Join(dir, RequiredConfigFilename)

		f, err := os.Open(cfgPath)
		if err != nil {
			continue
		}
		f.Close()

		entries = append(entries, Entry{
			ModelID:     name,
			DisplayName: name,
			HasConfig:   true,
			Path:        dir,
		})
	}
	return entries
}

// Find scans the catalog for id.
func Find(modelsDir, id string) (Entry, bool) {
	for _, e := range ListModels(modelsDir) {
		if e.ModelID == id {
			return e, true
		}
	}
	return Entry{}, false
}
