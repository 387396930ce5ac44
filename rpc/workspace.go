package rpc

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// maxContextFiles caps the file listing sent to the model with agent.task
const maxContextFiles = 50

// resolve maps a client path onto the workspace. Leading slashes and ".."
// segments cannot escape root.
func resolve(root, path string) string {
	clean := filepath.Clean("/" + strings.TrimSpace(path))
	return filepath.Join(root, clean)
}

// FileEntry is one row of a file.list result
type FileEntry struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size *int64 `json:"size,omitempty"`
}

func listEntries(target string) ([]FileEntry, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		size := info.Size()
		return []FileEntry{{Name: info.Name(), Type: "file", Size: &size}}, nil
	}

	entries, err := os.ReadDir(target)
	if err != nil {
		return nil, err
	}
	files := make([]FileEntry, 0, len(entries))
	for _, e := range entries {
		entry := FileEntry{Name: e.Name(), Type: "file"}
		if e.IsDir() {
			entry.Type = "directory"
		} else if fi, err := e.Info(); err == nil {
			size := fi.Size()
			entry.Size = &size
		}
		files = append(files, entry)
	}
	return files, nil
}

var errEnoughFiles = errors.New("enough files")

// workspaceFiles returns up to limit workspace-relative file paths, skipping .git
func workspaceFiles(root string, limit int) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		if len(files) >= limit {
			return errEnoughFiles
		}
		return nil
	})
	if err != nil && !errors.Is(err, errEnoughFiles) {
		return files, err
	}
	return files, nil
}
