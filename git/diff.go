package git

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"orca-agent-backend/types"
)

// MaxInlineContent is the largest file whose content is included in a
// ChangedFile.
const MaxInlineContent = 10 * 1024

// CollectDiff lists the files changed by the last commit. A root commit has
// no parent, so it falls back to `git show`.
func (d *Driver) CollectDiff(ctx context.Context, dir string) ([]types.ChangedFile, StepResult) {
	res := d.git(ctx, dir, "diff", "--name-status", "HEAD~1", "HEAD")
	if !res.OK() {
		res = d.git(ctx, dir, "show", "--name-status", "--pretty=format:", "HEAD")
	}
	if !res.OK() {
		return nil, warning("diff", "failed to collect changed files: %s", failure(res))
	}

	files := ParseNameStatus(res.Stdout)
	for i := range files {
		if files[i].Type == types.ChangeDeleted {
			continue
		}
		files[i].Content = ReadInline(filepath.Join(dir, files[i].Path))
	}
	return files, ok("diff", "%d file(s) changed", len(files))
}

// ParseNameStatus parses `git diff --name-status` output. Renames and
// copies report their destination path.
func ParseNameStatus(out string) []types.ChangedFile {
	var files []types.ChangedFile
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			continue
		}

		var kind types.ChangeKind
		switch fields[0][0] {
		case 'A', 'C':
			kind = types.ChangeCreated
		case 'M', 'R', 'T':
			kind = types.ChangeModified
		case 'D':
			kind = types.ChangeDeleted
		default:
			continue
		}
		files = append(files, types.ChangedFile{Path: fields[len(fields)-1], Type: kind})
	}
	return files
}

// ReadInline returns the file content when it is a regular file no larger
// than MaxInlineContent.
func ReadInline(path string) *string {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() > MaxInlineContent {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	content := string(data)
	return &content
}
