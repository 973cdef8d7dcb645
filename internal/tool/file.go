package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"toolbridge/internal/domain"
)

// Root is the canonicalized data directory all file tools operate under.
// Nothing outside it is ever read or written.
type Root struct {
	path string
}

// NewRoot creates the data directory if needed and canonicalizes it.
func NewRoot(dir string) (*Root, error) {
	if dir == "" {
		return nil, fmt.Errorf("data directory not set")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve data directory: %w", err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("canonicalize data directory: %w", err)
	}
	return &Root{path: canonical}, nil
}

// Path returns the canonical root directory.
func (r *Root) Path() string { return r.path }

// Resolve maps a client-supplied relative name to a path under the root.
// The lexical containment check runs before any filesystem access, so a
// traversal like "../../etc/passwd" is rejected without touching the disk.
// Symlinks under the root are then resolved and re-checked so a link cannot
// smuggle an operation outside.
func (r *Root) Resolve(name string) (string, *domain.ToolError) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", domain.Errf(domain.ErrInvalidArguments, "path must not be empty")
	}
	if filepath.IsAbs(name) {
		return "", domain.Errf(domain.ErrInvalidArguments, "path must be relative to the data directory: %s", name)
	}

	candidate := filepath.Join(r.path, name)
	if !r.contains(candidate) {
		return "", domain.Errf(domain.ErrInvalidArguments, "path escapes the data directory: %s", name)
	}

	resolved, err := resolveExisting(candidate)
	if err != nil {
		return "", domain.Wrapf(domain.ErrIO, err, "resolve path %s", name)
	}
	if !r.contains(resolved) {
		return "", domain.Errf(domain.ErrInvalidArguments, "path escapes the data directory: %s", name)
	}
	return candidate, nil
}

// contains is a pure lexical ancestor test against the canonical root.
func (r *Root) contains(p string) bool {
	rel, err := filepath.Rel(r.path, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// resolveExisting canonicalizes the deepest existing ancestor of path and
// re-joins the not-yet-existing remainder.
func resolveExisting(path string) (string, error) {
	p := path
	var tail []string
	for {
		resolved, err := filepath.EvalSymlinks(p)
		if err == nil {
			if len(tail) == 0 {
				return resolved, nil
			}
			return filepath.Join(append([]string{resolved}, tail...)...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		tail = append([]string{filepath.Base(p)}, tail...)
		parent := filepath.Dir(p)
		if parent == p {
			return path, nil
		}
		p = parent
	}
}

// --- SaveFileTool ---

// SaveFileTool writes content to a file under the data directory, creating
// parent directories as needed.
type SaveFileTool struct {
	root *Root
}

func NewSaveFileTool(root *Root) *SaveFileTool {
	return &SaveFileTool{root: root}
}

func (t *SaveFileTool) Descriptor() domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Name:        "save_file",
		Description: "Save content to a file in the local data directory. Overwrites the file if it already exists.",
		Effect:      domain.EffectFilesystem,
		Schema: domain.InputSchema{
			Properties: map[string]domain.Property{
				"filename": {Type: "string", Description: "File name relative to the data directory"},
				"content":  {Type: "string", Description: "Content to write to the file"},
			},
			Required: []string{"filename", "content"},
		},
	}
}

func (t *SaveFileTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	filename := ArgsString(args, "filename")
	content := ArgsString(args, "content")

	resolved, terr := t.root.Resolve(filename)
	if terr != nil {
		return "", terr
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return "", domain.Wrapf(domain.ErrIO, err, "create directory for %s", filename)
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return "", domain.Wrapf(domain.ErrIO, err, "write file %s", filename)
	}
	return fmt.Sprintf("Content saved to %s", resolved), nil
}

// --- ReadFileTool ---

// ReadFileTool reads a file from the data directory.
type ReadFileTool struct {
	root *Root
}

func NewReadFileTool(root *Root) *ReadFileTool {
	return &ReadFileTool{root: root}
}

func (t *ReadFileTool) Descriptor() domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Name:        "read_file",
		Description: "Read the contents of a file from the local data directory.",
		Effect:      domain.EffectFilesystem,
		Schema: domain.InputSchema{
			Properties: map[string]domain.Property{
				"filename": {Type: "string", Description: "File name relative to the data directory"},
			},
			Required: []string{"filename"},
		},
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	filename := ArgsString(args, "filename")

	resolved, terr := t.root.Resolve(filename)
	if terr != nil {
		return "", terr
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", domain.Errf(domain.ErrNotFound, "file %s not found", filename)
		}
		return "", domain.Wrapf(domain.ErrIO, err, "read file %s", filename)
	}
	return string(data), nil
}

// --- ListFilesTool ---

// ListFilesTool lists the files in a directory under the data directory.
type ListFilesTool struct {
	root *Root
}

func NewListFilesTool(root *Root) *ListFilesTool {
	return &ListFilesTool{root: root}
}

func (t *ListFilesTool) Descriptor() domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Name:        "list_files",
		Description: "List files in the local data directory. Use the directory argument to list a subdirectory.",
		Effect:      domain.EffectFilesystem,
		Schema: domain.InputSchema{
			Properties: map[string]domain.Property{
				"directory": {Type: "string", Description: "Directory relative to the data directory (default: the data directory itself)"},
			},
		},
	}
}

func (t *ListFilesTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	directory := ArgsStringDefault(args, "directory", ".")

	resolved, terr := t.root.Resolve(directory)
	if terr != nil {
		return "", terr
	}
	entries, err := os.ReadDir(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", domain.Errf(domain.ErrNotFound, "directory %s not found", directory)
		}
		return "", domain.Wrapf(domain.ErrIO, err, "list directory %s", directory)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		files = append(files, e.Name())
	}
	out, err := json.Marshal(files)
	if err != nil {
		return "", domain.Wrapf(domain.ErrIO, err, "encode listing for %s", directory)
	}
	return string(out), nil
}

// Compile-time interface checks.
var (
	_ domain.Tool = (*SaveFileTool)(nil)
	_ domain.Tool = (*ReadFileTool)(nil)
	_ domain.Tool = (*ListFilesTool)(nil)
)
