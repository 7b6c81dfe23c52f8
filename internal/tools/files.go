package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

var errAccessDenied = errors.New("Access denied (outside allowed folder).")

// FileTools exposes file operations confined to a base directory.
// Requests are resolved relative to it; anything that escapes (absolute
// paths, .. traversal) is rejected.
type FileTools struct {
	baseDir  string
	maxBytes int64
}

func NewFileTools(baseDir string, maxBytes int64) (*FileTools, error) {
	if baseDir == "" {
		baseDir = "data/files"
	}
	if maxBytes <= 0 {
		maxBytes = 100 * 1024
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create base dir: %w", err)
	}
	return &FileTools{baseDir: abs, maxBytes: maxBytes}, nil
}

func (f *FileTools) Tools() []Tool {
	return []Tool{
		{
			Name:        "list_directory",
			Description: "List files and folders in a directory. Path is relative to the server's base folder.",
			InputSchema: objectSchema(nil, map[string]any{
				"path": prop("string", "Directory path relative to base folder. Use '.' for root."),
			}),
			Handler: f.listDirectory,
		},
		{
			Name:        "read_file",
			Description: "Read the contents of a text file. Path is relative to server's base folder.",
			InputSchema: objectSchema([]string{"path"}, map[string]any{
				"path": prop("string", "File path relative to base folder"),
			}),
			Handler: f.readFile,
		},
		{
			Name:        "write_file",
			Description: "Write content to a file. Creates the file if it doesn't exist, overwrites if it does.",
			InputSchema: objectSchema([]string{"path", "content"}, map[string]any{
				"path":    prop("string", "File path relative to base folder"),
				"content": prop("string", "Content to write to the file"),
			}),
			Handler: f.writeFile,
		},
		{
			Name:        "create_directory",
			Description: "Create a new directory. Path is relative to server's base folder.",
			InputSchema: objectSchema([]string{"path"}, map[string]any{
				"path": prop("string", "Directory path to create"),
			}),
			Handler: f.createDirectory,
		},
		{
			Name:        "delete_file",
			Description: "Delete a file. Path is relative to server's base folder.",
			InputSchema: objectSchema([]string{"path"}, map[string]any{
				"path": prop("string", "File path to delete"),
			}),
			Handler: f.deleteFile,
		},
	}
}

// safeResolve anchors requested under the base directory. Absolute paths
// are reinterpreted as relative, and the cleaned result must not leave
// the base.
func (f *FileTools) safeResolve(requested string) (string, error) {
	p := requested
	if filepath.IsAbs(p) {
		p = strings.TrimPrefix(p, string(filepath.Separator))
	}
	resolved := filepath.Clean(filepath.Join(f.baseDir, p))
	if resolved != f.baseDir && !strings.HasPrefix(resolved, f.baseDir+string(filepath.Separator)) {
		return "", errAccessDenied
	}
	return resolved, nil
}

func (f *FileTools) listDirectory(_ context.Context, args map[string]any) (map[string]any, error) {
	path := argString(args, "path")
	if path == "" {
		path = "."
	}
	p, err := f.safeResolve(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return errResult(fmt.Sprintf("Path does not exist: %s", path)), nil
	}
	if !info.IsDir() {
		return errResult(fmt.Sprintf("Path is not a directory: %s", path)), nil
	}
	children, err := os.ReadDir(p)
	if err != nil {
		return nil, err
	}
	entries := make([]map[string]any, 0, len(children))
	for _, child := range children {
		entry := map[string]any{
			"name": child.Name(),
			"type": "file",
			"size": nil,
		}
		if child.IsDir() {
			entry["type"] = "directory"
		} else if ci, err := child.Info(); err == nil {
			entry["size"] = ci.Size()
		}
		entries = append(entries, entry)
	}
	return map[string]any{"path": path, "entries": entries}, nil
}

func (f *FileTools) readFile(_ context.Context, args map[string]any) (map[string]any, error) {
	path := argString(args, "path")
	if path == "" {
		return errResult("Missing 'path' parameter"), nil
	}
	p, err := f.safeResolve(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return errResult(fmt.Sprintf("File not found: %s", path)), nil
	}
	if !info.Mode().IsRegular() {
		return errResult(fmt.Sprintf("Not a file: %s", path)), nil
	}
	if info.Size() > f.maxBytes {
		return errResult(fmt.Sprintf("File too large (%d bytes). Max: %d bytes", info.Size(), f.maxBytes)), nil
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(data) {
		return errResult(fmt.Sprintf("File is not readable as UTF-8 text: %s", path)), nil
	}
	return map[string]any{"path": path, "content": string(data), "size": info.Size()}, nil
}

func (f *FileTools) writeFile(_ context.Context, args map[string]any) (map[string]any, error) {
	path := argString(args, "path")
	if path == "" {
		return errResult("Missing 'path' parameter"), nil
	}
	content, ok := args["content"].(string)
	if !ok {
		return errResult("Missing 'content' parameter"), nil
	}
	p, err := f.safeResolve(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "path": path, "size": len(content)}, nil
}

func (f *FileTools) createDirectory(_ context.Context, args map[string]any) (map[string]any, error) {
	path := argString(args, "path")
	if path == "" {
		return errResult("Missing 'path' parameter"), nil
	}
	p, err := f.safeResolve(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(p, 0o755); err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "path": path}, nil
}

func (f *FileTools) deleteFile(_ context.Context, args map[string]any) (map[string]any, error) {
	path := argString(args, "path")
	if path == "" {
		return errResult("Missing 'path' parameter"), nil
	}
	p, err := f.safeResolve(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return errResult(fmt.Sprintf("File not found: %s", path)), nil
	}
	if !info.Mode().IsRegular() {
		return errResult(fmt.Sprintf("Not a file: %s", path)), nil
	}
	if err := os.Remove(p); err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "path": path}, nil
}
