package tool

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/coderlang-ai/coderlang/core"
)

// FileTools exposes workspace-rooted file access as function tools. Every
// path is resolved against the workspace root and rejected if it escapes it,
// so a model cannot read or write outside the sandbox directory.
type FileTools struct {
	root string
}

// NewFileTools creates a FileTools set rooted at dir. The directory is
// created if missing.
func NewFileTools(dir string) (*FileTools, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	return &FileTools{root: abs}, nil
}

// Root returns the absolute workspace root.
func (f *FileTools) Root() string { return f.root }

// All returns the read, write and list tools.
func (f *FileTools) All() []Tool {
	return []Tool{f.ReadFileTool(), f.WriteFileTool(), f.ListFilesTool()}
}

// resolve maps a user-supplied relative path into the workspace, rejecting
// escapes via ".." or absolute paths.
func (f *FileTools) resolve(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("path must not be empty")
	}
	if filepath.IsAbs(p) {
		return "", fmt.Errorf("absolute paths are not allowed")
	}
	full := filepath.Join(f.root, filepath.Clean(p))
	rel, err := filepath.Rel(f.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the workspace", p)
	}
	return full, nil
}

// ReadFileTool returns the read_file tool.
func (f *FileTools) ReadFileTool() Tool {
	return NewFunctionTool(
		"read_file",
		"Read the content of a file inside the workspace.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{"type": "string", "description": "Workspace-relative file path"},
			},
			"required": []string{"path"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			path, _ := args["path"].(string)
			full, err := f.resolve(path)
			if err != nil {
				return nil, err
			}
			data, err := os.ReadFile(full)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", path, err)
			}
			return map[string]any{"path": path, "content": string(data), "size": len(data)}, nil
		},
	)
}

// WriteFileTool returns the write_file tool. Parent directories are created
// as needed, mirroring the workspace write semantics agents expect.
func (f *FileTools) WriteFileTool() Tool {
	return NewFunctionTool(
		"write_file",
		"Write content to a file inside the workspace, creating parent directories as needed.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":    map[string]any{"type": "string", "description": "Workspace-relative file path"},
				"content": map[string]any{"type": "string", "description": "File content to write"},
			},
			"required": []string{"path", "content"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			path, _ := args["path"].(string)
			content, _ := args["content"].(string)
			full, err := f.resolve(path)
			if err != nil {
				return nil, err
			}
			if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
				return nil, fmt.Errorf("create directory for %s: %w", path, err)
			}
			if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
				return nil, fmt.Errorf("write %s: %w", path, err)
			}
			return map[string]any{"path": path, "written": len(content)}, nil
		},
	)
}

// ListFilesTool returns the list_files tool.
func (f *FileTools) ListFilesTool() Tool {
	return NewFunctionTool(
		"list_files",
		"List the entries of a directory inside the workspace.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{"type": "string", "description": "Workspace-relative directory, defaults to the root"},
			},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			path, _ := args["path"].(string)
			if path == "" {
				path = "."
			}
			full, err := f.resolve(path)
			if err != nil {
				return nil, err
			}
			entries, err := os.ReadDir(full)
			if err != nil {
				return nil, fmt.Errorf("list %s: %w", path, err)
			}
			names := make([]string, 0, len(entries))
			for _, e := range entries {
				name := e.Name()
				if e.IsDir() {
					name += "/"
				}
				names = append(names, name)
			}
			sort.Strings(names)
			return map[string]any{"path": path, "entries": names}, nil
		},
	)
}
