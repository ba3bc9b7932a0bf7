package storage

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vellum-cms/vellum/internal/schema"
)

// Subdirectories scanned under the root, in load order.
var definitionDirs = []string{"components", "content-types"}

// FileSystemRepository implements schema.Repository using the local file system.
// It expects a directory structure: root/{components,content-types}/**/*.[yaml|yml|json]
type FileSystemRepository struct {
	rootDir string
}

// NewFileSystemRepository creates a new file system backed repository.
func NewFileSystemRepository(rootDir string) *FileSystemRepository {
	return &FileSystemRepository{
		rootDir: rootDir,
	}
}

// List reads every definition file below the root. Files are returned ordered by
// relative path so boot is deterministic.
func (r *FileSystemRepository) List(ctx context.Context) ([]*schema.Definition, error) {
	info, err := os.Stat(r.rootDir)
	if err != nil {
		return nil, fmt.Errorf("schema directory %q: %w", r.rootDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("schema path %q is not a directory", r.rootDir)
	}

	var defs []*schema.Definition
	for _, sub := range definitionDirs {
		dir := filepath.Join(r.rootDir, sub)
		found, err := r.scanDir(ctx, dir)
		if err != nil {
			return nil, err
		}
		defs = append(defs, found...)
	}

	if len(defs) == 0 {
		slog.Warn("No schema definitions found", "path", r.rootDir)
	}
	return defs, nil
}

func (r *FileSystemRepository) scanDir(ctx context.Context, dir string) ([]*schema.Definition, error) {
	var defs []*schema.Definition

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == dir {
				return filepath.SkipDir
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}

		format, ok := formatOf(path)
		if !ok {
			return nil // Not a schema file
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read schema definition %s: %w", path, err)
		}
		rel, err := filepath.Rel(r.rootDir, path)
		if err != nil {
			rel = path
		}

		defs = append(defs, &schema.Definition{
			Name:        filepath.ToSlash(rel),
			Format:      format,
			Content:     content,
			Fingerprint: schema.ComputeFingerprint(content),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs, nil
}

func formatOf(path string) (schema.Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return schema.FormatYaml, true
	case ".json":
		return schema.FormatJSON, true
	}
	return "", false
}
