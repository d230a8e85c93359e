// Package scaffold writes the embedded reference blog project, a Django
// project that satisfies every checklist rule.
package scaffold

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/natefinch/atomic"
)

//go:embed all:skeleton
var skeletonFS embed.FS

// ProjectName is the directory name of the reference project.
const ProjectName = "website"

const root = "skeleton"

// Write copies the reference project into targetDir, creating
// targetDir/website. Existing files are kept unless force is set. It returns
// the written files relative to targetDir, in slash form.
func Write(targetDir string, force bool) ([]string, error) {
	var written []string
	err := fs.WalkDir(skeletonFS, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(p, root), "/")
		if rel == "" {
			return nil
		}
		rel = renameSpecialFiles(rel)
		target := filepath.Join(targetDir, filepath.FromSlash(rel))

		if d.IsDir() {
			return os.MkdirAll(target, 0750)
		}
		if !force {
			if _, err := os.Stat(target); err == nil {
				return nil // Skip existing files
			}
		}

		content, err := skeletonFS.ReadFile(p)
		if err != nil {
			return err
		}
		if err := atomic.WriteFile(target, bytes.NewReader(content)); err != nil {
			return fmt.Errorf("write %s: %w", rel, err)
		}
		written = append(written, rel)
		return nil
	})
	return written, err
}

// Files returns every file of the reference project relative to its parent
// directory, sorted.
func Files() ([]string, error) {
	var files []string
	err := fs.WalkDir(skeletonFS, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, renameSpecialFiles(strings.TrimPrefix(p, root+"/")))
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// Group buckets project files by the part of the exercise they belong to.
func Group(files []string) map[string][]string {
	groups := map[string][]string{
		"project":   {},
		"app":       {},
		"templates": {},
		"static":    {},
	}
	for _, f := range files {
		parts := strings.SplitN(f, "/", 3)
		section := ""
		if len(parts) == 3 {
			section = parts[1]
		}
		switch section {
		case "templates", "static":
			groups[section] = append(groups[section], f)
		case "blog":
			groups["app"] = append(groups["app"], f)
		default:
			groups["project"] = append(groups["project"], f)
		}
	}
	return groups
}

// renameSpecialFiles handles files that need renaming (e.g., dotfiles).
func renameSpecialFiles(p string) string {
	dir, base := path.Split(p)
	switch base {
	case "gitignore":
		return dir + ".gitignore"
	default:
		return p
	}
}
