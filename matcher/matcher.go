// Package matcher decides which project-relative paths are ignored by the
// watcher and which ones restart the backend.
//
// All paths are project-relative and forward-slash separated. Directory
// containment is a prefix check on whole path segments, never a glob.
package matcher

import (
	"path/filepath"
	"strings"

	"github.com/magdyamr542/gindev/config"
)

// Relative returns path relative to root in the form the predicates expect.
// Paths outside root keep their leading "../" segments.
func Relative(root, path string) string {
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return config.NormalizePath(path)
	}
	return config.NormalizePath(filepath.ToSlash(rel))
}

// InDir reports whether rel is dir itself or lies below it.
func InDir(rel, dir string) bool {
	dir = strings.TrimRight(config.NormalizePath(dir), "/")
	if dir == "" {
		return false
	}
	return rel == dir || strings.HasPrefix(rel, dir+"/")
}

// IsIgnored reports whether rel must never be watched nor trigger a restart.
func IsIgnored(rel string, cfg config.WatchConfig) bool {
	if rel == "" || rel == "." {
		return true
	}
	if _, ok := cfg.ExcludeFile[rel]; ok {
		return true
	}
	for _, dir := range cfg.ExcludeDir {
		if InDir(rel, dir) {
			return true
		}
	}
	for _, re := range cfg.ExcludeRegex {
		if re.MatchString(rel) {
			return true
		}
	}
	return false
}

// ShouldTrigger reports whether a change to rel restarts the backend.
func ShouldTrigger(rel string, cfg config.WatchConfig) bool {
	if IsIgnored(rel, cfg) {
		return false
	}

	_, inIncludedFile := cfg.IncludeFile[rel]

	if len(cfg.IncludeDir) > 0 && !inIncludedFile {
		inIncludedDir := false
		for _, dir := range cfg.IncludeDir {
			if InDir(rel, dir) {
				inIncludedDir = true
				break
			}
		}
		if !inIncludedDir {
			return false
		}
	}

	if inIncludedFile {
		return true
	}

	ext := Ext(rel)
	if ext == "" {
		return false
	}
	_, ok := cfg.IncludeExt[ext]
	return ok
}

// Ext returns the extension of the last path element without its dot.
// Dotfiles such as ".env" have no extension.
func Ext(rel string) string {
	base := rel
	if i := strings.LastIndex(rel, "/"); i >= 0 {
		base = rel[i+1:]
	}
	i := strings.LastIndex(base, ".")
	if i <= 0 {
		return ""
	}
	return base[i+1:]
}
