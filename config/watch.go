package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// WatchConfigEnv names an explicit watch config file. It has the highest precedence.
	WatchConfigEnv = "NUXT_GIN_WATCH_CONFIG"
	// WatchConfigName is the file name searched in the candidate directories.
	WatchConfigName = ".go-watch.json"

	packageDirName = "node_modules/nuxt-gin-tools"
)

var extensionPattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// WatchConfig decides which paths are watched and which changes restart the backend.
// A loaded WatchConfig is never mutated.
type WatchConfig struct {
	IncludeExt   map[string]struct{}
	IncludeDir   []string
	IncludeFile  map[string]struct{}
	ExcludeDir   []string
	ExcludeFile  map[string]struct{}
	ExcludeRegex []*regexp.Regexp
	TmpDir       string
	TestDataDir  string
}

// DefaultWatchConfig returns the built-in configuration.
func DefaultWatchConfig() WatchConfig {
	c := WatchConfig{
		IncludeExt:   toSet([]string{"go"}),
		IncludeFile:  map[string]struct{}{},
		ExcludeFile:  map[string]struct{}{},
		ExcludeRegex: defaultExcludeRegex(),
		TmpDir:       ".build/.server",
		TestDataDir:  "testdata",
	}
	c.ExcludeDir = dedupe(append(defaultExcludeDir(), c.TmpDir, c.TestDataDir))
	return c
}

func defaultExcludeDir() []string {
	return []string{".git", "node_modules", "vendor", "vue"}
}

func defaultExcludeRegex() []*regexp.Regexp {
	return []*regexp.Regexp{regexp.MustCompile(`_test\.go$`)}
}

// WatchConfigCandidates lists the locations searched for the watch config, in order.
// packageDir is the directory the tool is installed in; it may be empty.
func WatchConfigCandidates(projectDir, packageDir string) []string {
	candidates := make([]string, 0, 5)
	if env := strings.TrimSpace(os.Getenv(WatchConfigEnv)); env != "" {
		candidates = append(candidates, env)
	}
	candidates = append(candidates,
		filepath.Join(projectDir, packageDirName, WatchConfigName),
		filepath.Join(projectDir, WatchConfigName),
	)
	if packageDir != "" {
		candidates = append(candidates,
			filepath.Join(packageDir, "..", WatchConfigName),
			filepath.Join(packageDir, "..", "..", WatchConfigName),
		)
	}
	return candidates
}

// LoadWatchConfig loads the first existing candidate and merges it with the defaults.
// It never fails: a missing file yields the defaults and an unreadable one yields
// the defaults plus a warning. The returned path is empty when no file was used.
func LoadWatchConfig(candidates []string, logger hclog.Logger) (WatchConfig, string) {
	path := firstExisting(candidates)
	if path == "" {
		return DefaultWatchConfig(), ""
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), json.Parser()); err != nil {
		logger.Warn("invalid watch config JSON, fallback to defaults", "path", path, "error", err)
		return DefaultWatchConfig(), ""
	}

	return mergeWatchConfig(k, logger), path
}

func mergeWatchConfig(k *koanf.Koanf, logger hclog.Logger) WatchConfig {
	defaults := DefaultWatchConfig()

	includeExt := make([]string, 0)
	for _, ext := range stringList(alias(k, "includeExt", "include_ext")) {
		ext = strings.TrimPrefix(ext, ".")
		if !extensionPattern.MatchString(ext) {
			logger.Warn("ignoring invalid extension", "ext", ext)
			continue
		}
		includeExt = append(includeExt, ext)
	}
	if len(includeExt) == 0 {
		includeExt = keys(defaults.IncludeExt)
	}

	excludeRegex := make([]*regexp.Regexp, 0)
	for _, pattern := range stringList(alias(k, "excludeRegex", "exclude_regex")) {
		re, err := regexp.Compile(pattern)
		if err != nil {
			logger.Warn("ignoring invalid exclude pattern", "pattern", pattern, "error", err)
			continue
		}
		excludeRegex = append(excludeRegex, re)
	}
	if len(excludeRegex) == 0 {
		excludeRegex = defaults.ExcludeRegex
	}

	tmpDir := NormalizePath(stringValue(alias(k, "tmpDir", "tmp_dir")))
	if tmpDir == "" {
		tmpDir = defaults.TmpDir
	}
	testDataDir := NormalizePath(stringValue(alias(k, "testDataDir", "testdata_dir")))
	if testDataDir == "" {
		testDataDir = defaults.TestDataDir
	}

	excludeDir := defaultExcludeDir()
	excludeDir = append(excludeDir, pathList(alias(k, "excludeDir", "exclude_dir"))...)
	excludeDir = append(excludeDir, tmpDir, testDataDir)

	return WatchConfig{
		IncludeExt:   toSet(includeExt),
		IncludeDir:   pathList(alias(k, "includeDir", "include_dir")),
		IncludeFile:  toSet(pathList(alias(k, "includeFile", "include_file"))),
		ExcludeDir:   dedupe(excludeDir),
		ExcludeFile:  toSet(pathList(alias(k, "excludeFile", "exclude_file"))),
		ExcludeRegex: excludeRegex,
		TmpDir:       tmpDir,
		TestDataDir:  testDataDir,
	}
}

// alias returns the camelCase value when present and non-null, else the snake_case one.
func alias(k *koanf.Koanf, camel, snake string) interface{} {
	if v := k.Get(camel); v != nil {
		return v
	}
	return k.Get(snake)
}

func stringList(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func pathList(v interface{}) []string {
	out := make([]string, 0)
	for _, s := range stringList(v) {
		if p := NormalizePath(s); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func stringValue(v interface{}) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

func firstExisting(candidates []string) string {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c
		}
	}
	return ""
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
