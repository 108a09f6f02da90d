package matcher

import (
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/magdyamr542/gindev/config"
)

func TestIsIgnored(t *testing.T) {
	cfg := config.DefaultWatchConfig()
	cfg.ExcludeFile = map[string]struct{}{"gen/models.go": {}}

	testCases := []struct {
		path    string
		ignored bool
	}{
		{"", true},
		{".", true},
		{".git", true},
		{".git/HEAD", true},
		{"node_modules/pkg/index.go", true},
		{"vue/pages/index.vue", true},
		{".build/.server/production.exe", true},
		{"testdata/fixture.go", true},
		{"gen/models.go", true},
		{"handlers/user_test.go", true},
		{"vueish/main.go", false},
		{"gitlike/.gitkeep", false},
		{"main.go", false},
		{"README.md", false},
		{"gen/other.go", false},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.ignored, IsIgnored(tc.path, cfg))
		})
	}
}

func TestShouldTriggerDefaults(t *testing.T) {
	cfg := config.DefaultWatchConfig()

	assert.True(t, ShouldTrigger("main.go", cfg))
	assert.True(t, ShouldTrigger("internal/api/router.go", cfg))
	assert.False(t, ShouldTrigger("main_test.go", cfg))
	assert.False(t, ShouldTrigger("README.md", cfg))
	assert.False(t, ShouldTrigger("Makefile", cfg))
	assert.False(t, ShouldTrigger("vendor/x/y.go", cfg))
}

func TestShouldTriggerIncludeDirs(t *testing.T) {
	cfg := config.DefaultWatchConfig()
	cfg.IncludeDir = []string{"server", "api/"}
	cfg.IncludeFile = map[string]struct{}{"go.mod": {}, "server/Dockerfile": {}}

	assert.True(t, ShouldTrigger("server/main.go", cfg))
	assert.True(t, ShouldTrigger("api/v1/user.go", cfg))
	assert.True(t, ShouldTrigger("go.mod", cfg))
	assert.True(t, ShouldTrigger("server/Dockerfile", cfg))
	assert.False(t, ShouldTrigger("main.go", cfg))
	assert.False(t, ShouldTrigger("serverless/main.go", cfg))
	assert.False(t, ShouldTrigger("server/Makefile", cfg))
	assert.False(t, ShouldTrigger("server/README.md", cfg))
}

func TestShouldTriggerExcludeWinsOverInclude(t *testing.T) {
	cfg := config.DefaultWatchConfig()
	cfg.IncludeDir = []string{"vendor"}
	cfg.IncludeFile = map[string]struct{}{"vendor/modules.txt": {}, "skip.go": {}}
	cfg.ExcludeFile = map[string]struct{}{"skip.go": {}}
	cfg.ExcludeRegex = append(cfg.ExcludeRegex, regexp.MustCompile(`\.txt$`))

	assert.False(t, ShouldTrigger("vendor/modules.txt", cfg))
	assert.False(t, ShouldTrigger("vendor/lib/a.go", cfg))
	assert.False(t, ShouldTrigger("skip.go", cfg))
}

func TestRelative(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "proj")

	assert.Equal(t, "main.go", Relative(root, filepath.Join(root, "main.go")))
	assert.Equal(t, "a/b/c.go", Relative(root, filepath.Join(root, "a", "b", "c.go")))
	assert.Equal(t, ".", Relative(root, root))
	assert.Equal(t, "x.go", Relative(root, "x.go"))
	assert.Equal(t, "../other/x.go", Relative(root, filepath.Join(string(filepath.Separator), "other", "x.go")))
}

func TestInDir(t *testing.T) {
	assert.True(t, InDir("a/b", "a"))
	assert.True(t, InDir("a", "a/"))
	assert.True(t, InDir("a/b/c", "./a/b"))
	assert.False(t, InDir("ab/c", "a"))
	assert.False(t, InDir("a", ""))
}

func TestExt(t *testing.T) {
	assert.Equal(t, "go", Ext("main.go"))
	assert.Equal(t, "gz", Ext("dist/app.tar.gz"))
	assert.Equal(t, "", Ext(".env"))
	assert.Equal(t, "", Ext("conf.d/Makefile"))
	assert.Equal(t, "", Ext("file."))
}
