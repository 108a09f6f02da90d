package matcher

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/magdyamr542/gindev/config"
)

func name() gopter.Gen {
	return gen.Identifier().SuchThat(func(s string) bool { return s != "" })
}

func extension() gopter.Gen {
	return gen.OneConstOf("go", "md", "ts", "json", "templ")
}

func TestMatcherProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1234)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	defaults := config.DefaultWatchConfig()

	properties.Property("paths under an excluded dir are ignored", prop.ForAll(
		func(idx int, file, ext string) bool {
			cfg := config.DefaultWatchConfig()
			p := cfg.ExcludeDir[idx] + "/" + file + "." + ext
			cfg.IncludeFile = map[string]struct{}{p: {}}
			return IsIgnored(p, cfg) && !ShouldTrigger(p, cfg)
		},
		gen.IntRange(0, len(defaults.ExcludeDir)-1), name(), extension(),
	))

	properties.Property("paths matching an exclude regex are ignored", prop.ForAll(
		func(dir, file string) bool {
			return IsIgnored(dir+"/"+file+"_test.go", defaults)
		},
		name(), name(),
	))

	properties.Property("without include dirs only the extension decides", prop.ForAll(
		func(dir, file, ext string) bool {
			p := "src" + dir + "/" + file + "." + ext
			_, want := defaults.IncludeExt[ext]
			return ShouldTrigger(p, defaults) == want
		},
		name(), name(), extension(),
	))

	properties.Property("paths outside include dirs never trigger", prop.ForAll(
		func(file, ext string) bool {
			cfg := config.DefaultWatchConfig()
			cfg.IncludeDir = []string{"server"}
			return !ShouldTrigger("client/"+file+"."+ext, cfg)
		},
		name(), extension(),
	))

	properties.Property("include files always trigger", prop.ForAll(
		func(file string, withExt bool, ext string) bool {
			cfg := config.DefaultWatchConfig()
			cfg.IncludeDir = []string{"server"}
			p := "conf/" + file
			if withExt {
				p += "." + ext
			}
			cfg.IncludeFile = map[string]struct{}{p: {}}
			return ShouldTrigger(p, cfg)
		},
		name(), gen.Bool(), extension(),
	))

	properties.TestingRun(t)
}
