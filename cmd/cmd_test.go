package cmd

import (
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePorts(t *testing.T) {
	ports, err := parsePorts([]string{"8080", "3000"})
	require.NoError(t, err)
	assert.Equal(t, []int{8080, 3000}, ports)

	for _, bad := range []string{"http", "0", "-1", "70000"} {
		_, err := parsePorts([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestResolve(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "server.config.json")
	assert.Equal(t, abs, resolve("/proj", abs))
	assert.Equal(t, filepath.Join("/proj", "server.config.json"), resolve("/proj", "server.config.json"))
}

func TestLogLevel(t *testing.T) {
	t.Cleanup(viper.Reset)

	viper.Reset()
	assert.Equal(t, "DEBUG", logLevel("DEBUG"))

	viper.Set("log-level", "warn")
	assert.Equal(t, "warn", logLevel("DEBUG"))
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["dev"])
	assert.True(t, names["kill-port"])
}
