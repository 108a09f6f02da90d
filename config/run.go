package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	debugLogLevel = "DEBUG"
	infoLogLevel  = "INFO"
	warnLogLevel  = "WARN"
	errorLogLevel = "ERROR"
)

var logLevels = map[string]struct{}{
	debugLogLevel: {},
	infoLogLevel:  {},
	warnLogLevel:  {},
	errorLogLevel: {},
}

// DefaultMainCommand is the backend entrypoint started when no run profile overrides it.
const DefaultMainCommand = "go run main.go"

// RunConfig describes how the supervised backend is started.
type RunConfig struct {
	// Commands to execute before every start of the main program
	Before []CommandWithDir `yaml:"before"`
	// Commands to execute after every stop of the main program
	After []CommandWithDir `yaml:"after"`
	// The command to execute the main program
	Command CommandWithDir `yaml:"main"`
	// The log level to use
	LogLevel string `yaml:"loglevel,omitempty"`
}

// CommandWithDir defines a command to be executed inside some directory.
type CommandWithDir struct {
	Command string            `yaml:"command"`
	BaseDir string            `yaml:"directory,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
}

// Args splits the command line on whitespace.
func (c CommandWithDir) Args() []string {
	return strings.Fields(c.Command)
}

// DefaultRunConfig runs DefaultMainCommand inside projectDir.
func DefaultRunConfig(projectDir string) RunConfig {
	return RunConfig{
		Command: CommandWithDir{
			Command: DefaultMainCommand,
			BaseDir: projectDir,
		},
	}
}

// ParseRunConfig reads a YAML run profile. Commands without a directory run in projectDir.
func ParseRunConfig(path, projectDir string) (RunConfig, error) {
	var c RunConfig

	fileBytes, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}

	err = yaml.Unmarshal(fileBytes, &c)
	if err != nil {
		return c, fmt.Errorf("parse %s: %w", path, err)
	}

	if strings.TrimSpace(c.Command.Command) == "" {
		c.Command.Command = DefaultMainCommand
	}

	// Validate the commands
	if err := cleanCmd(&c.Command, projectDir); err != nil {
		return c, fmt.Errorf("main command: %w", err)
	}

	for i := range c.Before {
		if err := cleanCmd(&c.Before[i], projectDir); err != nil {
			return c, fmt.Errorf("before command: %w", err)
		}
	}

	for i := range c.After {
		if err := cleanCmd(&c.After[i], projectDir); err != nil {
			return c, fmt.Errorf("after command: %w", err)
		}
	}

	// Validate log level.
	c.LogLevel = strings.ToUpper(strings.TrimSpace(c.LogLevel))
	if c.LogLevel != "" {
		if _, ok := logLevels[c.LogLevel]; !ok {
			return c, fmt.Errorf("unknown log level %q", c.LogLevel)
		}
	}

	return c, nil
}

func cleanCmd(cmd *CommandWithDir, projectDir string) error {
	cmd.Command = strings.TrimSpace(cmd.Command)
	if cmd.Command == "" {
		return fmt.Errorf("command is empty")
	}

	if cmd.BaseDir == "" {
		cmd.BaseDir = projectDir
	} else if !filepath.IsAbs(cmd.BaseDir) {
		cmd.BaseDir = filepath.Join(projectDir, cmd.BaseDir)
	}

	fileinfo, err := os.Stat(cmd.BaseDir)
	if err != nil {
		return fmt.Errorf("can't stat directory %s: %w", cmd.BaseDir, err)
	}

	if !fileinfo.IsDir() {
		return fmt.Errorf("%s isn't a directory", cmd.BaseDir)
	}

	return nil
}
