package config

import (
	"errors"
	"math"
	"os"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ServerConfigName is the server configuration file read from the project root.
const ServerConfigName = "server.config.json"

// ErrNoPort is returned by ServerConfig.TrackedPort when no valid ginPort is configured.
var ErrNoPort = errors.New("no valid ginPort configured")

// ServerConfig holds the few fields of server.config.json the dev loop cares about.
type ServerConfig struct {
	GinPort  int
	NuxtPort int
	// KillPortBeforeDevelop releases the configured ports once before the dev loop starts.
	KillPortBeforeDevelop bool
}

// LoadServerConfig reads path. A missing or malformed file yields a config without
// ports, which disables port reclamation.
func LoadServerConfig(path string) (ServerConfig, error) {
	c := ServerConfig{KillPortBeforeDevelop: true}

	if _, err := os.Stat(path); err != nil {
		return c, err
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), json.Parser()); err != nil {
		return c, err
	}

	c.GinPort = port(k.Get("ginPort"))
	c.NuxtPort = port(k.Get("nuxtPort"))
	if v, ok := k.Get("killPortBeforeDevelop").(bool); ok {
		c.KillPortBeforeDevelop = v
	}
	return c, nil
}

// TrackedPort returns the backend port, or ErrNoPort.
func (c ServerConfig) TrackedPort() (int, error) {
	if c.GinPort <= 0 {
		return 0, ErrNoPort
	}
	return c.GinPort, nil
}

// port accepts only positive integral JSON numbers.
func port(v interface{}) int {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) || f <= 0 || f > math.MaxInt32 {
		return 0
	}
	return int(f)
}
