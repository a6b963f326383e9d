// Package config provides the server configuration and loads it from TOML or YAML files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Scheduling modes for accepted connections.
const (
	ModeConcurrent = "concurrent"
	ModeSequential = "sequential"
)

// Log output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config holds everything needed to run the server.
// It is read once at startup and never modified afterwards.
type Config struct {
	// Host is the interface address to bind (e.g., "127.0.0.1" or "0.0.0.0").
	Host string `toml:"host" yaml:"host"`
	// Port is the TCP port to listen on. 0 picks a free port.
	Port int `toml:"port" yaml:"port"`
	// Root is the directory static files are served from.
	Root string `toml:"root" yaml:"root"`
	// Mode selects how connections are scheduled: ModeConcurrent handles each
	// connection on its own goroutine, ModeSequential handles one at a time.
	Mode string `toml:"mode" yaml:"mode"`
	// MaxConns caps the number of connections handled at once in concurrent
	// mode. 0 means no limit.
	MaxConns int `toml:"max_conns" yaml:"max_conns"`
	// MaxHeadBytes is the capacity of the per-connection request head buffer.
	// Heads that do not fit are answered with 431.
	MaxHeadBytes int `toml:"max_head_bytes" yaml:"max_head_bytes"`
	// ReadTimeout bounds the time spent reading the request head.
	ReadTimeout time.Duration `toml:"read_timeout" yaml:"read_timeout"`
	// WriteTimeout bounds the time spent writing the response.
	WriteTimeout time.Duration `toml:"write_timeout" yaml:"write_timeout"`
	// LogLevel is a zerolog level name (e.g., "debug", "info", "warn").
	LogLevel string `toml:"log_level" yaml:"log_level"`
	// LogFormat is FormatConsole for human-readable output or FormatJSON.
	LogFormat string `toml:"log_format" yaml:"log_format"`
	// Types adds or overrides content types by file extension
	// (e.g., {"svg": "image/svg+xml"}).
	Types map[string]string `toml:"types" yaml:"types"`
}

// Default returns the configuration used when nothing else is specified.
func Default() Config {
	return Config{
		Host:         "127.0.0.1",
		Port:         8080,
		Root:         "public",
		Mode:         ModeConcurrent,
		MaxConns:     256,
		MaxHeadBytes: 1024,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		LogLevel:     "info",
		LogFormat:    FormatConsole,
	}
}

// Load reads the file at path on top of Default. The decoder is chosen by
// extension: .toml, .yaml or .yml. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return cfg, fmt.Errorf("%w: unknown keys in %s: %v", ErrInvalid, path, undecoded)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("%w: unsupported config format %q", ErrInvalid, filepath.Ext(path))
	}

	return cfg, nil
}

// Validate reports the first problem found in c.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalid, c.Port)
	}
	if c.Root == "" {
		return fmt.Errorf("%w: root directory is required", ErrInvalid)
	}
	if c.Mode != ModeConcurrent && c.Mode != ModeSequential {
		return fmt.Errorf("%w: mode must be %q or %q, got %q", ErrInvalid, ModeConcurrent, ModeSequential, c.Mode)
	}
	if c.MaxConns < 0 {
		return fmt.Errorf("%w: max_conns must not be negative", ErrInvalid)
	}
	if c.MaxHeadBytes < 16 {
		return fmt.Errorf("%w: max_head_bytes must be at least 16, got %d", ErrInvalid, c.MaxHeadBytes)
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalid)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %v", ErrInvalid, err)
	}
	if c.LogFormat != FormatConsole && c.LogFormat != FormatJSON {
		return fmt.Errorf("%w: log_format must be %q or %q, got %q", ErrInvalid, FormatConsole, FormatJSON, c.LogFormat)
	}
	for ext, ct := range c.Types {
		if ext == "" || strings.HasPrefix(ext, ".") || strings.ContainsAny(ext, "/\\") {
			return fmt.Errorf("%w: types: bad extension %q", ErrInvalid, ext)
		}
		if ct == "" {
			return fmt.Errorf("%w: types: empty content type for %q", ErrInvalid, ext)
		}
	}
	return nil
}

// Addr returns the listen address in host:port form.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
