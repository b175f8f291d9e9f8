// Package config handles the ogpeek.toml configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/kisielk/ogpeek"
	"github.com/kisielk/ogpeek/torch"
)

// FileName is the name of the configuration file looked up by Find.
const FileName = "ogpeek.toml"

// Formats lists the output formats understood by the renderer.
var Formats = []string{"text", "json", "yaml", "cbor"}

// Config is the ogpeek configuration.
type Config struct {
	// MaxDepth bounds memo reference resolution.
	MaxDepth int `toml:"max-depth"`
	// Resolve tells whether references are resolved before output.
	Resolve bool   `toml:"resolve"`
	Format  string `toml:"format"`

	Tensors Tensors `toml:"tensors"`

	// Path is the file the configuration was loaded from, if any.
	Path string `toml:"-"`
}

// Tensors configures checkpoint loading.
type Tensors struct {
	Digest    bool `toml:"digest"`
	CacheSize int  `toml:"cache-size"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		MaxDepth: ogpeek.DefaultMaxDepth,
		Resolve:  true,
		Format:   "text",
		Tensors:  Tensors{CacheSize: torch.DefaultCacheSize},
	}
}

// Load parses the configuration file at path on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	c := Default()
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undec := md.Undecoded(); len(undec) != 0 {
		return nil, fmt.Errorf("%s: unknown key %q", path, undec[0].String())
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.Path = path
	return c, nil
}

// Find loads FileName from dir or the closest of its parents. The defaults
// are returned if there is no such file.
func Find(dir string) (*Config, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	for {
		path := filepath.Join(dir, FileName)
		_, err := os.Stat(path)
		if err == nil {
			return Load(path)
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

// Validate checks that c holds usable values.
func (c *Config) Validate() error {
	if c.MaxDepth <= 0 {
		return fmt.Errorf("max-depth must be positive; got %d", c.MaxDepth)
	}
	if !ValidFormat(c.Format) {
		return fmt.Errorf("invalid format %q: must be one of %v", c.Format, Formats)
	}
	if c.Tensors.CacheSize <= 0 {
		return fmt.Errorf("tensors.cache-size must be positive; got %d", c.Tensors.CacheSize)
	}
	return nil
}

// ValidFormat tells whether format is one of Formats.
func ValidFormat(format string) bool {
	for _, f := range Formats {
		if f == format {
			return true
		}
	}
	return false
}

// TorchOptions returns the checkpoint loading options selected by c.
func (c *Config) TorchOptions() torch.Options {
	return torch.Options{
		MaxDepth:  c.MaxDepth,
		Digest:    c.Tensors.Digest,
		CacheSize: c.Tensors.CacheSize,
	}
}
