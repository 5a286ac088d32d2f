// Package config resolves the harness configuration from the first existing
// candidate file, falling back to built-in defaults.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultSection holds keys every other section inherits.
	DefaultSection      = "DEFAULT"
	EnvironmentsSection = "ENVIRONMENTS"
	DriversSection      = "DRIVERS"

	// UserConfigName is looked up in the user's home directory.
	UserConfigName = ".fe_automation_config.ini"
	// LocalConfigName is looked up in the working directory.
	LocalConfigName = "config.ini"
)

var (
	ErrParse              = errors.New("malformed configuration")
	ErrUnknownEnvironment = errors.New("unknown environment")
)

// ParseError reports a configuration file that exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing config %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// Config is a read-only section -> key -> value mapping.
type Config struct {
	source   string
	sections map[string]map[string]string
}

// Default returns the configuration used when no candidate file exists.
func Default() *Config {
	return &Config{
		sections: map[string]map[string]string{
			DefaultSection: {
				"browser":         "chrome",
				"timeout":         "10",
				"screenshot_path": "./screenshots",
				"log_level":       "INFO",
			},
			EnvironmentsSection: {
				"prod_url":    "https://24h.pchome.com.tw/",
				"staging_url": "https://staging.pchome.com.tw/",
			},
		},
	}
}

// Resolve loads the first existing candidate from CandidatePaths. When none
// exists the defaults are returned.
func Resolve(explicitPath string) (*Config, error) {
	path := FindConfigFile(explicitPath)
	if path == "" {
		return Default(), nil
	}
	return LoadConfig(path)
}

// CandidatePaths lists the config locations in lookup order.
func CandidatePaths(explicitPath string) []string {
	var paths []string
	if explicitPath != "" {
		paths = append(paths, explicitPath)
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, UserConfigName))
	}
	if wd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(wd, LocalConfigName))
	} else {
		paths = append(paths, LocalConfigName)
	}
	return paths
}

// FindConfigFile returns the first candidate that exists, or "".
func FindConfigFile(explicitPath string) string {
	for _, path := range CandidatePaths(explicitPath) {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// LoadConfig parses a single file. The format is picked from the extension;
// anything that is not YAML, JSON or TOML is read as INI.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var sections map[string]map[string]string
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		sections, err = decodeStructured(data, yaml.Unmarshal)
	case ".json":
		sections, err = decodeStructured(data, json.Unmarshal)
	case ".toml":
		sections, err = decodeStructured(data, toml.Unmarshal)
	default:
		sections, err = decodeINI(data)
	}
	if err != nil {
		return nil, &ParseError{Path: filename, Err: err}
	}

	return &Config{source: filename, sections: sections}, nil
}

func decodeINI(data []byte) (map[string]map[string]string, error) {
	f, err := ini.LoadSources(ini.LoadOptions{
		InsensitiveKeys: true,
		// "#" and ";" only start a comment at the beginning of a line.
		IgnoreInlineComment: true,
	}, data)
	if err != nil {
		return nil, err
	}
	sections := make(map[string]map[string]string)
	for _, sec := range f.Sections() {
		keys := sec.Keys()
		if len(keys) == 0 && sec.Name() == ini.DefaultSection {
			continue
		}
		values := make(map[string]string, len(keys))
		for _, k := range keys {
			values[k.Name()] = k.String()
		}
		sections[sec.Name()] = values
	}
	return sections, nil
}

func decodeStructured(data []byte, unmarshal func([]byte, any) error) (map[string]map[string]string, error) {
	var raw map[string]map[string]any
	if err := unmarshal(data, &raw); err != nil {
		return nil, err
	}
	sections := make(map[string]map[string]string, len(raw))
	for name, keys := range raw {
		values := make(map[string]string, len(keys))
		for k, v := range keys {
			values[strings.ToLower(k)] = fmt.Sprint(v)
		}
		sections[name] = values
	}
	return sections, nil
}

// Source is the path the configuration was read from, empty for defaults.
func (c *Config) Source() string {
	return c.source
}

func (c *Config) lookup(section, key string) (string, bool) {
	key = strings.ToLower(key)
	if v, ok := c.sections[section][key]; ok {
		return v, true
	}
	v, ok := c.sections[DefaultSection][key]
	return v, ok
}

// Get returns the value of key in section, then in DEFAULT, then fallback.
func (c *Config) Get(section, key, fallback string) string {
	if v, ok := c.lookup(section, key); ok {
		return v
	}
	return fallback
}

// GetInt is Get for integers. Unparsable values yield the fallback.
func (c *Config) GetInt(section, key string, fallback int) int {
	v, ok := c.lookup(section, key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}

// GetBool accepts the boolean spellings configparser does.
func (c *Config) GetBool(section, key string, fallback bool) bool {
	v, ok := c.lookup(section, key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "yes", "true", "on":
		return true
	case "0", "no", "false", "off":
		return false
	}
	return fallback
}

// GetSeconds reads an integer number of seconds.
func (c *Config) GetSeconds(section, key string, fallback time.Duration) time.Duration {
	n := c.GetInt(section, key, -1)
	if n < 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}

// EnvironmentURL returns ENVIRONMENTS/<env>_url.
func (c *Config) EnvironmentURL(env string) (string, error) {
	env = strings.ToLower(strings.TrimSpace(env))
	if v, ok := c.sections[EnvironmentsSection][env+"_url"]; ok && v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEnvironment, env)
}
