// Package config layers armor-packer settings: defaults, then an
// armorpack.{toml,yaml} file, then ARMORPACK_* environment variables, then
// command-line flags bound by the caller.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"mvdan.cc/sh/v3/shell"
)

const (
	// FileName is the config file name without extension.
	FileName = "armorpack"
	// EnvPrefix prefixes environment overrides, e.g. ARMORPACK_TYPE.
	EnvPrefix = "ARMORPACK"
)

// Keys understood by Load.
const (
	KeyType           = "type"
	KeyPython         = "python"
	KeyPyarmor        = "pyarmor"
	KeyDebug          = "debug"
	KeyArchiveExclude = "archive_exclude"
)

// Config is the effective configuration of one run.
type Config struct {
	Type           string   `mapstructure:"type" toml:"type"`
	Python         string   `mapstructure:"python" toml:"python"`
	Pyarmor        string   `mapstructure:"pyarmor" toml:"pyarmor"`
	Debug          bool     `mapstructure:"debug" toml:"debug"`
	ArchiveExclude []string `mapstructure:"archive_exclude" toml:"archive_exclude"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	python := "python3"
	if runtime.GOOS == "windows" {
		python = "python"
	}
	return Config{
		Type:           "PyInstaller",
		Python:         python,
		Pyarmor:        "pyarmor",
		ArchiveExclude: []string{"obf/**"},
	}
}

// LoadOptions selects the config file.
type LoadOptions struct {
	// ConfigFile is used exclusively when set and must exist.
	ConfigFile string
	// SearchDir is searched for armorpack.* when ConfigFile is empty.
	// Defaults to the working directory.
	SearchDir string
}

// New returns a viper instance with defaults and environment binding set.
// Callers bind their flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	d := Defaults()
	v.SetDefault(KeyType, d.Type)
	v.SetDefault(KeyPython, d.Python)
	v.SetDefault(KeyPyarmor, d.Pyarmor)
	v.SetDefault(KeyDebug, d.Debug)
	v.SetDefault(KeyArchiveExclude, d.ArchiveExclude)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file, if any, into v and returns the effective
// configuration and the path of the file that was read.
func Load(v *viper.Viper, opts LoadOptions) (Config, string, error) {
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, "", fmt.Errorf("read config %s: %w", opts.ConfigFile, err)
		}
	} else {
		dir := opts.SearchDir
		if dir == "" {
			dir = "."
		}
		v.SetConfigName(FileName)
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, "", fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, "", fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, v.ConfigFileUsed(), nil
}

// PythonCommand splits Python with shell rules, e.g. "py -3.11".
func (c Config) PythonCommand() ([]string, error) {
	return command(KeyPython, c.Python)
}

// PyarmorCommand splits Pyarmor with shell rules, e.g. "python3 -m pyarmor".
func (c Config) PyarmorCommand() ([]string, error) {
	return command(KeyPyarmor, c.Pyarmor)
}

func command(key, s string) ([]string, error) {
	fields, err := shell.Fields(s, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid %s command %q: %w", key, s, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%s command is empty", key)
	}
	return fields, nil
}

// Render encodes cfg as TOML.
func Render(cfg Config) ([]byte, error) {
	return toml.Marshal(cfg)
}
