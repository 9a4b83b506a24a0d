package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// ConfigSource represents a source of configuration values
type ConfigSource interface {
	GetString(key string) (string, bool)
	GetInt(key string) (int, bool)
	GetFloat(key string) (float64, bool)
	GetBool(key string) (bool, bool)
}

// EnvSource implements ConfigSource for environment variables
type EnvSource struct{}

func (e *EnvSource) GetString(key string) (string, bool) {
	value := os.Getenv(key)
	return value, value != ""
}

func (e *EnvSource) GetInt(key string) (int, bool) {
	value := os.Getenv(key)
	if value == "" {
		return 0, false
	}
	if i, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		return i, true
	}
	return 0, false
}

func (e *EnvSource) GetFloat(key string) (float64, bool) {
	value := os.Getenv(key)
	if value == "" {
		return 0, false
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
		return f, true
	}
	return 0, false
}

func (e *EnvSource) GetBool(key string) (bool, bool) {
	value := os.Getenv(key)
	if value == "" {
		return false, false
	}
	if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
		return b, true
	}
	return false, false
}

// FlagSource implements ConfigSource for command-line flags
type FlagSource struct {
	values map[string]interface{}
}

func NewFlagSource() *FlagSource {
	return &FlagSource{values: make(map[string]interface{})}
}

func (f *FlagSource) Set(key string, value interface{}) {
	f.values[key] = value
}

func (f *FlagSource) GetString(key string) (string, bool) {
	if value, exists := f.values[key]; exists {
		if str, ok := value.(string); ok && str != "" {
			return str, true
		}
	}
	return "", false
}

func (f *FlagSource) GetInt(key string) (int, bool) {
	if value, exists := f.values[key]; exists {
		if i, ok := value.(int); ok {
			return i, true
		}
	}
	return 0, false
}

func (f *FlagSource) GetFloat(key string) (float64, bool) {
	if value, exists := f.values[key]; exists {
		if fl, ok := value.(float64); ok {
			return fl, true
		}
	}
	return 0, false
}

func (f *FlagSource) GetBool(key string) (bool, bool) {
	if value, exists := f.values[key]; exists {
		if b, ok := value.(bool); ok {
			return b, true
		}
	}
	return false, false
}

// FileSource implements ConfigSource for a YAML config file read with viper.
// A missing file yields an empty source.
type FileSource struct {
	v    *viper.Viper
	used string
}

// NewFileSource reads path when given, otherwise searches config.yaml in ., ./config
// and $HOME/.wiki-relay.
func NewFileSource(path string) (*FileSource, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".wiki-relay"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return &FileSource{v: v}, nil
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return &FileSource{v: v, used: v.ConfigFileUsed()}, nil
}

// Used is the path of the file read, empty when none was found.
func (s *FileSource) Used() string { return s.used }

func (s *FileSource) lookup(key string) (interface{}, bool) {
	k := strings.ToLower(key)
	if !s.v.IsSet(k) {
		return nil, false
	}
	return s.v.Get(k), true
}

// GetString joins list values with commas so lists and CSV strings are interchangeable.
func (s *FileSource) GetString(key string) (string, bool) {
	raw, ok := s.lookup(key)
	if !ok {
		return "", false
	}
	if list, err := cast.ToStringSliceE(raw); err == nil {
		if _, isString := raw.(string); !isString {
			return strings.Join(list, ","), true
		}
	}
	str, err := cast.ToStringE(raw)
	if err != nil || str == "" {
		return "", false
	}
	return str, true
}

func (s *FileSource) GetInt(key string) (int, bool) {
	raw, ok := s.lookup(key)
	if !ok {
		return 0, false
	}
	i, err := cast.ToIntE(raw)
	return i, err == nil
}

func (s *FileSource) GetFloat(key string) (float64, bool) {
	raw, ok := s.lookup(key)
	if !ok {
		return 0, false
	}
	f, err := cast.ToFloat64E(raw)
	return f, err == nil
}

func (s *FileSource) GetBool(key string) (bool, bool) {
	raw, ok := s.lookup(key)
	if !ok {
		return false, false
	}
	b, err := cast.ToBoolE(raw)
	return b, err == nil
}
