package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Keys read by the resolver.
const (
	KeyConcurrency = "storage.concurrency"
	KeyTimeout     = "storage.timeout"
)

// EnvPrefix is prepended to a key when looking it up in the environment.
const EnvPrefix = "BLUECTL"

var envKeyReplacer = strings.NewReplacer(".", "_", "-", "_")

// Source is a read-only key/value configuration source.
type Source interface {
	Lookup(key string) (string, bool)
}

// MapSource is a Source backed by a plain map.
type MapSource map[string]string

// Lookup implements Source.
func (m MapSource) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// EnvSource looks keys up in the process environment. "storage.concurrency"
// becomes BLUECTL_STORAGE_CONCURRENCY. Empty variables count as unset.
type EnvSource struct {
	v *viper.Viper
}

// NewEnvSource returns a Source reading BLUECTL_* variables.
func NewEnvSource() *EnvSource {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AllowEmptyEnv(false)
	v.AutomaticEnv()
	return &EnvSource{v: v}
}

// EnvName returns the environment variable name for key.
func EnvName(key string) string {
	return envKeyReplacer.Replace(strings.ToUpper(EnvPrefix + "_" + key))
}

// Lookup implements Source.
func (e *EnvSource) Lookup(key string) (string, bool) {
	if !e.v.IsSet(key) {
		return "", false
	}
	v := e.v.GetString(key)
	if v == "" {
		return "", false
	}
	return v, true
}

// Chain consults sources in order; the first one holding the key wins.
type Chain []Source

// Lookup implements Source.
func (c Chain) Lookup(key string) (string, bool) {
	for _, s := range c {
		if s == nil {
			continue
		}
		if v, ok := s.Lookup(key); ok {
			return v, true
		}
	}
	return "", false
}
