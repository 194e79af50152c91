// Package cmn provides common low-level types and utilities for all vplay packages
/*
 * Copyright (c) 2026, vplay authors. All rights reserved.
 */
package cmn

import (
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// Config is the process-wide renderer configuration. A zero value becomes
// usable after Validate, which fills in the defaults for empty fields;
// LoadConfig overlays a JSON or YAML file on top of the defaults.
type Config struct {
	// SPIRVCompiler selects the SPIR-V compiler backend:
	// "auto" (default), or an explicit backend name, e.g. "glslang-bin".
	SPIRVCompiler string `json:"spirv_compiler" yaml:"spirv_compiler"`

	// ShaderDir is scanned for GLSL sources by `vplay precompile`.
	ShaderDir string `json:"shader_dir" yaml:"shader_dir"`

	// ShaderCache is the path of the compiled-shader database
	// (":memory:" for a non-persistent cache).
	ShaderCache string `json:"shader_cache" yaml:"shader_cache"`

	// Verbosity is the glog V-level applied at startup.
	Verbosity int `json:"verbosity" yaml:"verbosity"`
}

func DefaultConfig() *Config {
	return &Config{
		SPIRVCompiler: "auto",
		ShaderCache:   ":memory:",
	}
}

// LoadConfig reads a configuration file; the decoder is picked by extension
// (.json, .yml, .yaml).
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = jsoniter.Unmarshal(b, cfg)
	case ".yml", ".yaml":
		err = yaml.Unmarshal(b, cfg)
	default:
		return nil, fmt.Errorf("unsupported config extension %q", ext)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Verbosity < 0 {
		return fmt.Errorf("invalid verbosity %d", c.Verbosity)
	}
	if c.SPIRVCompiler == "" {
		c.SPIRVCompiler = "auto"
	}
	if c.ShaderCache == "" {
		c.ShaderCache = ":memory:"
	}
	return nil
}
