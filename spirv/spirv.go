// Package spirv selects and drives a GLSL-to-SPIR-V compiler backend and
// maintains a persistent cache of compiled shaders.
/*
 * Copyright (c) 2026, vplay authors. All rights reserved.
 */
package spirv

import (
	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// ShaderType enumerates the GLSL stages the renderer compiles.
type ShaderType int

const (
	Vertex ShaderType = iota
	Fragment
	Compute
)

// Stage returns the stage name as understood by glslang.
func (t ShaderType) Stage() string {
	switch t {
	case Vertex:
		return "vert"
	case Fragment:
		return "frag"
	case Compute:
		return "comp"
	}
	return "unknown"
}

// GLSLVersion is the #version all backends target.
const GLSLVersion = 450

// Compiler turns GLSL source into a SPIR-V module.
type Compiler interface {
	Name() string
	Compile(typ ShaderType, glsl string) ([]byte, error)
}

// ErrNoCompiler: no backend could be initialized.
var ErrNoCompiler = errors.New("no usable SPIR-V compiler")

type probe struct {
	name  string
	build func() (Compiler, error)
}

// Backends in probe order. shaderc is the generally preferred compiler but
// has no pure-Go binding; the glslang binary is the fallback that works
// wherever the SDK is installed.
var compilers = []probe{
	{name: "glslang-bin", build: newGlslang},
}

// Init picks a compiler backend. choice is "auto" or an explicit backend
// name from the config.
func Init(choice string) (Compiler, error) {
	return initFrom(compilers, choice)
}

func initFrom(probes []probe, choice string) (Compiler, error) {
	for _, p := range probes {
		if choice != "auto" && choice != p.name {
			continue
		}
		c, err := p.build()
		if err != nil {
			glog.V(2).Infof("SPIR-V compiler %q unavailable: %v", p.name, err)
			continue
		}
		glog.V(1).Infof("Initializing SPIR-V compiler %q", p.name)
		return c, nil
	}
	glog.Errorf("Failed initializing SPIR-V compiler (choice %q)", choice)
	return nil, errors.Wrapf(ErrNoCompiler, "choice %q", choice)
}
