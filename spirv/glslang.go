// Package spirv selects and drives a GLSL-to-SPIR-V compiler backend.
/*
 * Copyright (c) 2026, vplay authors. All rights reserved.
 */
package spirv

import (
	"io/ioutil"
	"os"
	"os/exec"

	"github.com/pkg/errors"
)

// glslang shells out to the glslangValidator binary. Sources and modules go
// through short-lived temp files since the binary has no stdin/stdout mode.
type glslang struct {
	exe string
}

func newGlslang() (Compiler, error) {
	exe, err := exec.LookPath("glslangValidator")
	if err != nil {
		return nil, errors.Wrap(err, "glslangValidator not in PATH")
	}
	return &glslang{exe: exe}, nil
}

func (g *glslang) Name() string { return "glslang-bin" }

func (g *glslang) Compile(typ ShaderType, glsl string) ([]byte, error) {
	fglsl, err := ioutil.TempFile("", "vplay-shader-*.glsl")
	if err != nil {
		return nil, errors.Wrap(err, "create temp source")
	}
	defer os.Remove(fglsl.Name())
	if _, err := fglsl.WriteString(glsl); err != nil {
		fglsl.Close()
		return nil, errors.Wrap(err, "write temp source")
	}
	fglsl.Close()

	fspv, err := ioutil.TempFile("", "vplay-shader-*.spv")
	if err != nil {
		return nil, errors.Wrap(err, "create temp module")
	}
	fspv.Close()
	defer os.Remove(fspv.Name())

	cmd := exec.Command(g.exe, "-V", "-o", fspv.Name(), "-S", typ.Stage(), fglsl.Name())
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, errors.Wrapf(err, "glslangValidator: %s", out)
	}

	spv, err := ioutil.ReadFile(fspv.Name())
	if err != nil {
		return nil, errors.Wrap(err, "glslang returned success but no SPIR-V found")
	}
	if len(spv) == 0 || len(spv)%4 != 0 {
		return nil, errors.Errorf("truncated SPIR-V module (%d bytes)", len(spv))
	}
	return spv, nil
}
