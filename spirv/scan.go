// Package spirv selects and drives a GLSL-to-SPIR-V compiler backend and
// maintains a persistent cache of compiled shaders.
/*
 * Copyright (c) 2026, vplay authors. All rights reserved.
 */
package spirv

import (
	"io/ioutil"
	"path/filepath"

	"github.com/golang/glog"
	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

var shaderExts = map[string]ShaderType{
	".vert": Vertex,
	".frag": Fragment,
	".comp": Compute,
}

// Precompile walks dir for GLSL sources and warms the cache, compiling
// misses with up to `workers` concurrent backend invocations. A close of
// stop aborts between files. Returns the number of shaders processed.
func (c *Cache) Precompile(dir string, comp Compiler, workers int, stop <-chan struct{}) (int, error) {
	type job struct {
		path string
		typ  ShaderType
	}
	var jobs []job
	err := godirwalk.Walk(dir, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			if typ, ok := shaderExts[filepath.Ext(path)]; ok {
				jobs = append(jobs, job{path: path, typ: typ})
			}
			return nil
		},
		Unsorted: true,
	})
	if err != nil {
		return 0, errors.Wrapf(err, "walk %s", dir)
	}

	if workers < 1 {
		workers = 1
	}
	var (
		group errgroup.Group
		sem   = make(chan struct{}, workers)
	)
	for _, j := range jobs {
		j := j
		select {
		case <-stop:
			glog.V(1).Infof("precompile aborted after scanning %d shaders", len(jobs))
			return 0, errors.New("aborted")
		default:
		}
		sem <- struct{}{}
		group.Go(func() error {
			defer func() { <-sem }()
			glsl, err := ioutil.ReadFile(j.path)
			if err != nil {
				return errors.Wrap(err, "read shader")
			}
			if _, err := c.CompileCached(comp, j.typ, string(glsl)); err != nil {
				return errors.Wrapf(err, "compile %s", j.path)
			}
			glog.V(4).Infof("precompiled %s", j.path)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return 0, err
	}
	return len(jobs), nil
}
