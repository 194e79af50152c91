// Package spirv selects and drives a GLSL-to-SPIR-V compiler backend and
// maintains a persistent cache of compiled shaders.
/*
 * Copyright (c) 2026, vplay authors. All rights reserved.
 */
package spirv

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io/ioutil"

	"github.com/OneOfOne/xxhash"
	"github.com/golang/glog"
	"github.com/pierrec/lz4/v3"
	"github.com/pkg/errors"
	"github.com/tidwall/buntdb"
)

// Cache persists compiled SPIR-V modules keyed by a hash of the stage and
// source. Entries are lz4-compressed; the database path ":memory:" gives a
// process-lifetime cache.
type Cache struct {
	db *buntdb.DB
}

func OpenCache(path string) (*Cache, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open shader cache %s", path)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error { return c.db.Close() }

func cacheKey(typ ShaderType, glsl string) string {
	h := xxhash.New64()
	h.WriteString(typ.Stage())
	h.WriteString("\x00")
	h.WriteString(glsl)
	return fmt.Sprintf("spv:%s:%016x", typ.Stage(), h.Sum64())
}

// Get returns the cached module for the source, if present.
func (c *Cache) Get(typ ShaderType, glsl string) (spv []byte, ok bool) {
	var encoded string
	err := c.db.View(func(tx *buntdb.Tx) error {
		var err error
		encoded, err = tx.Get(cacheKey(typ, glsl))
		return err
	})
	if err != nil {
		return nil, false
	}
	packed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		glog.Errorf("shader cache entry corrupt: %v", err)
		return nil, false
	}
	spv, err = ioutil.ReadAll(lz4.NewReader(bytes.NewReader(packed)))
	if err != nil {
		glog.Errorf("shader cache entry corrupt: %v", err)
		return nil, false
	}
	return spv, true
}

// Put stores a compiled module.
func (c *Cache) Put(typ ShaderType, glsl string, spv []byte) error {
	var packed bytes.Buffer
	zw := lz4.NewWriter(&packed)
	if _, err := zw.Write(spv); err != nil {
		return errors.Wrap(err, "compress module")
	}
	if err := zw.Close(); err != nil {
		return errors.Wrap(err, "compress module")
	}
	encoded := base64.StdEncoding.EncodeToString(packed.Bytes())
	return c.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(cacheKey(typ, glsl), encoded, nil)
		return err
	})
}

// CompileCached compiles through the cache: a hit skips the backend
// entirely, a miss compiles and stores.
func (c *Cache) CompileCached(comp Compiler, typ ShaderType, glsl string) ([]byte, error) {
	if spv, ok := c.Get(typ, glsl); ok {
		return spv, nil
	}
	spv, err := comp.Compile(typ, glsl)
	if err != nil {
		return nil, err
	}
	if err := c.Put(typ, glsl, spv); err != nil {
		glog.Errorf("shader cache store failed: %v", err)
	}
	return spv, nil
}
