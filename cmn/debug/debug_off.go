//go:build !debug
// +build !debug

// Package debug provides assertions and debug-build-only diagnostics.
/*
 * Copyright (c) 2026, vplay authors. All rights reserved.
 */
package debug

const Enabled = false

func Assert(bool)                          {}
func AssertMsg(bool, string)               {}
func Assertf(bool, string, ...interface{}) {}
func Infof(string, ...interface{})         {}
