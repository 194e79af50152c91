//go:build debug
// +build debug

// Package debug provides assertions and debug-build-only diagnostics.
/*
 * Copyright (c) 2026, vplay authors. All rights reserved.
 */
package debug

import (
	"fmt"

	"github.com/golang/glog"
)

const Enabled = true

func Assert(cond bool) {
	if !cond {
		glog.Flush()
		panic("debug assertion failed")
	}
}

func AssertMsg(cond bool, msg string) {
	if !cond {
		glog.Flush()
		panic("debug assertion failed: " + msg)
	}
}

func Assertf(cond bool, format string, args ...interface{}) {
	if !cond {
		AssertMsg(cond, fmt.Sprintf(format, args...))
	}
}

func Infof(format string, args ...interface{}) {
	glog.InfoDepth(1, fmt.Sprintf("[DEBUG] "+format, args...))
}
