// Package tassert provides common asserts for tests
/*
 * Copyright (c) 2026, vplay authors. All rights reserved.
 */
package tassert

import (
	"fmt"
	"testing"
)

func CheckFatal(t *testing.T, err error) {
	if err != nil {
		t.Helper()
		t.Fatalf("unexpected error: %v", err)
	}
}

func CheckError(t *testing.T, err error) {
	if err != nil {
		t.Helper()
		t.Errorf("unexpected error: %v", err)
	}
}

func Fatalf(t *testing.T, cond bool, msg string, args ...interface{}) {
	if !cond {
		t.Helper()
		t.Fatalf(fmt.Sprintf(msg, args...))
	}
}

func Errorf(t *testing.T, cond bool, msg string, args ...interface{}) {
	if !cond {
		t.Helper()
		t.Errorf(fmt.Sprintf(msg, args...))
	}
}
