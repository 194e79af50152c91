// Package cmn provides common low-level types and utilities for all vplay packages
/*
 * Copyright (c) 2026, vplay authors. All rights reserved.
 */
package cmn

import (
	"sync"
)

// StopCh is a specialized channel for stopping things.
type StopCh struct {
	once sync.Once
	ch   chan struct{}
}

func NewStopCh() *StopCh {
	return &StopCh{ch: make(chan struct{})}
}

func (sc *StopCh) Listen() <-chan struct{} { return sc.ch }

func (sc *StopCh) Close() {
	sc.once.Do(func() { close(sc.ch) })
}
