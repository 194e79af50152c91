// Package csp provides colorspace metadata, conversion matrices and
// equalizer parameter mapping for the video renderer.
/*
 * Copyright (c) 2026, vplay authors. All rights reserved.
 */
package csp

import "math"

// EqualizerOpts are the user-facing integer controls, each in [-100,100].
type EqualizerOpts struct {
	Brightness int `json:"brightness" yaml:"brightness"`
	Saturation int `json:"saturation" yaml:"saturation"`
	Contrast   int `json:"contrast" yaml:"contrast"`
	Hue        int `json:"hue" yaml:"hue"`
	Gamma      int `json:"gamma" yaml:"gamma"`
}

// ColorAdjustment is the normalized form the renderer consumes.
type ColorAdjustment struct {
	Brightness float64 // additive, 0 = neutral
	Contrast   float64 // multiplicative, 1 = neutral
	Hue        float64 // radians
	Saturation float64 // multiplicative, 1 = neutral
	Gamma      float64 // 1 = neutral
}

// Adjustment converts the integer controls to renderer parameters.
func (eq EqualizerOpts) Adjustment() ColorAdjustment {
	return ColorAdjustment{
		Brightness: float64(eq.Brightness) / 100.0,
		Contrast:   float64(eq.Contrast+100) / 100.0,
		Hue:        float64(eq.Hue) / 100.0 * math.Pi,
		Saturation: float64(eq.Saturation+100) / 100.0,
		Gamma:      math.Exp(math.Log(8.0) * float64(eq.Gamma) / 100.0),
	}
}

// Neutral reports whether the controls are all at their defaults.
func (eq EqualizerOpts) Neutral() bool {
	return eq == EqualizerOpts{}
}
