// Copyright (c) 2012-2018 The Revel Framework Authors, All rights reserved.
// Revel Framework source code and usage is governed by a MIT style
// license that can be found in the LICENSE file.

// Package devproxy holds the release information of the devproxy tool.
package devproxy

const (
	// Version current devproxy version
	Version = "0.3.0"

	// BuildDate latest commit/release date
	BuildDate = "2026-10-19"

	// MinimumGoVersion minimum required Go version for devproxy
	MinimumGoVersion = ">= go1.23"
)
