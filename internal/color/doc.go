// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package color decorates log output with ANSI escape codes.
//
// Colour is on when FORCE_COLOR is set, or when stdout is a terminal
// (golang.org/x/term). NO_COLOR always wins.
package color
