// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package color

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsColorCapable(t *testing.T) {
	t.Setenv(NoColor, "1")
	assert.False(t, isColorCapable(), "Expected color output to be disabled")

	t.Setenv(ForceColor, "1")
	assert.False(t, isColorCapable(), "Expected color output to be disabled as NO_COLOR is still set")

	t.Setenv(NoColor, "")
	assert.True(t, isColorCapable(), "Expected color output to be enabled as FORCE_COLOR is set and NO_COLOR is unset")
}

func TestColorize(t *testing.T) {
	orig := Enabled()
	defer SetEnabled(orig)

	SetEnabled(false)
	assert.Equal(t, "plain", Colorize("plain", FgRed))

	SetEnabled(true)
	assert.Equal(t, "\033[31mred\033[0m", Colorize("red", FgRed))
	assert.Equal(t, "\033[1;32mok\033[0m", Colorize("ok", Bold, FgGreen))
	assert.Equal(t, "none", Colorize("none"))
}
