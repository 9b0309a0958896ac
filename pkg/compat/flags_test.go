// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package compat

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlagsDisabledByDefault(t *testing.T) {
	ResetForTesting()
	os.Unsetenv(Env)

	assert.False(t, IsBrokenConditionalsEnabled())
	assert.Empty(t, GetEnabled())
}

func TestFlagsEnabledFromEnv(t *testing.T) {
	ResetForTesting()
	defer ResetForTesting()
	t.Setenv(Env, " Broken-Conditionals , other")

	assert.True(t, IsBrokenConditionalsEnabled())
	assert.Equal(t, []string{"broken-conditionals"}, GetEnabled())
}
