// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package compat

import (
	"os"
	"strings"
)

/*
Registering a New Compat Flag

1. implement a getter on this package `Is<flag-name>Enabled()` and add the flag to GetEnabled()

2. circuit-break the legacy behavior behind that check:

    if compat.Is<flag-name>Enabled() {
        ...
    }

3. in tests, enable flag(s) by setting the environment variable:

    compat.ResetForTesting()
    os.Setenv(compat.Env, "<flag-name>,<other-flag-name>,...")
*/

// Env is the OS environment variable with comma-separated names of
// compat flags to enable.
const Env = "TEMPLARCOMPAT"

// GetEnabled reports the name of all enabled compat flags.
func GetEnabled() []string {
	flags := []string{}
	if IsBrokenConditionalsEnabled() {
		flags = append(flags, "broken-conditionals")
	}
	return flags
}

// IsBrokenConditionalsEnabled reports whether legacy conditional
// coercion was enabled: non-boolean conditional results are coerced
// to booleans with a warning instead of failing.
func IsBrokenConditionalsEnabled() bool {
	return isSet("broken-conditionals")
}

func isSet(flag string) bool {
	for _, setting := range getSettings() {
		if setting == flag {
			return true
		}
	}
	return false
}

func getSettings() []string {
	if settings == nil {
		for _, setting := range strings.Split(os.Getenv(Env), ",") {
			settings = append(settings, strings.ToLower(strings.TrimSpace(setting)))
		}
	}
	return settings
}

// settings cached copy of name of compat flags that are enabled (cleaned up).
var settings []string

// ResetForTesting clears the compat flag settings, forcing reload from the Env on next use.
//
// This is for testing purposes only.
func ResetForTesting() {
	settings = nil
}
