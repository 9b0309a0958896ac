// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"templar.dev/templar/pkg/datatag"
	"templar.dev/templar/pkg/filepos"
)

// TrustPolicy decides what happens when a string that looks like a
// template lacks the TrustedAsTemplate tag.
type TrustPolicy int

const (
	// TrustPolicyError fails the evaluation with TrustViolationError.
	TrustPolicyError TrustPolicy = iota
	// TrustPolicyWarn leaves the string unrendered and warns.
	TrustPolicyWarn
	// TrustPolicyIgnore leaves the string unrendered silently.
	TrustPolicyIgnore
)

func (p TrustPolicy) String() string {
	switch p {
	case TrustPolicyError:
		return "error"
	case TrustPolicyWarn:
		return "warn"
	case TrustPolicyIgnore:
		return "ignore"
	default:
		return "unknown"
	}
}

// ParseTrustPolicy converts a policy name as given on the command
// line.
func ParseTrustPolicy(name string) (TrustPolicy, error) {
	switch name {
	case "error":
		return TrustPolicyError, nil
	case "warn":
		return TrustPolicyWarn, nil
	case "ignore":
		return TrustPolicyIgnore, nil
	default:
		return TrustPolicyError, TypeError{Expected: "trust policy of error, warn or ignore", Actual: name}
	}
}

// checkTrust gates template compilation: only strings tagged
// TrustedAsTemplate may be compiled. Returns whether rendering may
// proceed; under TrustPolicyError an untrusted template is an error.
func (e *Engine) checkTrust(value interface{}) (bool, error) {
	if datatag.IsTrusted(value) {
		return true, nil
	}

	str, _ := datatag.NativeValue(value).(string)
	if !e.containsTemplate(str) {
		// plain data; nothing would be compiled anyway
		return false, nil
	}

	origin := originPosition(value)
	switch e.trustPolicy {
	case TrustPolicyWarn:
		e.ui.Warnf("Not rendering untrusted template: %s (%s)\n", summarize(str), origin.AsCompactString())
		return false, nil
	case TrustPolicyIgnore:
		return false, nil
	default:
		return false, TrustViolationError{Value: str, Origin: origin}
	}
}

func originPosition(value interface{}) *filepos.Position {
	if origin, found := datatag.OriginOf(value); found {
		return origin.Position()
	}
	return filepos.NewUnknownPosition()
}
