// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package access

import (
	"fmt"

	goversion "github.com/hashicorp/go-version"

	"templar.dev/templar/pkg/datatag"
)

// WarningsUI is the sink for deprecation warnings. pkg/cmd/ui.UI
// satisfies it.
type WarningsUI interface {
	Warnf(pattern string, args ...interface{})
}

// DeprecationObserver warns once per distinct deprecation message
// when a value tagged Deprecated is read.
type DeprecationObserver struct {
	ui             WarningsUI
	currentVersion *goversion.Version
	seen           map[string]struct{}
}

var _ Observer = &DeprecationObserver{}

// NewDeprecationObserver builds an observer that words its warnings
// relative to currentVersion ("" disables removal-version comparison).
func NewDeprecationObserver(ui WarningsUI, currentVersion string) (*DeprecationObserver, error) {
	obs := &DeprecationObserver{ui: ui, seen: map[string]struct{}{}}
	if len(currentVersion) > 0 {
		ver, err := goversion.NewVersion(currentVersion)
		if err != nil {
			return nil, fmt.Errorf("Parsing current version '%s': %s", currentVersion, err)
		}
		obs.currentVersion = ver
	}
	return obs, nil
}

func (o *DeprecationObserver) Kind() string { return "deprecation" }

func (o *DeprecationObserver) InterestedIn() []string {
	return []string{datatag.DeprecatedType}
}

func (o *DeprecationObserver) ValueAccessed(value interface{}) {
	tag, found := datatag.FindTag(value, datatag.DeprecatedType)
	if !found {
		return
	}
	dep := tag.(datatag.Deprecated)

	msg := o.message(dep)
	if _, warned := o.seen[msg]; warned {
		return
	}
	o.seen[msg] = struct{}{}
	o.ui.Warnf("Deprecation: %s\n", msg)
}

func (o *DeprecationObserver) message(dep datatag.Deprecated) string {
	msg := dep.Msg
	if len(dep.Deprecator) > 0 {
		msg = fmt.Sprintf("%s (deprecated by %s)", msg, dep.Deprecator)
	}

	removal, found := dep.RemovalVersion()
	switch {
	case found && o.currentVersion != nil && o.currentVersion.GreaterThanOrEqual(removal):
		msg = fmt.Sprintf("%s; was scheduled for removal in version %s", msg, removal)
	case found:
		msg = fmt.Sprintf("%s; will be removed in version %s", msg, removal)
	case len(dep.Date) > 0:
		msg = fmt.Sprintf("%s; will be removed in a release after %s", msg, dep.Date)
	}
	return msg
}
