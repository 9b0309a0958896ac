// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

// Package access provides the audit context notified whenever a
// tagged value is read during template evaluation. Observers nest as
// a stack; notification runs innermost-first, and a masking observer
// hides older observers of its own kind.
package access

import (
	"fmt"

	"templar.dev/templar/pkg/datatag"
)

// Observer receives read notifications for values flowing out of
// containers and variables during evaluation.
type Observer interface {
	// Kind groups observers for masking. A masking frame hides only
	// older observers of the same kind.
	Kind() string
	// InterestedIn lists the tag type names and native value type
	// names the observer wants notifications for. Nil means every
	// access.
	InterestedIn() []string
	ValueAccessed(value interface{})
}

// Context is the observer stack for one evaluation. It is not safe
// for concurrent use; each engine evaluation owns its own Context.
type Context struct {
	frames []frame
}

type frame struct {
	observer Observer
	masking  bool
}

func NewContext() *Context {
	return &Context{}
}

// Push installs an observer as the innermost frame. With masking set,
// older frames of the same kind receive no notifications while it is
// installed; observers of other kinds are unaffected. The returned
// Frame must be popped in LIFO order.
func (c *Context) Push(observer Observer, masking bool) Frame {
	c.frames = append(c.frames, frame{observer, masking})
	return Frame{c, len(c.frames)}
}

// NotifyAccess reports a value read to every installed observer that
// is interested in one of the value's tag or value types and is not
// masked, innermost-first.
func (c *Context) NotifyAccess(value interface{}) {
	names := accessTypeNames(value)
	masked := map[string]struct{}{}
	for i := len(c.frames) - 1; i >= 0; i-- {
		fr := c.frames[i]
		kind := fr.observer.Kind()
		if _, hidden := masked[kind]; hidden {
			continue
		}
		if fr.masking {
			masked[kind] = struct{}{}
		}
		if interestedIn(fr.observer, names) {
			fr.observer.ValueAccessed(value)
		}
	}
}

// accessTypeNames is the dispatch set for one access: the value's tag
// type names plus the native value's own type name.
func accessTypeNames(value interface{}) map[string]struct{} {
	names := map[string]struct{}{}
	for _, tag := range datatag.TagsOf(value) {
		names[tag.TypeName()] = struct{}{}
	}
	names[fmt.Sprintf("%T", datatag.NativeValue(value))] = struct{}{}
	return names
}

func interestedIn(o Observer, names map[string]struct{}) bool {
	wanted := o.InterestedIn()
	if len(wanted) == 0 {
		return true
	}
	for _, name := range wanted {
		if _, found := names[name]; found {
			return true
		}
	}
	return false
}

func (c *Context) Depth() int { return len(c.frames) }

// Frame is a handle to one installed observer.
type Frame struct {
	ctx   *Context
	depth int
}

// Pop uninstalls the frame's observer. Popping any frame other than
// the innermost is a programming error and panics.
func (f Frame) Pop() {
	if len(f.ctx.frames) != f.depth {
		panic(fmt.Sprintf("Expected to pop access frame at depth %d, but stack is at depth %d", f.depth, len(f.ctx.frames)))
	}
	f.ctx.frames = f.ctx.frames[:f.depth-1]
}
