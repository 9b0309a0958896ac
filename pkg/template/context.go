// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package template

import "fmt"

// ContextFrame records one level of template evaluation: the value
// being evaluated, the options in effect, and whether this is the
// outermost evaluation.
type ContextFrame struct {
	Value    interface{}
	Options  TemplateOptions
	TopLevel bool
}

// ContextStack is the engine's explicit LIFO evaluation stack. Frames
// must be popped in reverse push order; popping out of order is a
// programming error and panics.
type ContextStack struct {
	frames []ContextFrame
}

func NewContextStack() *ContextStack {
	return &ContextStack{}
}

// Push enters a new frame. The frame is top-level only when the stack
// was empty.
func (s *ContextStack) Push(value interface{}, options TemplateOptions) StackFrame {
	frame := ContextFrame{Value: value, Options: options, TopLevel: len(s.frames) == 0}
	s.frames = append(s.frames, frame)
	return StackFrame{s, len(s.frames)}
}

// Current returns the innermost frame.
func (s *ContextStack) Current() (ContextFrame, bool) {
	if len(s.frames) == 0 {
		return ContextFrame{}, false
	}
	return s.frames[len(s.frames)-1], true
}

func (s *ContextStack) Depth() int { return len(s.frames) }

// StackFrame is the pop handle for one pushed frame.
type StackFrame struct {
	stack *ContextStack
	depth int
}

func (f StackFrame) Pop() {
	if len(f.stack.frames) != f.depth {
		panic(fmt.Sprintf("Expected to pop template context frame at depth %d, but stack is at depth %d", f.depth, len(f.stack.frames)))
	}
	f.stack.frames = f.stack.frames[:f.depth-1]
}
