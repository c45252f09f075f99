// Package contextvalidator implements the Context Validator (spec.md
// §4.5): rejecting candidates whose surrounding UI container disagrees
// with the recorded context. Named contextvalidator (not "context") to
// avoid shadowing the standard library package in importers.
package contextvalidator

import (
	"strings"

	"github.com/selfheal/playback-core/internal/playback/model"
)

// Result is the outcome of Validate.
type Result struct {
	Expected model.ContextHint
	Actual   model.ContextHint
	IsValid  bool
	Reason   string
}

// AncestorInfo is the subset of an ancestor element's identity the
// validator needs to infer the actual surface.
type AncestorInfo struct {
	ClassNames []string
	Role       string
}

// Validator checks a candidate's surrounding container against the
// descriptor's recorded context.
type Validator struct{}

func New() *Validator { return &Validator{} }

// Validate infers the expected surface from the descriptor (falling
// back to class/xpath token inference if ContextHint is empty) and the
// actual surface from the candidate's ancestor chain, then applies the
// surface-compatibility rules from spec.md §4.5.
func (v *Validator) Validate(descriptor model.Bundle, candidateAncestors []AncestorInfo) Result {
	expected := descriptor.ContextHint
	if expected == "" {
		expected = inferFromTokens(descriptor.ClassNames)
	}
	actual := inferActual(candidateAncestors)

	if expected == actual {
		return Result{Expected: expected, Actual: actual, IsValid: true}
	}
	if expected == model.ContextGeneric {
		return Result{Expected: expected, Actual: actual, IsValid: true}
	}
	// Chat surfaces may legitimately be implemented atop a rich-text
	// surface; this specific mismatch is allowed in either direction.
	if isChatRichTextPair(expected, actual) {
		return Result{Expected: expected, Actual: actual, IsValid: true}
	}
	// Hard reject: one side terminal, the other not. Prevents routing
	// text input into a command surface.
	if expected == model.ContextTerminal || actual == model.ContextTerminal {
		return Result{
			Expected: expected, Actual: actual, IsValid: false,
			Reason: "terminal surface mismatch: refusing to route input across a terminal boundary",
		}
	}
	return Result{
		Expected: expected, Actual: actual, IsValid: false,
		Reason: "recorded context " + string(expected) + " does not match candidate's " + string(actual) + " surface",
	}
}

func isChatRichTextPair(a, b model.ContextHint) bool {
	pair := func(x, y model.ContextHint) bool {
		return x == model.ContextChatSurface && y == model.ContextRichTextSurface
	}
	return pair(a, b) || pair(b, a)
}

func inferActual(ancestors []AncestorInfo) model.ContextHint {
	for _, a := range ancestors {
		if hint := inferFromTokens(a.ClassNames); hint != model.ContextGeneric {
			return hint
		}
		if strings.EqualFold(a.Role, "terminal") {
			return model.ContextTerminal
		}
	}
	return model.ContextGeneric
}

var tokenHints = []struct {
	substr string
	hint   model.ContextHint
}{
	{"terminal", model.ContextTerminal},
	{"xterm", model.ContextTerminal},
	{"tty", model.ContextTerminal},
	{"chat", model.ContextChatSurface},
	{"conversation", model.ContextChatSurface},
	{"richtext", model.ContextRichTextSurface},
	{"rich-text", model.ContextRichTextSurface},
	{"editor", model.ContextRichTextSurface},
	{"prosemirror", model.ContextRichTextSurface},
	{"contenteditable", model.ContextRichTextSurface},
}

func inferFromTokens(classNames []string) model.ContextHint {
	for _, class := range classNames {
		lower := strings.ToLower(class)
		for _, th := range tokenHints {
			if strings.Contains(lower, th.substr) {
				return th.hint
			}
		}
	}
	return model.ContextGeneric
}
