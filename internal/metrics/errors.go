package metrics

import (
	"fmt"
	"regexp"
	"strings"
)

// errorLabels names the error types steps commonly fail with.
var errorLabels = map[string]string{
	"*step.PanicError":               "Step panic",
	"*step.AssertionError":           "Assertion failed",
	"*httpclient.StatusError":        "HTTP error response",
	"*url.Error":                     "Request URL error",
	"*errors.errorString":            "Error",
	"*errors.joinError":              "Error",
	"*fmt.wrapError":                 "Error",
	"*context.deadlineExceededError": "Context deadline exceeded",
	"context.deadlineExceededError":  "Context deadline exceeded",
}

var (
	acronymBoundary = regexp.MustCompile(`([A-Z]+)([A-Z][a-z])`)
	wordBoundary    = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	digitBoundary   = regexp.MustCompile(`([^0-9 ])([0-9])`)
)

// FriendlyErrorName turns a Go error type name, as printed by %T, into a
// report label such as "Op Error (net)".
func FriendlyErrorName(typeName string) string {
	name := strings.TrimSpace(typeName)
	if name == "" {
		return "Unknown error"
	}
	if label, ok := errorLabels[name]; ok {
		return label
	}

	name = strings.TrimPrefix(name, "*")
	name = name[strings.LastIndex(name, "/")+1:]
	pkg, ident, qualified := strings.Cut(name, ".")
	if !qualified {
		pkg, ident = "", name
	}

	label := splitCamel(ident)
	if pkg == "" || pkg == "main" {
		return label
	}
	return fmt.Sprintf("%s (%s)", label, pkg)
}

// splitCamel splits an identifier into capitalized words. Acronyms stay upper case.
func splitCamel(ident string) string {
	spaced := acronymBoundary.ReplaceAllString(ident, "$1 $2")
	spaced = wordBoundary.ReplaceAllString(spaced, "$1 $2")
	spaced = digitBoundary.ReplaceAllString(spaced, "$1 $2")

	words := strings.Fields(spaced)
	for i, w := range words {
		if strings.ToUpper(w) == w {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	if len(words) == 0 {
		return ident
	}
	return strings.Join(words, " ")
}
