package model

import (
	"fmt"
	"strings"
)

// ErrorInfo is a tree of structured errors:
// a status code, the call site that produced it, a detail message, and an
// optional list of cause ErrorInfos. A retry-exhausted error's causes are
// each failed attempt's distinct leaf error; a "retries exhausted" root
// itself carries StatusRetries, StatusAllResponsesNull, or the status every
// attempt shared when they all failed the same way.
//
// ErrorInfo implements error so it composes with the standard errors
// package, but callers that want the full cause tree (the CLI's verbose
// trace, or a test asserting on retry shape) should type-assert to
// *ErrorInfo rather than unwrap string text.
type ErrorInfo struct {
	Status Status
	Site   string // call-site tag, e.g. "i2c.Read", "ddc.getVCP"
	Detail string
	Causes []*ErrorInfo
}

func New(status Status, site, detail string) *ErrorInfo {
	return &ErrorInfo{Status: status, Site: site, Detail: detail}
}

func Wrap(status Status, site, detail string, causes ...*ErrorInfo) *ErrorInfo {
	return &ErrorInfo{Status: status, Site: site, Detail: detail, Causes: causes}
}

func (e *ErrorInfo) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Site, e.Status)
	}
	return fmt.Sprintf("%s: %s: %s", e.Site, e.Status, e.Detail)
}

// AllCausesSameStatus reports whether every cause in the tree's immediate
// children carries the given status. It returns false for a node with no
// causes.
func (e *ErrorInfo) AllCausesSameStatus(status Status) bool {
	if e == nil || len(e.Causes) == 0 {
		return false
	}
	for _, c := range e.Causes {
		if c.Status != status {
			return false
		}
	}
	return true
}

// Pretty renders the cause tree for CLI verbose output, one line per node,
// indented by depth.
func (e *ErrorInfo) Pretty() string {
	var b strings.Builder
	e.pretty(&b, 0)
	return b.String()
}

func (e *ErrorInfo) pretty(b *strings.Builder, depth int) {
	if e == nil {
		return
	}
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(e.Error())
	b.WriteByte('\n')
	for _, c := range e.Causes {
		c.pretty(b, depth+1)
	}
}

// Equal compares two cause trees by structure, used by tests that assert on
// retry shape rather than on pointer identity.
func (e *ErrorInfo) Equal(other *ErrorInfo) bool {
	if e == nil || other == nil {
		return e == other
	}
	if e.Status != other.Status || e.Site != other.Site || e.Detail != other.Detail {
		return false
	}
	if len(e.Causes) != len(other.Causes) {
		return false
	}
	for i := range e.Causes {
		if !e.Causes[i].Equal(other.Causes[i]) {
			return false
		}
	}
	return true
}
