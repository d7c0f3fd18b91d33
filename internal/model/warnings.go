package model

import "fmt"

// WarningKind names one class of non-fatal anomaly. Warnings accumulate on
// the final result; they are never returned as errors.
type WarningKind string

const (
	WarnCategoryParse    WarningKind = "category_parse"
	WarnUnresolvedLink   WarningKind = "unresolved_link"
	WarnUnresolvedMedia  WarningKind = "unresolved_media"
	WarnUnresolvedHandle WarningKind = "unresolved_handle"
	WarnCountMismatch    WarningKind = "count_mismatch"
	WarnLookupFailed     WarningKind = "lookup_failed"
)

// Warning records one degraded item: a category that failed to parse, a
// shortlink/media/handle left unresolved, or a declared count that does not
// match the parsed records.
type Warning struct {
	Kind    WarningKind
	Subject string
	Detail  string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s %s: %s", w.Kind, w.Subject, w.Detail)
}

// Warnf builds a Warning with a formatted detail.
func Warnf(kind WarningKind, subject, format string, args ...any) Warning {
	return Warning{Kind: kind, Subject: subject, Detail: fmt.Sprintf(format, args...)}
}
