package services

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Free-text plan and seguimiento fields end up rendered in exports and the
// web client, so markup is stripped on the way in.
var textPolicy = bluemonday.StrictPolicy()

// CleanText strips any HTML from a free-text field and trims whitespace.
func CleanText(s string) string {
	return strings.TrimSpace(textPolicy.Sanitize(s))
}

// CleanTextPtr sanitizes an optional free-text field in place. Blank values
// collapse to nil so the column stays NULL instead of empty-string.
func CleanTextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	cleaned := CleanText(*s)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}
