package library

import (
	"fmt"
	"strings"
)

const (
	fileExt = ".mp3"

	// maxNamePart caps artist/title segments so the composed filename
	// stays within filesystem limits.
	maxNamePart = 200
)

// FileName builds the canonical library filename for a track. The
// bracketed suffix carries the external id so an entry can be resolved
// from the filename alone, without a database lookup.
func FileName(artist, title, id string) string {
	return fmt.Sprintf("%s - %s [%s]%s", Sanitize(artist), Sanitize(title), id, fileExt)
}

// ParseID recovers the external id from a library filename. It reports
// false for files that do not follow the naming scheme.
func ParseID(name string) (string, bool) {
	if !strings.HasSuffix(name, fileExt) {
		return "", false
	}

	base := strings.TrimSuffix(name, fileExt)
	if !strings.HasSuffix(base, "]") {
		return "", false
	}

	open := strings.LastIndex(base, " [")
	if open < 0 {
		return "", false
	}

	id := base[open+2 : len(base)-1]
	if id == "" {
		return "", false
	}

	for _, r := range id {
		if !isIDChar(r) {
			return "", false
		}
	}

	return id, true
}

// Sanitize strips characters that are unsafe in filenames, trims
// trailing dots and spaces and caps the length of a name segment.
func Sanitize(part string) string {
	var b strings.Builder

	for _, r := range part {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
		default:
			b.WriteRune(r)
		}
	}

	out := strings.Trim(b.String(), ". ")
	if out == "" {
		return "unknown"
	}

	if runes := []rune(out); len(runes) > maxNamePart {
		out = string(runes[:maxNamePart])
	}

	return out
}

func isIDChar(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '-' || r == '_':
		return true
	}

	return false
}
