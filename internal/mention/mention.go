// Package mention extracts @username references from free text.
package mention

import "regexp"

// A mention is "@" followed by one or more letters, digits or underscores.
var pattern = regexp.MustCompile(`@([\p{L}\p{N}_]+)`)

// Resolve returns every distinct name mentioned in text, in order of first
// appearance. It never fails: tokens that do not match are ignored.
func Resolve(text string) []string {
	matches := pattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		name := m[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// IsValidName reports whether name could be produced by Resolve, which makes it
// usable as a mentionable username.
func IsValidName(name string) bool {
	return namePattern.MatchString(name)
}

var namePattern = regexp.MustCompile(`^[\p{L}\p{N}_]+$`)
