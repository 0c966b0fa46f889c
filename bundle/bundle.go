// Package bundle joins multiple locale files into one exchange payload and
// splits such a payload back into files.
//
// Each file is wrapped in a pair of marker lines:
//
//	; ===FILE: items.cfg ===
//	...file content...
//	; ===END FILE: items.cfg ===
//
// The markers start with ';' so the game treats them as comments, and they
// are the only structural contract the translation service must preserve
// character-for-character; everything the service writes outside a marker
// pair is discarded on Split.
package bundle

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrDuplicateName is returned by Join when two files share a name.
var ErrDuplicateName = errors.New("duplicate file name in bundle")

// beginRe matches a begin marker line and captures the filename.
var beginRe = regexp.MustCompile(`^\s*;\s*===FILE:\s*(.+?)\s*===\s*$`)

// endPrefix is the prefix an end marker line starts with (after trimming).
const endPrefix = "; ===END FILE:"

// File is one named file inside a bundle, in payload order.
type File struct {
	Name string
	Text string
}

// BeginMarker returns the exact begin marker line for a filename.
func BeginMarker(name string) string {
	return fmt.Sprintf("; ===FILE: %s ===", name)
}

// EndMarker returns the exact end marker line for a filename.
func EndMarker(name string) string {
	return fmt.Sprintf("; ===END FILE: %s ===", name)
}

// Join concatenates the files into one payload: for each file its begin
// marker, the text with trailing newlines trimmed, its end marker, and a
// separating blank line. Filenames must be unique.
func Join(files []File) (string, error) {
	seen := make(map[string]bool, len(files))
	var parts []string
	for _, f := range files {
		if seen[f.Name] {
			return "", fmt.Errorf("%w: %s", ErrDuplicateName, f.Name)
		}
		seen[f.Name] = true
		parts = append(parts, BeginMarker(f.Name))
		parts = append(parts, strings.TrimRight(f.Text, "\n"))
		parts = append(parts, EndMarker(f.Name))
		parts = append(parts, "")
	}
	return strings.TrimRight(strings.Join(parts, "\n"), "\n") + "\n", nil
}

// Split cuts a payload back into files by scanning for marker pairs. Lines
// outside any pair are dropped, which tolerates stray commentary the
// translation service may add around the payload. A begin marker that is
// never closed still yields its accumulated buffer (best effort; callers
// must validate the result before trusting it). Each file's text ends with
// exactly one newline.
func Split(payload string) []File {
	var out []File
	current := ""
	open := false
	var buf []string

	flush := func() {
		out = append(out, File{Name: current, Text: strings.TrimRight(strings.Join(buf, "\n"), "\n") + "\n"})
		open = false
		buf = nil
	}

	for _, line := range strings.Split(payload, "\n") {
		if m := beginRe.FindStringSubmatch(line); m != nil {
			if open {
				// Unclosed previous file, keep what we have.
				flush()
			}
			current = m[1]
			open = true
			buf = nil
			continue
		}
		if open && strings.HasPrefix(strings.TrimSpace(line), endPrefix) {
			flush()
			continue
		}
		if open {
			buf = append(buf, line)
		}
	}
	if open {
		flush()
	}
	return out
}

// Names returns the filenames of every begin marker in the payload, in order.
func Names(payload string) []string {
	var names []string
	for _, line := range strings.Split(payload, "\n") {
		if m := beginRe.FindStringSubmatch(line); m != nil {
			names = append(names, m[1])
		}
	}
	return names
}

// HasMarkers reports whether the payload contains the exact begin and end
// marker lines for every expected name.
func HasMarkers(payload string, names []string) bool {
	return len(MissingMarkers(payload, names)) == 0
}

// MissingMarkers returns the marker lines that are absent from the payload,
// compared character-for-character against whole lines.
func MissingMarkers(payload string, names []string) []string {
	present := make(map[string]bool)
	for _, line := range strings.Split(payload, "\n") {
		present[line] = true
	}

	var missing []string
	for _, name := range names {
		if !present[BeginMarker(name)] {
			missing = append(missing, BeginMarker(name))
		}
		if !present[EndMarker(name)] {
			missing = append(missing, EndMarker(name))
		}
	}
	return missing
}

// ToMap converts a file list to a name→text map.
func ToMap(files []File) map[string]string {
	m := make(map[string]string, len(files))
	for _, f := range files {
		m[f.Name] = f.Text
	}
	return m
}
