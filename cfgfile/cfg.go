// Package cfgfile implements reading and writing of Factorio locale .cfg files.
//
// Format: [section] headers followed by key=value pairs, one per line. Lines
// starting with ';' or '#' are comments. A commented-out line may still carry
// structure: "; foo=Bar" is a disabled (tombstoned) key and "; [item-name]" is
// a disabled section header — both are recognised so tombstoned entries can be
// revived later.
//
// Every line keeps its original text verbatim, so an unmodified File
// serializes back byte-for-byte (modulo a single trailing newline). Parsing
// never fails: lines that fit no rule are carried through unchanged.
package cfgfile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ---------------------------------------------------------------------------
// Line model
// ---------------------------------------------------------------------------

// LineKind classifies each line in the file.
type LineKind int

const (
	KindBlank         LineKind = iota // blank / whitespace-only (or unclassifiable) line
	KindComment                       // full-line comment
	KindKeyValue                      // key=value pair, possibly commented out
	KindSectionHeader                 // [section] header, possibly commented out
)

// Line is a single physical line of a .cfg file.
type Line struct {
	// Raw is the original text, without the line terminator.
	Raw string
	// Kind is the syntactic classification of the line.
	Kind LineKind
	// Key is the normalized key name (KindKeyValue only).
	Key string
	// Section is the normalized header text incl. brackets (KindSectionHeader only).
	Section string
	// Commented is true when a structural line (key or header) is disabled
	// by a leading comment marker.
	Commented bool
}

// Value returns everything after the first '=' of a key=value line,
// with the leading comment prefix stripped for tombstoned lines.
func (l Line) Value() string {
	if l.Kind != KindKeyValue {
		return ""
	}
	s := StripCommentPrefix(l.Raw)
	if i := strings.Index(s, "="); i >= 0 {
		return s[i+1:]
	}
	return ""
}

// TranslatableValue returns the portion of the value before the first inline
// comment marker. Only this part is subject to rewriting by the translation
// service; the trailing ";..." annotation stays untouched.
func (l Line) TranslatableValue() string {
	v := l.Value()
	if i := strings.IndexAny(v, ";#"); i >= 0 {
		return v[:i]
	}
	return v
}

// StripCommentPrefix removes leading comment markers and whitespace
// ("; foo=Bar" -> "foo=Bar"). The result still contains trailing whitespace
// and inline comments.
func StripCommentPrefix(s string) string {
	return strings.TrimLeft(s, ";# \t")
}

// classify turns one raw line into a Line.
func classify(raw string) Line {
	trimmed := strings.TrimSpace(raw)
	stripped := strings.TrimSpace(StripCommentPrefix(raw))
	commented := strings.HasPrefix(trimmed, ";") || strings.HasPrefix(trimmed, "#")

	switch {
	case strings.HasPrefix(stripped, "[") && strings.HasSuffix(stripped, "]") && len(stripped) >= 2:
		return Line{Raw: raw, Kind: KindSectionHeader, Section: stripped, Commented: commented}

	case strings.Contains(stripped, "="):
		key := strings.TrimSpace(stripped[:strings.Index(stripped, "=")])
		if key == "" {
			// "=value" with no key — carry through as a comment.
			return Line{Raw: raw, Kind: KindComment, Commented: commented}
		}
		return Line{Raw: raw, Kind: KindKeyValue, Key: key, Commented: commented}

	case commented:
		return Line{Raw: raw, Kind: KindComment, Commented: true}

	default:
		// Blank or unclassifiable — preserved verbatim either way.
		return Line{Raw: raw, Kind: KindBlank}
	}
}

// ---------------------------------------------------------------------------
// File model
// ---------------------------------------------------------------------------

// File represents one parsed .cfg file.
type File struct {
	// Name is the bare filename (e.g. "items.cfg"); empty for in-memory files.
	Name string
	// Lines holds all lines in document order.
	Lines []Line
}

// Parse parses .cfg content. It never fails: every line is classified by
// purely syntactic rules and kept verbatim.
func Parse(text string) *File {
	f := &File{}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	rawLines := strings.Split(text, "\n")

	// Drop the trailing empty element of a text that ends with \n.
	if len(rawLines) > 0 && rawLines[len(rawLines)-1] == "" {
		rawLines = rawLines[:len(rawLines)-1]
	}

	for _, raw := range rawLines {
		f.Lines = append(f.Lines, classify(raw))
	}
	return f
}

// ParseFile reads and parses a .cfg file from disk.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	f := Parse(string(data))
	f.Name = filepath.Base(path)
	return f, nil
}

// Serialize renders the file back to text: raw lines joined with '\n' and
// exactly one trailing newline. An empty file serializes to "".
func (f *File) Serialize() string {
	if len(f.Lines) == 0 {
		return ""
	}
	var buf bytes.Buffer
	for _, ln := range f.Lines {
		buf.WriteString(ln.Raw)
		buf.WriteByte('\n')
	}
	return buf.String()
}

// WriteFile serializes and writes to path, creating parent directories.
func (f *File) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(f.Serialize()), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Sections
// ---------------------------------------------------------------------------

// Section is a named group of lines: the header plus everything up to the
// next header, in original order. Name is the normalized header text, so a
// genuine "[item-name]" and a tombstoned "; [item-name]" share one identity.
// Lines before the first header belong to a section with an empty Name.
type Section struct {
	Name  string
	Lines []Line
}

// Sections partitions the file into ordered sections.
func (f *File) Sections() []Section {
	var out []Section
	cur := Section{}
	for _, ln := range f.Lines {
		if ln.Kind == KindSectionHeader {
			if cur.Name != "" || len(cur.Lines) > 0 {
				out = append(out, cur)
			}
			cur = Section{Name: ln.Section, Lines: []Line{ln}}
			continue
		}
		cur.Lines = append(cur.Lines, ln)
	}
	if cur.Name != "" || len(cur.Lines) > 0 {
		out = append(out, cur)
	}
	return out
}

// ---------------------------------------------------------------------------
// Key inventory
// ---------------------------------------------------------------------------

// Key identifies one entry: the normalized section name plus the key text.
type Key struct {
	Section string
	Name    string
}

func (k Key) String() string {
	if k.Section == "" {
		return k.Name
	}
	return k.Section + " " + k.Name
}

// Keys returns the ordered (section, key) inventory of the file's active
// entries. Commented-out lines and tombstones are ignored — this is the
// inventory the exchange validator compares before and after a round trip.
func (f *File) Keys() []Key {
	var keys []Key
	section := ""
	for _, ln := range f.Lines {
		switch ln.Kind {
		case KindSectionHeader:
			if !ln.Commented {
				section = ln.Section
			}
		case KindKeyValue:
			if !ln.Commented {
				keys = append(keys, Key{Section: section, Name: ln.Key})
			}
		}
	}
	return keys
}

// ExtractKeys parses arbitrary text and returns its active key inventory.
func ExtractKeys(text string) []Key {
	return Parse(text).Keys()
}

// ---------------------------------------------------------------------------
// KeyIndex
// ---------------------------------------------------------------------------

// KeyIndex maps (section identity, key) to the line that defines it, for O(1)
// lookups during merge. Commented-out keys are indexed the same as active
// ones: a key is the same key whether tombstoned or not. If a key appears
// twice within one section (malformed input) the last occurrence wins.
type KeyIndex struct {
	byKey map[Key]Line
}

// NewKeyIndex builds the index over all key lines of f.
func NewKeyIndex(f *File) *KeyIndex {
	ix := &KeyIndex{byKey: make(map[Key]Line)}
	section := ""
	for _, ln := range f.Lines {
		switch ln.Kind {
		case KindSectionHeader:
			section = ln.Section
		case KindKeyValue:
			ix.byKey[Key{Section: section, Name: ln.Key}] = ln
		}
	}
	return ix
}

// Lookup returns the line recorded for (section, key).
func (ix *KeyIndex) Lookup(section, key string) (Line, bool) {
	ln, ok := ix.byKey[Key{Section: section, Name: key}]
	return ln, ok
}

// Len returns the number of indexed keys.
func (ix *KeyIndex) Len() int {
	return len(ix.byKey)
}
