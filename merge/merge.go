// Package merge implements structural merging of locale .cfg files:
// source-language updates are reconciled into the destination-language file
// while existing translations are preserved and obsolete entries are
// tombstoned (commented out) instead of deleted.
package merge

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/modloc/modloc/cfgfile"
)

// tombstonePrefix is prepended to obsolete destination lines.
const tombstonePrefix = "; "

// commentPrefixRe matches the leading comment markers of a tombstoned line.
var commentPrefixRe = regexp.MustCompile(`^[;#\s]+`)

// Merge reconciles src (source language) into dst (existing destination
// language file) and returns the updated destination file:
//
//   - keys present in both keep the destination line, reactivated if it was
//     tombstoned;
//   - keys only in src are copied verbatim (new, untranslated);
//   - destination keys missing from their src section are appended at the
//     section's end with a comment prefix (tombstoned, never deleted);
//   - destination-only sections are appended wholesale, untouched.
//
// The output has blank-line runs collapsed and no trailing blank lines, so
// Merge(src, Merge(src, dst)) == Merge(src, dst).
func Merge(src, dst *cfgfile.File) *cfgfile.File {
	out := &cfgfile.File{Name: dst.Name}
	if out.Name == "" {
		out.Name = src.Name
	}

	dstIndex := cfgfile.NewKeyIndex(dst)
	dstSections := dst.Sections()

	// Keys seen live in each src section, keyed by section identity.
	liveKeys := make(map[string]map[string]bool)
	srcSections := make(map[string]bool)

	section := ""
	markLive := func(key string) {
		if liveKeys[section] == nil {
			liveKeys[section] = make(map[string]bool)
		}
		liveKeys[section][key] = true
	}

	closeSection := func() {
		if section == "" && liveKeys[section] == nil {
			return
		}
		out.Lines = append(out.Lines, tombstones(dstSections, section, liveKeys[section])...)
	}

	for _, ln := range src.Lines {
		switch {
		case ln.Kind == cfgfile.KindSectionHeader && !ln.Commented:
			closeSection()
			section = ln.Section
			srcSections[section] = true
			if liveKeys[section] == nil {
				liveKeys[section] = make(map[string]bool)
			}
			out.Lines = append(out.Lines, ln)

		case ln.Kind == cfgfile.KindKeyValue && !ln.Commented:
			markLive(ln.Key)
			if found, ok := dstIndex.Lookup(section, ln.Key); ok {
				out.Lines = append(out.Lines, reactivate(found))
			} else {
				out.Lines = append(out.Lines, ln)
			}

		default:
			// Comments, blanks, and tombstoned src lines pass through.
			out.Lines = append(out.Lines, ln)
		}
	}
	closeSection()

	// Destination-only sections survive verbatim, in their original order.
	for _, sec := range dstSections {
		if sec.Name == "" || srcSections[sec.Name] {
			continue
		}
		out.Lines = append(out.Lines, sec.Lines...)
		out.Lines = append(out.Lines, cfgfile.Line{Kind: cfgfile.KindBlank})
	}

	normalize(out)
	return out
}

// reactivate strips the tombstone prefix from a previously commented line so
// a key re-appearing in the source gets its old translation back.
func reactivate(ln cfgfile.Line) cfgfile.Line {
	if !ln.Commented {
		return ln
	}
	raw := commentPrefixRe.ReplaceAllString(ln.Raw, "")
	revived := cfgfile.Parse(raw)
	if len(revived.Lines) == 1 {
		return revived.Lines[0]
	}
	return ln
}

// tombstones returns the obsolete key lines of the named destination section:
// every key recorded there that was not seen live in the source walk, with a
// comment prefix added unless already present.
func tombstones(dstSections []cfgfile.Section, name string, live map[string]bool) []cfgfile.Line {
	var out []cfgfile.Line
	for _, sec := range dstSections {
		if sec.Name != name {
			continue
		}
		for _, ln := range sec.Lines {
			if ln.Kind != cfgfile.KindKeyValue {
				continue
			}
			if live[ln.Key] {
				continue
			}
			if ln.Commented {
				out = append(out, ln)
				continue
			}
			tombed := cfgfile.Parse(tombstonePrefix + ln.Raw)
			out = append(out, tombed.Lines[0])
		}
	}
	return out
}

// normalize collapses runs of blank lines to one and strips trailing blanks,
// keeping repeated merges from accumulating whitespace.
func normalize(f *cfgfile.File) {
	var out []cfgfile.Line
	blankRun := 0
	for _, ln := range f.Lines {
		if ln.Kind == cfgfile.KindBlank && strings.TrimSpace(ln.Raw) == "" {
			blankRun++
			if blankRun > 1 {
				continue
			}
			// Normalize whitespace-only lines to truly empty ones.
			ln = cfgfile.Line{Kind: cfgfile.KindBlank}
		} else {
			blankRun = 0
		}
		out = append(out, ln)
	}
	for len(out) > 0 && out[len(out)-1].Kind == cfgfile.KindBlank && strings.TrimSpace(out[len(out)-1].Raw) == "" {
		out = out[:len(out)-1]
	}
	f.Lines = out
}

// ---------------------------------------------------------------------------
// Directory-level merge
// ---------------------------------------------------------------------------

// MergeFile merges srcPath into dstPath on disk. A missing destination file
// becomes a verbatim copy of the source (first-time localization).
func MergeFile(srcPath, dstPath string) error {
	src, err := cfgfile.ParseFile(srcPath)
	if err != nil {
		return err
	}

	if _, err := os.Stat(dstPath); os.IsNotExist(err) {
		copied := &cfgfile.File{Name: filepath.Base(dstPath), Lines: src.Lines}
		return copied.WriteFile(dstPath)
	}

	dst, err := cfgfile.ParseFile(dstPath)
	if err != nil {
		return err
	}
	return Merge(src, dst).WriteFile(dstPath)
}

// MergeDir merges every .cfg file of srcDir into its same-named counterpart
// under dstDir, creating dstDir if needed. Returns the merged filenames.
func MergeDir(srcDir, dstDir string) ([]string, error) {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", srcDir, err)
	}
	if err := os.MkdirAll(dstDir, 0755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dstDir, err)
	}

	var merged []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".cfg") {
			continue
		}
		srcPath := filepath.Join(srcDir, e.Name())
		dstPath := filepath.Join(dstDir, e.Name())
		if err := MergeFile(srcPath, dstPath); err != nil {
			return merged, err
		}
		merged = append(merged, e.Name())
	}
	return merged, nil
}
