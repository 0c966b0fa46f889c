// Package joblog implements translated_mods_log.jsonl, an append-only
// completion log with one JSON record per successfully translated mod.
// Batch runs consult it to skip mods that are already done.
package joblog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/modloc/modloc/modmeta"
)

// FileName is the default log file name.
const FileName = "translated_mods_log.jsonl"

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// Entry is one completion record.
type Entry struct {
	TS              string `json:"ts"`
	Archive         string `json:"archive,omitempty"`
	ModDir          string `json:"mod_dir"`
	Title           string `json:"title,omitempty"`
	Slug            string `json:"slug,omitempty"`
	Author          string `json:"author,omitempty"`
	ModVersion      string `json:"mod_version,omitempty"`
	FactorioVersion string `json:"factorio_version,omitempty"`
	Model           string `json:"model,omitempty"`
}

// NewEntry builds a record for a finished mod, timestamped now.
func NewEntry(modDir, archive, model string, meta *modmeta.Spec) Entry {
	e := Entry{
		TS:      time.Now().Format(time.RFC3339),
		Archive: archive,
		ModDir:  modDir,
		Model:   model,
	}
	if meta != nil {
		e.Title = meta.Title
		e.Slug = meta.Slug
		e.Author = meta.Author
		e.ModVersion = meta.ModVersion
		e.FactorioVersion = meta.FactorioVersion
	}
	return e
}

// Log is the loaded completion log.
type Log struct {
	mu      sync.Mutex
	path    string
	entries []Entry
	done    map[string]bool // mod_dir -> logged
}

// ---------------------------------------------------------------------------
// Loading and appending
// ---------------------------------------------------------------------------

// Open reads the log from the given directory. A missing file yields an
// empty log. Unparseable lines are skipped so one damaged record never
// blocks a batch run.
func Open(dir string) (*Log, error) {
	path := filepath.Join(dir, FileName)
	l := &Log{
		path: path,
		done: make(map[string]bool),
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		l.entries = append(l.entries, e)
		if e.ModDir != "" {
			l.done[e.ModDir] = true
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return l, nil
}

// Path returns the log file path.
func (l *Log) Path() string {
	return l.path
}

// Contains reports whether a mod directory has a completion record.
func (l *Log) Contains(modDir string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done[modDir]
}

// Append writes one record to the end of the log file and registers it in
// memory.
func (l *Log) Append(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling log entry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", l.path, err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing %s: %w", l.path, err)
	}

	l.entries = append(l.entries, e)
	if e.ModDir != "" {
		l.done[e.ModDir] = true
	}
	return nil
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// Entries returns a copy of all loaded records in file order.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Mods returns the sorted list of logged mod directories.
func (l *Log) Mods() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	mods := make([]string, 0, len(l.done))
	for m := range l.done {
		mods = append(mods, m)
	}
	sort.Strings(mods)
	return mods
}
