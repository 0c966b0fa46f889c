package translate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/modloc/modloc/bundle"
	"github.com/modloc/modloc/exchange"
	"github.com/modloc/modloc/modmeta"
)

// DefaultBundleLimit is the payload size above which a mod's files are
// exchanged one at a time instead of as a single bundle.
const DefaultBundleLimit = 140000

// ---------------------------------------------------------------------------
// Mod pipeline options
// ---------------------------------------------------------------------------

// Options controls the per-mod translation pipeline.
type Options struct {
	// Rewriter performs the external exchange. Usually a *Client.
	Rewriter exchange.Rewriter
	// Limiter spaces out dispatches. Optional.
	Limiter *exchange.Limiter
	// TargetLang is the human-readable target language name (e.g. "Russian").
	TargetLang string
	// Meta is optional mod metadata added to the instructions.
	Meta *modmeta.Spec
	// MaxRepairs / MaxQuotaRetries / QuotaCooldown are passed through to the
	// exchange coordinator; zero values use its defaults.
	MaxRepairs      int
	MaxQuotaRetries int
	QuotaCooldown   time.Duration
	// BundleLimit is the single-bundle payload size cap in characters.
	// Default: DefaultBundleLimit.
	BundleLimit int
	// DebugDir, when set, receives input and response dumps.
	DebugDir string
	// OnLog emits progress messages.
	OnLog func(format string, args ...any)
}

func (o *Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) bundleLimit() int {
	if o.BundleLimit > 0 {
		return o.BundleLimit
	}
	return DefaultBundleLimit
}

func (o *Options) coordinator() *exchange.Coordinator {
	c := &exchange.Coordinator{
		Rewriter:        o.Rewriter,
		Limiter:         o.Limiter,
		MaxRepairs:      o.MaxRepairs,
		MaxQuotaRetries: o.MaxQuotaRetries,
		QuotaCooldown:   o.QuotaCooldown,
		OnLog:           o.OnLog,
	}
	if o.DebugDir != "" {
		c.Dumper = &exchange.Dumper{Dir: o.DebugDir}
	}
	return c
}

// ---------------------------------------------------------------------------
// Pipeline
// ---------------------------------------------------------------------------

// Mod translates every .cfg file under localeDir in place and returns the
// translated filenames. When the joined bundle exceeds the size limit, each
// file is exchanged separately.
func Mod(ctx context.Context, localeDir string, opts Options) ([]string, error) {
	files, err := loadCfgFiles(localeDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}

	instructions := Instructions(opts.TargetLang, opts.Meta)
	coord := opts.coordinator()

	payload, err := bundle.Join(files)
	if err != nil {
		return nil, fmt.Errorf("joining bundle: %w", err)
	}

	if len(payload) > opts.bundleLimit() {
		opts.log("bundle is %d chars, above the %d limit, translating file by file",
			len(payload), opts.bundleLimit())
		return translatePerFile(ctx, localeDir, files, instructions, coord, &opts)
	}

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}

	out, err := coord.Run(ctx, exchange.Job{
		Name:         filepath.Base(localeDir),
		Payload:      payload,
		Instructions: instructions,
		Names:        names,
	})
	if err != nil {
		return nil, err
	}

	return writeBundle(localeDir, out, names)
}

// translatePerFile runs one exchange per file. A failure on one file aborts
// the whole mod so a partial translation is never recorded as done.
func translatePerFile(ctx context.Context, localeDir string, files []bundle.File, instructions string, coord *exchange.Coordinator, opts *Options) ([]string, error) {
	var written []string
	for _, f := range files {
		payload, err := bundle.Join([]bundle.File{f})
		if err != nil {
			return written, fmt.Errorf("joining %s: %w", f.Name, err)
		}

		out, err := coord.Run(ctx, exchange.Job{
			Name:         f.Name,
			Payload:      payload,
			Instructions: instructions,
			Names:        []string{f.Name},
		})
		if err != nil {
			return written, fmt.Errorf("translating %s: %w", f.Name, err)
		}

		w, err := writeBundle(localeDir, out, []string{f.Name})
		if err != nil {
			return written, err
		}
		written = append(written, w...)
	}
	return written, nil
}

// writeBundle splits an accepted payload and writes each expected file back
// to dir. Names outside the expected set are rejected rather than written.
func writeBundle(dir, payload string, names []string) ([]string, error) {
	parts := bundle.Split(payload)

	expected := make(map[string]bool, len(names))
	for _, n := range names {
		expected[n] = true
	}

	got := make(map[string]string, len(parts))
	for _, p := range parts {
		if !expected[p.Name] {
			return nil, fmt.Errorf("response contains unexpected file %q", p.Name)
		}
		got[p.Name] = p.Text
	}

	var written []string
	for _, name := range names {
		text, ok := got[name]
		if !ok {
			return written, fmt.Errorf("response is missing file %q", name)
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(text), 0644); err != nil {
			return written, fmt.Errorf("writing %s: %w", name, err)
		}
		written = append(written, name)
	}
	return written, nil
}

// loadCfgFiles reads every .cfg file directly under dir, sorted by name.
func loadCfgFiles(dir string) ([]bundle.File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading locale dir: %w", err)
	}

	var files []bundle.File
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".cfg") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		files = append(files, bundle.File{Name: e.Name(), Text: string(data)})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}
