// Package config — .modloc.yaml configuration file support.
//
// When a .modloc.yaml file exists in the project root, modloc uses it to
// configure languages, the mods directory layout, the AI provider, and the
// exchange budgets. A missing file is not an error: every field has a
// working default.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/modloc/modloc/langmeta"
)

// FileName is the default config file name.
const FileName = ".modloc.yaml"

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// File is the top-level .modloc.yaml structure.
type File struct {
	// SourceLang is the source locale code (default "en").
	SourceLang string `yaml:"source_lang,omitempty"`
	// TargetLang is the target locale code (default "ru").
	TargetLang string `yaml:"target_lang,omitempty"`
	// TargetLangName is the human-readable target language name used in the
	// translation instructions. Derived from TargetLang when empty.
	TargetLangName string `yaml:"target_lang_name,omitempty"`

	// ModsDir is the mods directory relative to the project root
	// (default "mods"). Unpacked mods live under <mods_dir>/unpacked/<mod>.
	ModsDir string `yaml:"mods_dir,omitempty"`

	// Provider is the AI provider ID (default "google").
	Provider string `yaml:"provider,omitempty"`
	// Model is the model identifier.
	Model string `yaml:"model,omitempty"`
	// Proxy is an optional HTTP/HTTPS proxy URL for API calls.
	Proxy string `yaml:"proxy,omitempty"`

	// MaxRPM caps dispatches per minute (default 8, 0 disables the gate).
	MaxRPM int `yaml:"max_rpm"`
	// MaxRepairs bounds structural-repair retries per exchange (default 2).
	MaxRepairs int `yaml:"max_repairs,omitempty"`
	// MaxQuotaRetries bounds quota cooldown retries per exchange (default 10).
	MaxQuotaRetries int `yaml:"max_quota_retries,omitempty"`
	// QuotaCooldownSeconds is the wait after a quota failure (default 70).
	QuotaCooldownSeconds int `yaml:"quota_cooldown_seconds,omitempty"`
	// BundleLimit is the single-bundle payload cap in characters
	// (default 140000).
	BundleLimit int `yaml:"bundle_limit,omitempty"`

	// DebugDir, when set, receives exchange dumps per mod.
	DebugDir string `yaml:"debug_dir,omitempty"`

	root string `yaml:"-"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns a config with every default applied, rooted at rootDir.
func Default(rootDir string) *File {
	f := &File{MaxRPM: 8, root: rootDir}
	f.applyDefaults()
	return f
}

// Load reads .modloc.yaml from the given directory. A missing file yields
// the defaults.
func Load(rootDir string) (*File, error) {
	path := filepath.Join(rootDir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(rootDir), nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	f := &File{MaxRPM: 8}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	f.root = rootDir
	f.applyDefaults()
	return f, nil
}

func (f *File) applyDefaults() {
	if f.SourceLang == "" {
		f.SourceLang = "en"
	}
	if f.TargetLang == "" {
		f.TargetLang = "ru"
	}
	if f.TargetLangName == "" {
		f.TargetLangName = LangName(f.TargetLang)
	}
	if f.ModsDir == "" {
		f.ModsDir = "mods"
	}
	if f.Provider == "" {
		f.Provider = "google"
	}
	if f.MaxRepairs == 0 {
		f.MaxRepairs = 2
	}
	if f.MaxQuotaRetries == 0 {
		f.MaxQuotaRetries = 10
	}
	if f.QuotaCooldownSeconds == 0 {
		f.QuotaCooldownSeconds = 70
	}
	if f.BundleLimit == 0 {
		f.BundleLimit = 140000
	}
}

// QuotaCooldown returns the cooldown as a duration.
func (f *File) QuotaCooldown() time.Duration {
	return time.Duration(f.QuotaCooldownSeconds) * time.Second
}

// Root returns the project root the config was loaded from.
func (f *File) Root() string {
	return f.root
}

// ---------------------------------------------------------------------------
// Mods directory layout
// ---------------------------------------------------------------------------

// AbsModsDir returns the absolute mods directory.
func (f *File) AbsModsDir() string {
	return filepath.Join(f.root, f.ModsDir)
}

// UnpackedDir returns the directory holding unpacked mods.
func (f *File) UnpackedDir() string {
	return filepath.Join(f.AbsModsDir(), "unpacked")
}

// ModDir returns the directory of one unpacked mod.
func (f *File) ModDir(modName string) string {
	return filepath.Join(f.UnpackedDir(), modName)
}

// LocaleDir returns a mod's locale directory for the given language code.
func (f *File) LocaleDir(modName, lang string) string {
	return filepath.Join(f.ModDir(modName), "locale", lang)
}

// SourceLocaleDir returns a mod's source-language locale directory.
func (f *File) SourceLocaleDir(modName string) string {
	return f.LocaleDir(modName, f.SourceLang)
}

// TargetLocaleDir returns a mod's target-language locale directory.
func (f *File) TargetLocaleDir(modName string) string {
	return f.LocaleDir(modName, f.TargetLang)
}

// ListMods returns the sorted names of unpacked mod directories.
func (f *File) ListMods() ([]string, error) {
	entries, err := os.ReadDir(f.UnpackedDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", f.UnpackedDir(), err)
	}

	var mods []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			mods = append(mods, e.Name())
		}
	}
	sort.Strings(mods)
	return mods, nil
}

// ---------------------------------------------------------------------------
// Language names
// ---------------------------------------------------------------------------

// LangName maps a Factorio locale code to its English language name.
// Unknown codes are returned as-is.
func LangName(code string) string {
	return langmeta.Name(code)
}
