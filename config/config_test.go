package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	f, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.SourceLang != "en" || f.TargetLang != "ru" {
		t.Errorf("langs = %s/%s", f.SourceLang, f.TargetLang)
	}
	if f.TargetLangName != "Russian" {
		t.Errorf("TargetLangName = %q", f.TargetLangName)
	}
	if f.Provider != "google" || f.ModsDir != "mods" {
		t.Errorf("provider=%q modsDir=%q", f.Provider, f.ModsDir)
	}
	if f.MaxRPM != 8 || f.MaxRepairs != 2 || f.MaxQuotaRetries != 10 {
		t.Errorf("budgets = %d/%d/%d", f.MaxRPM, f.MaxRepairs, f.MaxQuotaRetries)
	}
	if f.QuotaCooldown() != 70*time.Second {
		t.Errorf("cooldown = %v", f.QuotaCooldown())
	}
	if f.BundleLimit != 140000 {
		t.Errorf("bundleLimit = %d", f.BundleLimit)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	content := `target_lang: de
provider: groq
model: llama-3.3-70b
max_rpm: 0
quota_cooldown_seconds: 30
mods_dir: game/mods
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	f, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.TargetLang != "de" || f.TargetLangName != "German" {
		t.Errorf("target = %s/%s", f.TargetLang, f.TargetLangName)
	}
	if f.Provider != "groq" || f.Model != "llama-3.3-70b" {
		t.Errorf("provider = %s/%s", f.Provider, f.Model)
	}
	if f.MaxRPM != 0 {
		t.Errorf("MaxRPM = %d, explicit zero should disable the gate", f.MaxRPM)
	}
	if f.QuotaCooldown() != 30*time.Second {
		t.Errorf("cooldown = %v", f.QuotaCooldown())
	}
	if f.ModsDir != "game/mods" {
		t.Errorf("ModsDir = %q", f.ModsDir)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, FileName), []byte(":\n\t- broken"), 0644)
	if _, err := Load(dir); err == nil {
		t.Fatal("want parse error")
	}
}

func TestLayout(t *testing.T) {
	f := Default("/project")
	if got := f.UnpackedDir(); got != filepath.Join("/project", "mods", "unpacked") {
		t.Errorf("UnpackedDir = %q", got)
	}
	if got := f.TargetLocaleDir("MyMod"); got != filepath.Join("/project", "mods", "unpacked", "MyMod", "locale", "ru") {
		t.Errorf("TargetLocaleDir = %q", got)
	}
	if got := f.SourceLocaleDir("MyMod"); got != filepath.Join("/project", "mods", "unpacked", "MyMod", "locale", "en") {
		t.Errorf("SourceLocaleDir = %q", got)
	}
}

func TestListMods(t *testing.T) {
	root := t.TempDir()
	f := Default(root)

	// No unpacked dir yet.
	mods, err := f.ListMods()
	if err != nil {
		t.Fatalf("ListMods: %v", err)
	}
	if mods != nil {
		t.Errorf("mods = %v", mods)
	}

	for _, name := range []string{"Zeta", "Alpha", ".hidden"} {
		if err := os.MkdirAll(filepath.Join(f.UnpackedDir(), name), 0755); err != nil {
			t.Fatal(err)
		}
	}
	os.WriteFile(filepath.Join(f.UnpackedDir(), "stray.zip"), []byte("x"), 0644)

	mods, err = f.ListMods()
	if err != nil {
		t.Fatalf("ListMods: %v", err)
	}
	if len(mods) != 2 || mods[0] != "Alpha" || mods[1] != "Zeta" {
		t.Errorf("mods = %v", mods)
	}
}

func TestLangName(t *testing.T) {
	if LangName("ru") != "Russian" {
		t.Error("ru")
	}
	if LangName("xx-YY") != "xx-YY" {
		t.Error("unknown code should pass through")
	}
}
