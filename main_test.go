package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modloc/modloc/translate"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, text := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(text), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestCollectStats(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	writeFiles(t, src, map[string]string{
		"base.cfg": "[item-name]\niron=Iron\ncopper=Copper\nsteel=Steel\n",
	})
	writeFiles(t, dst, map[string]string{
		"base.cfg": "[item-name]\niron=Железо\ncopper=Copper\n; old=Старый\nsteel=Steel\n",
	})

	st, err := collectStats(src, dst)
	if err != nil {
		t.Fatalf("collectStats: %v", err)
	}
	if st.total != 3 {
		t.Errorf("total = %d, want 3", st.total)
	}
	// iron differs from source, copper and steel are untouched English.
	if st.translated != 1 {
		t.Errorf("translated = %d, want 1", st.translated)
	}
	if st.tombstoned != 1 {
		t.Errorf("tombstoned = %d, want 1", st.tombstoned)
	}
}

func TestCollectStats_MissingSourceFile(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	writeFiles(t, dst, map[string]string{
		"only-dst.cfg": "[item-name]\na=Альфа\nb=Бета\n",
	})

	st, err := collectStats(src, dst)
	if err != nil {
		t.Fatalf("collectStats: %v", err)
	}
	if st.total != 2 || st.translated != 2 {
		t.Errorf("stats = %+v, keys without a source counterpart count as translated", st)
	}
}

func TestFindArchive(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"AsteroidBelt_1.2.10.zip": "zip",
		"readme.txt":              "x",
	})

	if got := findArchive(dir, "AsteroidBelt_1.2.10"); got != "AsteroidBelt_1.2.10.zip" {
		t.Errorf("got %q", got)
	}
	if got := findArchive(dir, "MissingMod"); got != "MissingMod.zip" {
		t.Errorf("fallback = %q", got)
	}
}

func TestResolveProvider(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	prov := resolveProvider("google", "", "key1", "gemini-2.5-flash", "", 0)
	if prov.ID != translate.ProviderGoogle {
		t.Errorf("ID = %q", prov.ID)
	}
	if prov.APIKey != "key1" || prov.Model != "gemini-2.5-flash" {
		t.Errorf("prov = %+v", prov)
	}
	if prov.BaseURL == "" {
		t.Error("default base URL missing")
	}

	// Unknown name falls back to a custom OpenAI endpoint.
	custom := resolveProvider("https://llm.example.com/v1", "", "", "m", "", 0)
	if custom.ID != translate.ProviderCustomOpenAI {
		t.Errorf("ID = %q", custom.ID)
	}
	if custom.BaseURL != "https://llm.example.com/v1" {
		t.Errorf("BaseURL = %q", custom.BaseURL)
	}
}

func TestValidateProvider(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	noModel := resolveProvider("google", "", "k", "", "", 0)
	if err := validateProvider(noModel, "k"); err == nil || !strings.Contains(err.Error(), "model") {
		t.Errorf("want model error, got %v", err)
	}

	noKey := resolveProvider("google", "", "", "gemini-2.5-flash", "", 0)
	if err := validateProvider(noKey, ""); err == nil || !strings.Contains(err.Error(), "API key") {
		t.Errorf("want key error, got %v", err)
	}

	ok := resolveProvider("google", "", "k", "gemini-2.5-flash", "", 0)
	if err := validateProvider(ok, "k"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	noURL := translate.Provider{ID: translate.ProviderCustomOpenAI, Name: "custom", Model: "m"}
	if err := validateProvider(noURL, "k"); err == nil || !strings.Contains(err.Error(), "endpoint") {
		t.Errorf("want endpoint error, got %v", err)
	}
}
