// Package langmeta provides a registry of Factorio locale codes with
// display metadata used by the CLI and the translation instructions.
package langmeta

import "strings"

// Meta describes locale display metadata.
type Meta struct {
	// Name is the English language name, used in translation instructions.
	Name string
	// Native is the language's own name, used in CLI output.
	Native string
}

// Registry contains the locales the Factorio base game ships with.
// Variants like pt_BR or ru-RU are resolved in Resolve() via normalization
// and base-language fallback.
var Registry = map[string]Meta{
	"bg":    {Name: "Bulgarian", Native: "Български"},
	"ca":    {Name: "Catalan", Native: "Català"},
	"cs":    {Name: "Czech", Native: "Čeština"},
	"da":    {Name: "Danish", Native: "Dansk"},
	"de":    {Name: "German", Native: "Deutsch"},
	"el":    {Name: "Greek", Native: "Ελληνικά"},
	"en":    {Name: "English", Native: "English"},
	"es-ES": {Name: "Spanish", Native: "Español"},
	"et":    {Name: "Estonian", Native: "Eesti"},
	"fi":    {Name: "Finnish", Native: "Suomi"},
	"fr":    {Name: "French", Native: "Français"},
	"hu":    {Name: "Hungarian", Native: "Magyar"},
	"it":    {Name: "Italian", Native: "Italiano"},
	"ja":    {Name: "Japanese", Native: "日本語"},
	"ka":    {Name: "Georgian", Native: "ქართული"},
	"kk":    {Name: "Kazakh", Native: "Қазақша"},
	"ko":    {Name: "Korean", Native: "한국어"},
	"lt":    {Name: "Lithuanian", Native: "Lietuvių"},
	"lv":    {Name: "Latvian", Native: "Latviešu"},
	"nl":    {Name: "Dutch", Native: "Nederlands"},
	"no":    {Name: "Norwegian", Native: "Norsk"},
	"pl":    {Name: "Polish", Native: "Polski"},
	"pt-BR": {Name: "Brazilian Portuguese", Native: "Português (Brasil)"},
	"pt-PT": {Name: "Portuguese", Native: "Português"},
	"ro":    {Name: "Romanian", Native: "Română"},
	"ru":    {Name: "Russian", Native: "Русский"},
	"sk":    {Name: "Slovak", Native: "Slovenčina"},
	"sl":    {Name: "Slovenian", Native: "Slovenščina"},
	"sr":    {Name: "Serbian", Native: "Српски"},
	"sv-SE": {Name: "Swedish", Native: "Svenska"},
	"th":    {Name: "Thai", Native: "ไทย"},
	"tr":    {Name: "Turkish", Native: "Türkçe"},
	"uk":    {Name: "Ukrainian", Native: "Українська"},
	"vi":    {Name: "Vietnamese", Native: "Tiếng Việt"},
	"zh-CN": {Name: "Simplified Chinese", Native: "简体中文"},
	"zh-TW": {Name: "Traditional Chinese", Native: "繁體中文"},
}

// canonicalize normalizes a locale code: trims whitespace, lowercases the
// language part, uppercases the region, and uses '-' as the separator
// (pt_br -> pt-BR).
func canonicalize(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return ""
	}
	lang = strings.ReplaceAll(lang, "_", "-")
	parts := strings.SplitN(lang, "-", 2)
	parts[0] = strings.ToLower(parts[0])
	if len(parts) >= 2 {
		parts[1] = strings.ToUpper(parts[1])
	}
	return strings.Join(parts, "-")
}

// Resolve returns best-effort locale metadata, supporting variants like
// pt_BR, pt-BR, and base-language fallback. Unknown codes come back with
// the code itself as the name.
func Resolve(lang string) Meta {
	if m, ok := Registry[lang]; ok {
		return m
	}
	normalized := canonicalize(lang)
	if m, ok := Registry[normalized]; ok {
		return m
	}
	if parts := strings.SplitN(normalized, "-", 2); len(parts) == 2 {
		if m, ok := Registry[parts[0]]; ok {
			return m
		}
	}
	return Meta{Name: lang, Native: lang}
}

// Name returns the English language name for a locale code.
func Name(lang string) string {
	return Resolve(lang).Name
}
