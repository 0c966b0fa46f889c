// modloc — Factorio mod locale merge and AI translation tool.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/modloc/modloc/cfgfile"
	"github.com/modloc/modloc/config"
	"github.com/modloc/modloc/exchange"
	"github.com/modloc/modloc/i18n"
	"github.com/modloc/modloc/joblog"
	"github.com/modloc/modloc/merge"
	"github.com/modloc/modloc/modmeta"
	"github.com/modloc/modloc/settings"
	"github.com/modloc/modloc/translate"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Global flag
// ---------------------------------------------------------------------------

var rootDir string

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "modloc",
		Short: "Factorio mod locale merge and AI translation",
		Long: `modloc — Factorio mod locale merge and AI translation tool.

Works on unpacked mods under <mods_dir>/unpacked/<mod>/locale/<lang>/*.cfg.
Merging carries existing translations forward, tombstones obsolete keys as
comments, and revives them when the source reintroduces the key. Translation
bundles a mod's files into one exchange with an AI provider and validates
that markers and keys survive the round trip.

Commands:
  status      Show per-mod translation statistics
  merge       Merge source locale files into target locale files
  translate   Translate merged locale files using AI
  auth        Manage provider API keys

AI Providers:
  google         Google AI (Gemini) — API key
  groq           Groq — API key required
  ollama         Ollama local server
  custom-openai  Custom OpenAI-compatible endpoint`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global persistent flag — inherited by all subcommands
	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Project root directory")

	root.AddCommand(
		newStatusCmd(),
		newMergeCmd(),
		newTranslateCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: i18n.T("Print the version"),
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("modloc version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// status (read-only: per-mod translation stats)
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: i18n.T("Show per-mod translation statistics"),
		Long: `Show per-mod translation statistics.

For every unpacked mod, counts the target locale's active keys, how many
carry a translation (the value differs from the source value for the same
key), and how many keys are tombstoned. Mods with a completion-log record
are marked done. Does not modify any files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	}
}

// localeStats aggregates key counts across one mod's target locale files.
type localeStats struct {
	total      int // active keys in the target locale
	translated int // active keys whose value differs from the source value
	tombstoned int // keys kept only as tombstone comments
}

// collectStats compares a mod's target locale dir against the source dir.
func collectStats(srcDir, dstDir string) (localeStats, error) {
	var st localeStats

	entries, err := os.ReadDir(dstDir)
	if err != nil {
		return st, err
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".cfg") {
			continue
		}
		dst, err := cfgfile.ParseFile(filepath.Join(dstDir, e.Name()))
		if err != nil {
			return st, err
		}

		var srcIndex *cfgfile.KeyIndex
		if src, err := cfgfile.ParseFile(filepath.Join(srcDir, e.Name())); err == nil {
			srcIndex = cfgfile.NewKeyIndex(src)
		}

		section := ""
		for _, line := range dst.Lines {
			switch {
			case line.Kind == cfgfile.KindSectionHeader && !line.Commented:
				section = line.Section
			case line.Kind == cfgfile.KindKeyValue && line.Commented:
				st.tombstoned++
			case line.Kind == cfgfile.KindKeyValue:
				st.total++
				if srcIndex == nil {
					st.translated++
					continue
				}
				srcLine, ok := srcIndex.Lookup(section, line.Key)
				if !ok || srcLine.Value() != line.Value() {
					st.translated++
				}
			}
		}
	}
	return st, nil
}

func runStatus() error {
	cfg, err := config.Load(rootDir)
	if err != nil {
		return err
	}

	mods, err := cfg.ListMods()
	if err != nil {
		return err
	}
	if len(mods) == 0 {
		logWarning("no unpacked mods under %s", cfg.UnpackedDir())
		return nil
	}

	log, err := joblog.Open(cfg.AbsModsDir())
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\n%sMods%s (%s → %s)\n", colorBlue, colorReset, cfg.SourceLang, cfg.TargetLang)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 72))
	fmt.Fprintf(os.Stderr, "%-36s %7s %11s %11s  %s\n", "mod", "keys", "translated", "tombstoned", "log")

	for _, mod := range mods {
		dstDir := cfg.TargetLocaleDir(mod)
		if _, err := os.Stat(dstDir); err != nil {
			fmt.Fprintf(os.Stderr, "%-36s %s\n", mod, i18n.T("no locale files found"))
			continue
		}

		st, err := collectStats(cfg.SourceLocaleDir(mod), dstDir)
		if err != nil {
			logWarning("%s: %v", mod, err)
			continue
		}

		pct := 0
		if st.total > 0 {
			pct = 100 * st.translated / st.total
		}
		mark := ""
		if log.Contains(mod) {
			mark = colorGreen + "✓ " + i18n.T("done") + colorReset
		}
		fmt.Fprintf(os.Stderr, "%-36s %7d %6d %3d%% %11d  %s\n",
			mod, st.total, st.translated, pct, st.tombstoned, mark)
	}
	fmt.Fprintln(os.Stderr)
	return nil
}

// ---------------------------------------------------------------------------
// merge
// ---------------------------------------------------------------------------

func newMergeCmd() *cobra.Command {
	var mod string

	cmd := &cobra.Command{
		Use:   "merge",
		Short: i18n.T("Merge source locale files into target locale files"),
		Long: `Merge source locale files into target locale files.

For every mod (or one mod with --mod), walks the source locale directory
and rewrites each target file: existing translations are kept, new source
keys are added untranslated, keys gone from the source are commented out,
and previously commented-out translations are revived when the source
brings the key back. Target files missing entirely are copied verbatim.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(mod)
		},
	}

	cmd.Flags().StringVar(&mod, "mod", "", "Merge a single mod directory")
	return cmd
}

func runMerge(only string) error {
	cfg, err := config.Load(rootDir)
	if err != nil {
		return err
	}

	mods, err := cfg.ListMods()
	if err != nil {
		return err
	}
	if only != "" {
		mods = []string{only}
	}
	if len(mods) == 0 {
		logWarning("no unpacked mods under %s", cfg.UnpackedDir())
		return nil
	}

	merged := 0
	for _, mod := range mods {
		srcDir := cfg.SourceLocaleDir(mod)
		if _, err := os.Stat(srcDir); err != nil {
			logWarning("%s: no %s locale, skipping", mod, cfg.SourceLang)
			continue
		}

		files, err := merge.MergeDir(srcDir, cfg.TargetLocaleDir(mod))
		if err != nil {
			return fmt.Errorf("merging %s: %w", mod, err)
		}
		logSuccess("%s: merged %d file(s)", mod, len(files))
		merged++
	}
	logInfo("merged %d of %d mod(s)", merged, len(mods))
	return nil
}

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

func newTranslateCmd() *cobra.Command {
	var (
		mod      string
		provider string
		apiKey   string
		model    string
		baseURL  string
		proxy    string
		timeout  time.Duration
		maxRPM   int
		force    bool
		noSlug   bool
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:   "translate",
		Short: i18n.T("Translate merged locale files with an AI provider"),
		Long: `Translate merged locale files with an AI provider.

Each mod's target locale files are joined into one bundle and sent in a
single exchange; the response is validated (file markers intact, no keys
lost) and re-requested with repair instructions when damaged. Mods already
recorded in the completion log are skipped unless --force is given.

Examples:
  # Translate all pending mods with Google AI
  modloc translate --provider google --model gemini-2.5-flash

  # One mod through a local Ollama server
  modloc translate --mod AsteroidBelt_1.2.10 --provider ollama --model llama3.2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(translateArgs{
				mod: mod, provider: provider, apiKey: apiKey, model: model,
				baseURL: baseURL, proxy: proxy, timeout: timeout,
				maxRPM: maxRPM, force: force, noSlug: noSlug, verbose: verbose,
			})
		},
	}

	cmd.Flags().StringVar(&mod, "mod", "", "Translate a single mod directory")
	cmd.Flags().StringVar(&provider, "provider", "", "AI provider: google, groq, ollama, custom-openai (default from .modloc.yaml)")
	cmd.Flags().StringVar(&model, "model", "", "Model name (default from .modloc.yaml)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key (or MODLOC_API_KEY env var)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Custom API base URL")
	cmd.Flags().StringVar(&proxy, "proxy", "", "HTTP/HTTPS proxy URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Request timeout (0 = provider default)")
	cmd.Flags().IntVar(&maxRPM, "max-rpm", -1, "Max requests per minute (-1 = from config, 0 = unlimited)")
	cmd.Flags().BoolVar(&force, "force", false, "Translate even mods recorded in the completion log")
	cmd.Flags().BoolVar(&noSlug, "no-slug", false, "Skip slug resolution against the mod portal")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Enable detailed logging")

	_ = cmd.RegisterFlagCompletionFunc("provider", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{
			"google\tGoogle AI (Gemini) — API key required",
			"groq\tGroq — API key required",
			"ollama\tOllama local server",
			"custom-openai\tCustom OpenAI-compatible endpoint",
		}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

type translateArgs struct {
	mod                              string
	provider, apiKey, model, baseURL string
	proxy                            string
	timeout                          time.Duration
	maxRPM                           int
	force, noSlug, verbose           bool
}

func runTranslate(a translateArgs) error {
	cfg, err := config.Load(rootDir)
	if err != nil {
		return err
	}

	providerID := a.provider
	if providerID == "" {
		providerID = cfg.Provider
	}
	model := a.model
	if model == "" {
		model = cfg.Model
	}
	proxy := a.proxy
	if proxy == "" {
		proxy = cfg.Proxy
	}
	apiKey := settings.APIKey(providerID, a.apiKey)

	prov := resolveProvider(providerID, a.baseURL, apiKey, model, proxy, a.timeout)
	if err := validateProvider(prov, apiKey); err != nil {
		return err
	}

	mods, err := cfg.ListMods()
	if err != nil {
		return err
	}
	if a.mod != "" {
		mods = []string{a.mod}
	}
	if len(mods) == 0 {
		logWarning("no unpacked mods under %s", cfg.UnpackedDir())
		return nil
	}

	log, err := joblog.Open(cfg.AbsModsDir())
	if err != nil {
		return err
	}

	maxRPM := a.maxRPM
	if maxRPM < 0 {
		maxRPM = cfg.MaxRPM
	}
	limiter := exchange.NewLimiter(maxRPM)

	client := translate.NewClient(prov)
	client.Verbose = a.verbose

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	resolver := &modmeta.Resolver{}
	done, skipped, failed := 0, 0, 0

	for _, mod := range mods {
		if !a.force && log.Contains(mod) {
			logInfo("%s: %s", mod, i18n.T("already translated, skipping"))
			skipped++
			continue
		}

		dstDir := cfg.TargetLocaleDir(mod)
		if _, err := os.Stat(dstDir); err != nil {
			logWarning("%s: no %s locale, skipping (run merge first?)", mod, cfg.TargetLang)
			skipped++
			continue
		}

		meta := &modmeta.Spec{Title: modmeta.StripVersionSuffix(mod)}
		if !a.noSlug {
			if slug := resolver.ResolveSlug(ctx, mod); slug != "" {
				meta.Slug = slug
				logInfo("%s: resolved slug %q", mod, slug)
			}
		}

		debugDir := ""
		if cfg.DebugDir != "" {
			debugDir = filepath.Join(cfg.DebugDir, mod)
		}

		logInfo("%s: translating with %s (%s)", mod, prov.Name, prov.Model)
		written, err := translate.Mod(ctx, dstDir, translate.Options{
			Rewriter:        client,
			Limiter:         limiter,
			TargetLang:      cfg.TargetLangName,
			Meta:            meta,
			MaxRepairs:      cfg.MaxRepairs,
			MaxQuotaRetries: cfg.MaxQuotaRetries,
			QuotaCooldown:   cfg.QuotaCooldown(),
			BundleLimit:     cfg.BundleLimit,
			DebugDir:        debugDir,
			OnLog:           logInfo,
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, exchange.ErrQuotaExceeded) {
				logError("%s: %v", mod, err)
				logWarning("quota exhausted, stopping the batch")
				failed++
				break
			}
			logError("%s: %v", mod, err)
			failed++
			continue
		}
		if len(written) == 0 {
			logWarning("%s: %s", mod, i18n.T("no locale files found"))
			skipped++
			continue
		}

		if err := log.Append(joblog.NewEntry(mod, findArchive(cfg.AbsModsDir(), mod), prov.Model, meta)); err != nil {
			logWarning("%s: recording completion: %v", mod, err)
		}
		logSuccess("%s: translated %d file(s)", mod, len(written))
		done++
	}

	logInfo("done %d, skipped %d, failed %d", done, skipped, failed)
	if failed > 0 {
		return fmt.Errorf("%d mod(s) failed", failed)
	}
	return nil
}

// findArchive locates <mods>/<mod>.zip for the completion record.
// Falls back to the conventional name when nothing matches.
func findArchive(modsDir, modName string) string {
	entries, err := os.ReadDir(modsDir)
	if err == nil {
		for _, e := range entries {
			name := e.Name()
			if strings.EqualFold(strings.TrimSuffix(name, filepath.Ext(name)), modName) &&
				strings.EqualFold(filepath.Ext(name), ".zip") {
				return name
			}
		}
	}
	return modName + ".zip"
}

// ---------------------------------------------------------------------------
// auth
// ---------------------------------------------------------------------------

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: i18n.T("Manage API keys"),
		Long: `Manage API keys for the AI providers.

API key providers:
  google        Google AI Studio (Gemini API key)
  groq          Groq Cloud (free tier available)
  custom-openai Custom OpenAI-compatible endpoint

No auth required:
  ollama        Local Ollama server

Examples:
  modloc auth login --provider google      Store a Google AI API key
  modloc auth logout --provider google     Remove the Google API key
  modloc auth logout                       Remove all credentials
  modloc auth list                         Show stored credentials`,
	}

	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthLogoutCmd(),
		newAuthListCmd(),
	)

	return cmd
}

// keyProviders lists providers that take an API key, for prompts and list.
var keyProviders = []struct {
	id   string
	name string
	hint string
}{
	{"google", "Google AI Studio", "https://aistudio.google.com/apikey"},
	{"groq", "Groq Cloud", "https://console.groq.com/keys"},
	{"custom-openai", "Custom OpenAI", "any OpenAI-compatible endpoint"},
}

func newAuthLoginCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an API key for a provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			if provider == "" {
				return fmt.Errorf("--provider is required (google, groq, custom-openai)")
			}
			return authLogin(provider)
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Provider ID")
	return cmd
}

func authLogin(providerID string) error {
	var hint string
	known := false
	for _, p := range keyProviders {
		if p.id == providerID {
			hint = p.hint
			known = true
		}
	}
	if !known {
		return fmt.Errorf("provider %q does not take an API key", providerID)
	}
	if hint != "" {
		logInfo("get a key from: %s", hint)
	}

	fmt.Fprintf(os.Stderr, "API key for %s: ", providerID)
	reader := bufio.NewReader(os.Stdin)
	key, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("reading key: %w", err)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("empty key")
	}

	if providerID == translate.ProviderCustomOpenAI {
		fmt.Fprint(os.Stderr, "Base URL (e.g. https://api.example.com/v1): ")
		baseURL, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading base URL: %w", err)
		}
		baseURL = strings.TrimSpace(baseURL)
		if err := settings.SetAPIKeyWithBaseURL(providerID, key, baseURL); err != nil {
			return err
		}
	} else if err := settings.SetAPIKey(providerID, key); err != nil {
		return err
	}

	logSuccess("stored key for %s (%s)", providerID, settings.MaskKey(key))
	return nil
}

func newAuthLogoutCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			if provider == "" {
				if err := settings.RemoveAll(); err != nil {
					return err
				}
				logSuccess("removed all credentials")
				return nil
			}
			if err := settings.Remove(provider); err != nil {
				return err
			}
			logSuccess("removed credentials for %s", provider)
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Provider ID (default: all)")
	return cmd
}

func newAuthListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show stored credentials",
		Run: func(cmd *cobra.Command, args []string) {
			store := settings.Load()
			if len(store) == 0 {
				logInfo("no stored credentials (%s)", settings.FilePath())
				return
			}
			for _, p := range keyProviders {
				info := store[p.id]
				if info == nil {
					continue
				}
				line := fmt.Sprintf("%-14s %s", p.id, settings.MaskKey(info.Key))
				if info.BaseURL != "" {
					line += "  " + info.BaseURL
				}
				fmt.Fprintln(os.Stderr, line)
			}
		},
	}
}

// ---------------------------------------------------------------------------
// Provider resolution
// ---------------------------------------------------------------------------

func resolveProvider(name, baseURL, apiKey, model, proxy string, timeout time.Duration) translate.Provider {
	defaults := translate.DefaultProviders()

	var prov translate.Provider
	if p, ok := defaults[strings.ToLower(name)]; ok {
		prov = p
	} else {
		prov = translate.Provider{
			ID:      translate.ProviderCustomOpenAI,
			Name:    name,
			BaseURL: name,
			Timeout: 60 * time.Second,
		}
	}

	if baseURL != "" {
		prov.BaseURL = baseURL
	} else if prov.ID == translate.ProviderCustomOpenAI {
		if storedURL := settings.BaseURL(prov.ID); storedURL != "" {
			prov.BaseURL = storedURL
		}
	}
	if apiKey != "" {
		prov.APIKey = apiKey
	}
	if model != "" {
		prov.Model = model
	}
	if proxy != "" {
		prov.Proxy = proxy
	}
	if timeout > 0 {
		prov.Timeout = timeout
	}

	return prov
}

func validateProvider(prov translate.Provider, apiKey string) error {
	if prov.Model == "" {
		modelExamples := map[string]string{
			translate.ProviderGoogle:       "gemini-2.5-flash, gemini-2.0-flash-exp",
			translate.ProviderGroq:         "llama-3.3-70b-versatile, mixtral-8x7b-32768",
			translate.ProviderOllama:       "llama3.2, qwen2.5, mistral",
			translate.ProviderCustomOpenAI: "gpt-4o, gpt-4o-mini (depends on your endpoint)",
		}
		examples := modelExamples[prov.ID]
		if examples == "" {
			examples = "check provider documentation"
		}
		return fmt.Errorf("a model is required for provider '%s'\n\n"+
			"Example models for %s:\n  %s\n\n"+
			"Set it with --model or in .modloc.yaml",
			prov.ID, prov.Name, examples)
	}

	switch prov.ID {
	case translate.ProviderGoogle:
		if apiKey == "" {
			return fmt.Errorf("provider 'google' requires an API key\n\n" +
				"Option 1: Store an API key:\n" +
				"  modloc auth login --provider google\n\n" +
				"Option 2: Pass the key directly:\n" +
				"  --api-key YOUR_KEY or export MODLOC_API_KEY=YOUR_KEY\n\n" +
				"Get an API key from: https://aistudio.google.com/apikey")
		}

	case translate.ProviderGroq:
		if apiKey == "" {
			return fmt.Errorf("provider 'groq' requires an API key\n\n" +
				"Option 1: Store your API key:\n" +
				"  modloc auth login --provider groq\n\n" +
				"Option 2: Pass the key directly:\n" +
				"  --api-key YOUR_KEY or export MODLOC_API_KEY=YOUR_KEY\n\n" +
				"Get a free API key from: https://console.groq.com/keys")
		}

	case translate.ProviderCustomOpenAI:
		if prov.BaseURL == "" {
			return fmt.Errorf("provider 'custom-openai' requires an endpoint URL\n\n" +
				"Option 1: Configure via auth:\n" +
				"  modloc auth login --provider custom-openai\n\n" +
				"Option 2: Pass directly:\n" +
				"  --base-url https://api.example.com/v1")
		}

	case translate.ProviderOllama:
		client := &http.Client{Timeout: 2 * time.Second}
		ollamaURL := prov.BaseURL
		if ollamaURL == "" {
			ollamaURL = "http://localhost:11434"
		}
		resp, err := client.Get(ollamaURL + "/api/tags")
		if err != nil {
			return fmt.Errorf("provider 'ollama' requires an Ollama server to be running\n\n" +
				"Start Ollama with: ollama serve\n" +
				"Install from: https://ollama.com")
		}
		resp.Body.Close()
	}

	return nil
}
