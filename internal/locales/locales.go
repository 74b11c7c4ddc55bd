// Package locales renders user-facing bot messages from embedded TOML
// bundles. Callers pick a template key and named arguments; unknown languages
// fall back to English.
package locales

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/BurntSushi/toml"
)

const fallbackLang = "en"

//go:embed *.toml
var bundleFS embed.FS

type bundle struct {
	Messages map[string]string `toml:"messages"`
}

// Renderer resolves template keys against per-language message bundles.
type Renderer struct {
	bundles map[string]map[string]string
	logger  *slog.Logger
}

// New loads every embedded bundle. Missing the English bundle is fatal.
func New(log *slog.Logger) (*Renderer, error) {
	if log == nil {
		log = slog.Default()
	}
	r := &Renderer{
		bundles: make(map[string]map[string]string),
		logger:  log.With(slog.String("service", "locales")),
	}

	entries, err := fs.ReadDir(bundleFS, ".")
	if err != nil {
		return nil, fmt.Errorf("read locale bundles: %w", err)
	}
	for _, entry := range entries {
		lang := strings.TrimSuffix(entry.Name(), ".toml")
		data, err := bundleFS.ReadFile(entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read locale bundle %s: %w", entry.Name(), err)
		}
		var b bundle
		if err := toml.Unmarshal(data, &b); err != nil {
			return nil, fmt.Errorf("parse locale bundle %s: %w", entry.Name(), err)
		}
		r.bundles[lang] = b.Messages
	}
	if _, ok := r.bundles[fallbackLang]; !ok {
		return nil, fmt.Errorf("missing %s locale bundle", fallbackLang)
	}
	return r, nil
}

// Render renders the template for the given language tag, falling back to
// English for unknown languages or missing keys. Arguments substitute
// {name} placeholders.
func (r *Renderer) Render(lang, key string, args map[string]string) string {
	template, ok := r.lookup(lang, key)
	if !ok {
		r.logger.Warn("missing locale key", slog.String("key", key), slog.String("lang", lang))
		return key
	}
	for name, value := range args {
		template = strings.ReplaceAll(template, "{"+name+"}", value)
	}
	return template
}

func (r *Renderer) lookup(lang, key string) (string, bool) {
	// Reduce a full tag like pt-BR to its base language.
	if idx := strings.Index(lang, "-"); idx >= 0 {
		lang = lang[:idx]
	}
	if messages, ok := r.bundles[lang]; ok {
		if template, ok := messages[key]; ok {
			return template, true
		}
	}
	template, ok := r.bundles[fallbackLang][key]
	return template, ok
}
