// Package i18n renders localized messages for coded errors. Catalogs are
// built lazily from the embedded locale files and cached per locale.
package i18n

import (
	"bytes"
	"strings"
	"sync"
	"text/template"

	apperrors "github.com/instaagents/discovery/internal/platform/errors"
	i18ncatalog "github.com/instaagents/discovery/internal/platform/i18n/catalog"
)

// Code aliases the domain error code used as the message key.
type Code = apperrors.Code

// Catalog renders the error messages of one locale. Message templates
// are compiled once when the catalog is built.
type Catalog struct {
	locale  string
	entries map[Code]messageEntry
}

// messageEntry keeps the raw template text alongside its compiled form.
// A nil template means the text failed to parse and renders as-is.
type messageEntry struct {
	raw  string
	tmpl *template.Template
}

var (
	cacheMu sync.RWMutex
	cache   = map[string]*Catalog{}
)

// GetCatalog returns the error catalog for the locale, building it from
// the embedded bundle on first use. Unknown locales resolve to en-US.
func GetCatalog(locale string) *Catalog {
	requested := strings.TrimSpace(locale)
	if requested == "" {
		requested = i18ncatalog.BaseLocale
	}

	if cat, ok := cached(requested); ok {
		return cat
	}

	resolved, messages := i18ncatalog.Default().NamespaceMessagesWithFallback(requested, "errors")
	if cat, ok := cached(resolved); ok {
		return cat
	}

	byCode := make(map[Code]string, len(messages))
	for key, value := range messages {
		byCode[Code(key)] = value
	}
	return remember(resolved, NewCatalog(resolved, byCode))
}

// NewCatalog builds a catalog for the locale, compiling every message
// template up front.
func NewCatalog(locale string, messages map[Code]string) *Catalog {
	entries := make(map[Code]messageEntry, len(messages))
	for code, raw := range messages {
		entry := messageEntry{raw: raw}
		if tmpl, err := template.New(string(code)).Parse(raw); err == nil {
			entry.tmpl = tmpl
		}
		entries[code] = entry
	}
	return &Catalog{locale: locale, entries: entries}
}

// Locale returns the locale this catalog renders.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders the message for code with the given metadata. Unknown
// codes render as the code itself, and templates that fail render their
// raw text, so Format always produces something presentable.
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	entry, ok := c.entries[code]
	if !ok {
		return string(code)
	}
	if entry.tmpl == nil {
		return entry.raw
	}

	if metadata == nil {
		metadata = map[string]string{}
	}
	var buf bytes.Buffer
	if err := entry.tmpl.Execute(&buf, metadata); err != nil {
		return entry.raw
	}
	return buf.String()
}

// RegisterCatalog installs a catalog for the locale, replacing any cached
// one. Tests use it to exercise handlers with fixed messages.
func RegisterCatalog(locale string, cat *Catalog) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	cache[locale] = cat
}

func cached(locale string) (*Catalog, bool) {
	cacheMu.RLock()
	defer cacheMu.RUnlock()
	cat, ok := cache[locale]
	return cat, ok
}

// remember stores the catalog unless a concurrent build won the race.
func remember(locale string, candidate *Catalog) *Catalog {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if existing, ok := cache[locale]; ok {
		return existing
	}
	cache[locale] = candidate
	return candidate
}
