// Package catalog loads the embedded locale message files and registers
// them with golang.org/x/text. Messages ship inside the binary so the chat
// widget and error responses localize without runtime assets.
//
// Locale files live under locales/<locale>/<namespace>.yaml and use a
// deliberately small subset of YAML: a quoted locale, a quoted namespace,
// and a flat map of quoted key/value pairs. Parsing that subset directly
// keeps the message format strict and the dependency surface flat.
package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// BaseLocale is the canonical source locale. Every key must exist here;
// other locales fall back to it.
const BaseLocale = "en-US"

//go:embed locales/*/*.yaml
var embeddedFS embed.FS

// localeFile is one parsed locales/<locale>/<namespace>.yaml file.
type localeFile struct {
	Locale    string
	Namespace string
	Messages  map[string]string
}

// localeCatalog aggregates every namespace loaded for one locale.
type localeCatalog struct {
	namespaces map[string]map[string]string
	messages   map[string]string
}

// Bundle holds the loaded catalogs for all locales.
type Bundle struct {
	locales map[string]*localeCatalog
}

var defaultBundle = mustLoadEmbedded()

// Default returns the process-wide bundle built from the embedded files.
func Default() *Bundle {
	return defaultBundle
}

// LoadEmbedded loads the locale files compiled into this package.
func LoadEmbedded() (*Bundle, error) {
	return LoadFromFS(embeddedFS)
}

// LoadFromFS loads locale files matching locales/*/*.yaml from fsys.
func LoadFromFS(fsys fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(fsys, "locales/*/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	sort.Strings(paths)

	bundle := &Bundle{locales: map[string]*localeCatalog{}}
	for _, path := range paths {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", path, err)
		}
		parsed, err := parseLocaleFile(data)
		if err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", path, err)
		}
		if err := bundle.merge(path, parsed); err != nil {
			return nil, err
		}
	}

	if !bundle.HasLocale(BaseLocale) {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}
	return bundle, nil
}

// merge folds one parsed file into the bundle, enforcing that the file
// header matches its path and that keys stay unique per locale.
func (b *Bundle) merge(path string, file localeFile) error {
	localeFromPath := filepath.Base(filepath.Dir(path))
	namespaceFromPath := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	locale := strings.TrimSpace(file.Locale)
	switch {
	case locale == "":
		return fmt.Errorf("catalog %s: locale is required", path)
	case locale != localeFromPath:
		return fmt.Errorf("catalog %s: locale %q must match path locale %q", path, locale, localeFromPath)
	}

	namespace := strings.TrimSpace(file.Namespace)
	switch {
	case namespace == "":
		return fmt.Errorf("catalog %s: namespace is required", path)
	case namespace != namespaceFromPath:
		return fmt.Errorf("catalog %s: namespace %q must match filename namespace %q", path, namespace, namespaceFromPath)
	}

	if file.Messages == nil {
		return fmt.Errorf("catalog %s: messages map is required", path)
	}

	target, ok := b.locales[locale]
	if !ok {
		target = &localeCatalog{
			namespaces: map[string]map[string]string{},
			messages:   map[string]string{},
		}
		b.locales[locale] = target
	}
	if _, exists := target.namespaces[namespace]; exists {
		return fmt.Errorf("catalog %s: namespace %q already defined for locale %q", path, namespace, locale)
	}

	namespaceMessages := make(map[string]string, len(file.Messages))
	for key, value := range file.Messages {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			return fmt.Errorf("catalog %s: message key cannot be blank", path)
		}
		if strings.HasPrefix(trimmed, "core.") && namespace != "core" {
			return fmt.Errorf("catalog %s: key %q must be defined in core namespace", path, trimmed)
		}
		if _, exists := target.messages[trimmed]; exists {
			return fmt.Errorf("catalog %s: duplicate key %q in locale %q", path, trimmed, locale)
		}
		target.messages[trimmed] = value
		namespaceMessages[trimmed] = value
	}

	target.namespaces[namespace] = namespaceMessages
	return nil
}

// Register installs every message with x/text/message so printers resolve
// them by key. Each locale registers under its full tag and, when distinct,
// its base tag, so "pt" requests find the pt-BR messages.
func (b *Bundle) Register() error {
	if b == nil {
		return nil
	}
	for _, locale := range b.Locales() {
		tag, err := language.Parse(locale)
		if err != nil {
			return fmt.Errorf("parse locale tag %q: %w", locale, err)
		}
		tags := []language.Tag{tag}
		if base, _ := tag.Base(); base.String() != "" && base.String() != "und" {
			if baseTag, err := language.Parse(base.String()); err == nil && baseTag.String() != tag.String() {
				tags = append(tags, baseTag)
			}
		}

		messages := b.LocaleMessages(locale)
		keys := make([]string, 0, len(messages))
		for key := range messages {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			for _, registerTag := range tags {
				message.SetString(registerTag, key, messages[key])
			}
		}
	}
	return nil
}

// HasLocale reports whether the locale was loaded.
func (b *Bundle) HasLocale(locale string) bool {
	if b == nil {
		return false
	}
	_, ok := b.locales[strings.TrimSpace(locale)]
	return ok
}

// Locales returns the loaded locale identifiers in sorted order.
func (b *Bundle) Locales() []string {
	if b == nil {
		return nil
	}
	out := make([]string, 0, len(b.locales))
	for locale := range b.locales {
		out = append(out, locale)
	}
	sort.Strings(out)
	return out
}

// LocaleMessages returns a copy of every message for the locale, across
// all namespaces. Unknown locales yield an empty map.
func (b *Bundle) LocaleMessages(locale string) map[string]string {
	if b == nil {
		return map[string]string{}
	}
	cat, ok := b.locales[strings.TrimSpace(locale)]
	if !ok || cat == nil {
		return map[string]string{}
	}
	return copyMessages(cat.messages)
}

// NamespaceMessages returns a copy of one namespace for the locale.
func (b *Bundle) NamespaceMessages(locale, namespace string) map[string]string {
	if b == nil {
		return map[string]string{}
	}
	cat, ok := b.locales[strings.TrimSpace(locale)]
	if !ok || cat == nil {
		return map[string]string{}
	}
	messages, ok := cat.namespaces[strings.TrimSpace(namespace)]
	if !ok {
		return map[string]string{}
	}
	return copyMessages(messages)
}

// NamespaceMessagesWithFallback returns namespace messages for the locale,
// falling back to the base locale, along with the locale that satisfied
// the lookup.
func (b *Bundle) NamespaceMessagesWithFallback(locale, namespace string) (string, map[string]string) {
	requested := strings.TrimSpace(locale)
	wanted := strings.TrimSpace(namespace)
	if messages := b.NamespaceMessages(requested, wanted); len(messages) > 0 {
		return requested, messages
	}
	return BaseLocale, b.NamespaceMessages(BaseLocale, wanted)
}

func copyMessages(source map[string]string) map[string]string {
	out := make(map[string]string, len(source))
	for key, value := range source {
		out[key] = value
	}
	return out
}

func mustLoadEmbedded() *Bundle {
	bundle, err := LoadEmbedded()
	if err != nil {
		panic(err)
	}
	if err := bundle.Register(); err != nil {
		panic(err)
	}
	return bundle
}

// parseLocaleFile parses the restricted YAML subset used by locale files.
func parseLocaleFile(data []byte) (localeFile, error) {
	out := localeFile{Messages: map[string]string{}}
	inMessages := false

	for _, rawLine := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch {
		case strings.HasPrefix(line, "locale:"):
			value, err := unquote(strings.TrimPrefix(line, "locale:"))
			if err != nil {
				return localeFile{}, fmt.Errorf("parse locale: %w", err)
			}
			out.Locale = value
		case strings.HasPrefix(line, "namespace:"):
			value, err := unquote(strings.TrimPrefix(line, "namespace:"))
			if err != nil {
				return localeFile{}, fmt.Errorf("parse namespace: %w", err)
			}
			out.Namespace = value
		case line == "messages:":
			inMessages = true
		default:
			if !inMessages {
				return localeFile{}, fmt.Errorf("unexpected line %q", line)
			}
			key, value, err := parseMessageLine(line)
			if err != nil {
				return localeFile{}, fmt.Errorf("parse message entry %q: %w", line, err)
			}
			out.Messages[key] = value
		}
	}

	switch {
	case out.Locale == "":
		return localeFile{}, fmt.Errorf("missing locale")
	case out.Namespace == "":
		return localeFile{}, fmt.Errorf("missing namespace")
	case len(out.Messages) == 0:
		return localeFile{}, fmt.Errorf("missing messages")
	}
	return out, nil
}

// parseMessageLine parses a `"key": "value"` entry.
func parseMessageLine(line string) (string, string, error) {
	keyToken, rest, err := readQuotedToken(line)
	if err != nil {
		return "", "", err
	}
	key, err := strconv.Unquote(keyToken)
	if err != nil {
		return "", "", fmt.Errorf("unquote key: %w", err)
	}

	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, ":") {
		return "", "", fmt.Errorf("missing ':' separator")
	}
	value, err := unquote(strings.TrimPrefix(rest, ":"))
	if err != nil {
		return "", "", fmt.Errorf("unquote value: %w", err)
	}
	return key, value, nil
}

func unquote(value string) (string, error) {
	return strconv.Unquote(strings.TrimSpace(value))
}

// readQuotedToken returns the leading quoted token and the remainder of
// the line, honoring backslash escapes inside the quotes.
func readQuotedToken(line string) (string, string, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "\"") {
		return "", "", fmt.Errorf("expected quoted token")
	}
	escaped := false
	for i := 1; i < len(trimmed); i++ {
		switch {
		case escaped:
			escaped = false
		case trimmed[i] == '\\':
			escaped = true
		case trimmed[i] == '"':
			return trimmed[:i+1], trimmed[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("unterminated quoted token")
}
