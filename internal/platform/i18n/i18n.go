// Package i18n defines the supported locales and tag matching rules.
package i18n

import (
	"strings"

	"golang.org/x/text/language"

	"github.com/instaagents/discovery/internal/platform/i18n/catalog"
)

// Locale identifiers for the locales shipped in the embedded catalogs.
const (
	LocaleEnUS = "en-US"
	LocalePtBR = "pt-BR"
)

var supportedTags = []language.Tag{
	language.AmericanEnglish,
	language.BrazilianPortuguese,
}

var matcher = language.NewMatcher(supportedTags)

// SupportedTags returns the language tags with embedded catalogs.
func SupportedTags() []language.Tag {
	out := make([]language.Tag, len(supportedTags))
	copy(out, supportedTags)
	return out
}

// DefaultTag returns the fallback language tag.
func DefaultTag() language.Tag {
	return supportedTags[0]
}

// ParseTag parses a locale value and reports whether it maps to a
// supported tag. Region-less values such as "pt" resolve to the closest
// supported regional tag.
func ParseTag(value string) (language.Tag, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return DefaultTag(), false
	}
	parsed, err := language.Parse(value)
	if err != nil {
		return DefaultTag(), false
	}
	tag, _, confidence := matcher.Match(parsed)
	if confidence == language.No {
		return DefaultTag(), false
	}
	return canonicalTag(tag), true
}

// MatchTags picks the best supported tag for ordered preferences.
func MatchTags(preferences []language.Tag) language.Tag {
	if len(preferences) == 0 {
		return DefaultTag()
	}
	tag, _, confidence := matcher.Match(preferences...)
	if confidence == language.No {
		return DefaultTag()
	}
	return canonicalTag(tag)
}

// LocaleForTag maps a supported tag to its catalog locale identifier.
func LocaleForTag(tag language.Tag) string {
	switch canonicalTag(tag) {
	case language.BrazilianPortuguese:
		return LocalePtBR
	default:
		return catalog.BaseLocale
	}
}

// TagForLocale maps a catalog locale identifier to its language tag.
func TagForLocale(locale string) language.Tag {
	switch strings.TrimSpace(locale) {
	case LocalePtBR:
		return language.BrazilianPortuguese
	default:
		return DefaultTag()
	}
}

// NormalizeLocale coerces a locale value onto a supported catalog locale.
// Unknown and blank values become the base locale.
func NormalizeLocale(locale string) string {
	if tag, ok := ParseTag(locale); ok {
		return LocaleForTag(tag)
	}
	return catalog.BaseLocale
}

// canonicalTag collapses matcher output onto the exact supported tags so
// equality checks against SupportedTags entries hold.
func canonicalTag(tag language.Tag) language.Tag {
	base, _ := tag.Base()
	for _, supported := range supportedTags {
		supportedBase, _ := supported.Base()
		if base == supportedBase {
			return supported
		}
	}
	return DefaultTag()
}
