package i18n

import (
	"testing"

	"golang.org/x/text/language"
)

func TestParseTagSupported(t *testing.T) {
	cases := []struct {
		name  string
		value string
		want  language.Tag
		ok    bool
	}{
		{name: "exact en-US", value: "en-US", want: language.AmericanEnglish, ok: true},
		{name: "exact pt-BR", value: "pt-BR", want: language.BrazilianPortuguese, ok: true},
		{name: "bare pt resolves to pt-BR", value: "pt", want: language.BrazilianPortuguese, ok: true},
		{name: "bare en resolves to en-US", value: "en", want: language.AmericanEnglish, ok: true},
		{name: "unsupported falls back", value: "zz-ZZ", want: language.AmericanEnglish, ok: false},
		{name: "garbage falls back", value: "not a tag!!", want: language.AmericanEnglish, ok: false},
		{name: "blank falls back", value: "  ", want: language.AmericanEnglish, ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseTag(tc.value)
			if ok != tc.ok {
				t.Fatalf("ParseTag(%q) ok = %v, want %v", tc.value, ok, tc.ok)
			}
			if got != tc.want {
				t.Fatalf("ParseTag(%q) = %v, want %v", tc.value, got, tc.want)
			}
		})
	}
}

func TestMatchTagsPrefersFirstSupported(t *testing.T) {
	got := MatchTags([]language.Tag{language.French, language.BrazilianPortuguese})
	if got != language.BrazilianPortuguese {
		t.Fatalf("MatchTags = %v, want %v", got, language.BrazilianPortuguese)
	}
}

func TestMatchTagsEmptyFallsBack(t *testing.T) {
	if got := MatchTags(nil); got != DefaultTag() {
		t.Fatalf("MatchTags(nil) = %v, want default", got)
	}
}

func TestLocaleForTagRoundTrip(t *testing.T) {
	for _, tag := range SupportedTags() {
		locale := LocaleForTag(tag)
		if TagForLocale(locale) != tag {
			t.Fatalf("TagForLocale(LocaleForTag(%v)) = %v", tag, TagForLocale(locale))
		}
	}
}

func TestLocaleForTagUnknownUsesBase(t *testing.T) {
	if got := LocaleForTag(language.Japanese); got != LocaleEnUS {
		t.Fatalf("LocaleForTag(ja) = %q, want %q", got, LocaleEnUS)
	}
}

func TestNormalizeLocale(t *testing.T) {
	cases := []struct {
		value string
		want  string
	}{
		{value: "pt-BR", want: LocalePtBR},
		{value: "pt", want: LocalePtBR},
		{value: "en-US", want: LocaleEnUS},
		{value: "en-GB", want: LocaleEnUS},
		{value: "zz-ZZ", want: LocaleEnUS},
		{value: "", want: LocaleEnUS},
	}
	for _, tc := range cases {
		if got := NormalizeLocale(tc.value); got != tc.want {
			t.Fatalf("NormalizeLocale(%q) = %q, want %q", tc.value, got, tc.want)
		}
	}
}
