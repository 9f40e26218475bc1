// Package i18n provides translation lookup for the guest portal and the
// Telegram worker. Catalogs are embedded JSON, one file per locale, with
// singular/plural forms and {name}-style interpolation.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strconv"
	"strings"

	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localesFS embed.FS

// FallbackLocale is used when a requested locale is not supported.
const FallbackLocale = "en"

// entry is one catalog message: either a plain string or a plural pair.
type entry struct {
	value string
	one   string
	other string
}

func (e entry) plural() bool { return e.value == "" }

// Translator resolves locales and looks up messages.
type Translator struct {
	defaultLocale string
	catalogs      map[string]map[string]entry
	supported     []string
	tags          []language.Tag
	matcher       language.Matcher
}

// New loads all embedded catalogs and verifies that every catalog defines the
// same key set as the fallback catalog. A missing key is a configuration
// error surfaced at startup, not a runtime lookup failure.
func New(defaultLocale string) (*Translator, error) {
	entries, err := fs.ReadDir(localesFS, "locales")
	if err != nil {
		return nil, fmt.Errorf("read locales: %w", err)
	}

	t := &Translator{catalogs: make(map[string]map[string]entry)}
	for _, dirEntry := range entries {
		locale := strings.TrimSuffix(dirEntry.Name(), ".json")
		catalog, err := loadCatalog(path.Join("locales", dirEntry.Name()))
		if err != nil {
			return nil, fmt.Errorf("locale %s: %w", locale, err)
		}
		t.catalogs[locale] = catalog
		t.supported = append(t.supported, locale)
	}

	base, ok := t.catalogs[FallbackLocale]
	if !ok {
		return nil, fmt.Errorf("fallback locale %q catalog is missing", FallbackLocale)
	}
	for locale, catalog := range t.catalogs {
		for key := range base {
			if _, ok := catalog[key]; !ok {
				return nil, fmt.Errorf("locale %s: missing key %q", locale, key)
			}
		}
		for key := range catalog {
			if _, ok := base[key]; !ok {
				return nil, fmt.Errorf("locale %s: unknown key %q", locale, key)
			}
		}
	}

	for _, locale := range t.supported {
		tag, err := language.Parse(locale)
		if err != nil {
			return nil, fmt.Errorf("locale %s: %w", locale, err)
		}
		if locale == FallbackLocale {
			// The matcher prefers the first tag on no match.
			t.tags = append([]language.Tag{tag}, t.tags...)
		} else {
			t.tags = append(t.tags, tag)
		}
	}
	t.matcher = language.NewMatcher(t.tags)

	if defaultLocale == "" {
		defaultLocale = FallbackLocale
	}
	t.defaultLocale = t.Resolve(defaultLocale)
	return t, nil
}

func loadCatalog(name string) (map[string]entry, error) {
	data, err := localesFS.ReadFile(name)
	if err != nil {
		return nil, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	catalog := make(map[string]entry, len(raw))
	for key, msg := range raw {
		var s string
		if err := json.Unmarshal(msg, &s); err == nil {
			catalog[key] = entry{value: s}
			continue
		}
		var forms struct {
			One   string `json:"one"`
			Other string `json:"other"`
		}
		if err := json.Unmarshal(msg, &forms); err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		if forms.One == "" || forms.Other == "" {
			return nil, fmt.Errorf("key %q: plural entry needs one and other forms", key)
		}
		catalog[key] = entry{one: forms.One, other: forms.Other}
	}
	return catalog, nil
}

// DefaultLocale returns the resolved process-wide default.
func (t *Translator) DefaultLocale() string {
	return t.defaultLocale
}

// Supported returns the locales with a loaded catalog.
func (t *Translator) Supported() []string {
	out := make([]string, len(t.supported))
	copy(out, t.supported)
	return out
}

// Resolve maps an arbitrary locale string (possibly a full BCP-47 tag like
// "de-AT") to a supported catalog locale, falling back to the default.
func (t *Translator) Resolve(locale string) string {
	if locale == "" {
		return t.defaultLocale
	}
	if _, ok := t.catalogs[locale]; ok {
		return locale
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return t.fallback()
	}
	_, idx, conf := t.matcher.Match(tag)
	if conf == language.No {
		return t.fallback()
	}
	base, _ := t.tags[idx].Base()
	if _, ok := t.catalogs[base.String()]; ok {
		return base.String()
	}
	return t.fallback()
}

func (t *Translator) fallback() string {
	if t.defaultLocale != "" {
		return t.defaultLocale
	}
	return FallbackLocale
}

// Translate looks up key in the catalog for locale and interpolates {name}
// placeholders from args.
func (t *Translator) Translate(locale, key string, args map[string]string) string {
	e := t.lookup(locale, key)
	msg := e.value
	if e.plural() {
		msg = e.other
	}
	return interpolate(msg, args)
}

// TranslateN looks up a pluralized key and interpolates the count.
func (t *Translator) TranslateN(locale, key string, n int) string {
	e := t.lookup(locale, key)
	var msg string
	switch {
	case !e.plural():
		msg = e.value
	case n == 1:
		msg = e.one
	default:
		msg = e.other
	}
	return interpolate(msg, map[string]string{"count": strconv.Itoa(n)})
}

func (t *Translator) lookup(locale, key string) entry {
	catalog, ok := t.catalogs[t.Resolve(locale)]
	if !ok {
		catalog = t.catalogs[FallbackLocale]
	}
	if e, ok := catalog[key]; ok {
		return e
	}
	// Completeness is checked at startup; an unknown key here is a programming
	// error, surfaced visibly rather than panicking.
	return entry{value: key}
}

func interpolate(msg string, args map[string]string) string {
	if len(args) == 0 {
		return msg
	}
	pairs := make([]string, 0, len(args)*2)
	for name, value := range args {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}
