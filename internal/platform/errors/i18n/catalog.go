// Package i18n provides internationalization support for error messages.
package i18n

import (
	"bytes"
	"strings"
	"sync"
	"text/template"

	"golang.org/x/text/language"
)

// Code is a machine-readable error code (duplicated from errors package to avoid cycle).
type Code = string

// BaseLocale is the canonical source locale for catalogs.
const BaseLocale = "en-US"

// Catalog maps error codes to message templates for a specific locale.
type Catalog struct {
	locale   string
	messages map[Code]string
}

var (
	catalogsMu sync.RWMutex
	// catalogs holds built-in and registered catalogs by locale.
	catalogs = map[string]*Catalog{}

	// supportedLocales lists catalogs shipped with the binary, base first.
	supportedLocales = []language.Tag{
		language.MustParse("en-US"),
		language.MustParse("pt-BR"),
	}
	localeMatcher = language.NewMatcher(supportedLocales)
)

// GetCatalog returns the catalog for the given locale.
// Unknown locales resolve through language matching and fall back to en-US.
func GetCatalog(locale string) *Catalog {
	requested := strings.TrimSpace(locale)
	if requested == "" {
		requested = BaseLocale
	}

	if c, ok := lookupCatalog(requested); ok {
		return c
	}

	resolved := resolveLocale(requested)
	if c, ok := lookupCatalog(resolved); ok {
		return c
	}
	c, _ := lookupCatalog(BaseLocale)
	return c
}

// MatchAcceptLanguage resolves an Accept-Language header value to the best
// supported catalog. Unparseable or empty headers resolve to en-US.
func MatchAcceptLanguage(header string) *Catalog {
	header = strings.TrimSpace(header)
	if header == "" {
		return GetCatalog(BaseLocale)
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return GetCatalog(BaseLocale)
	}
	_, idx, conf := localeMatcher.Match(tags...)
	if conf == language.No || idx < 0 || idx >= len(supportedLocales) {
		return GetCatalog(BaseLocale)
	}
	return GetCatalog(supportedLocales[idx].String())
}

// Locale returns the locale of this catalog.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders the message template with the given metadata.
// Falls back to the error code itself if no template is found.
// Templates are always executed even with nil/empty metadata to ensure
// consistent output (template variables without metadata render as empty).
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	tmpl, ok := c.messages[code]
	if !ok {
		return code
	}

	// Ensure metadata is non-nil for template execution
	if metadata == nil {
		metadata = map[string]string{}
	}

	t, err := template.New("msg").Parse(tmpl)
	if err != nil {
		return tmpl
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, metadata); err != nil {
		return tmpl
	}
	return buf.String()
}

// RegisterCatalog registers a new catalog for the given locale.
func RegisterCatalog(locale string, cat *Catalog) {
	catalogsMu.Lock()
	defer catalogsMu.Unlock()
	catalogs[locale] = cat
}

// NewCatalog creates a new catalog with the given locale and messages.
func NewCatalog(locale string, messages map[Code]string) *Catalog {
	cloned := make(map[Code]string, len(messages))
	for key, value := range messages {
		cloned[key] = value
	}
	return &Catalog{
		locale:   locale,
		messages: cloned,
	}
}

// resolveLocale maps a requested locale to the closest supported one.
func resolveLocale(requested string) string {
	tag := language.Make(requested)
	_, idx, conf := localeMatcher.Match(tag)
	if conf == language.No {
		return BaseLocale
	}
	if idx < 0 || idx >= len(supportedLocales) {
		return BaseLocale
	}
	return supportedLocales[idx].String()
}

func lookupCatalog(locale string) (*Catalog, bool) {
	catalogsMu.RLock()
	defer catalogsMu.RUnlock()
	cat, ok := catalogs[locale]
	return cat, ok
}
