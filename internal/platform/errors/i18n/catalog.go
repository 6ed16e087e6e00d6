// Package i18n renders user-facing messages for domain error codes.
package i18n

import (
	"bytes"
	"sync"
	"text/template"

	apperrors "github.com/louisbranch/initiative/internal/platform/errors"
	"github.com/louisbranch/initiative/internal/platform/i18n"
)

// Catalog maps error codes to message templates for a specific locale.
type Catalog struct {
	locale   string
	messages map[apperrors.Code]string
}

var (
	catalogsMu sync.RWMutex
	catalogs   = map[string]*Catalog{
		"en-US": NewCatalog("en-US", enUS),
		"pt-BR": NewCatalog("pt-BR", ptBR),
	}
)

// GetCatalog returns the catalog for locale, falling back to en-US.
func GetCatalog(locale string) *Catalog {
	resolved := i18n.ResolveTag(locale).String()
	catalogsMu.RLock()
	defer catalogsMu.RUnlock()
	if c, ok := catalogs[resolved]; ok {
		return c
	}
	return catalogs[i18n.BaseLocale]
}

// Locale returns the locale of this catalog.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders the template for code with metadata. Unknown codes render
// as the code itself; broken templates render as the raw template.
func (c *Catalog) Format(code apperrors.Code, metadata map[string]string) string {
	tmpl, ok := c.messages[code]
	if !ok {
		return string(code)
	}
	if metadata == nil {
		metadata = map[string]string{}
	}

	t, err := template.New("msg").Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return tmpl
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, metadata); err != nil {
		return tmpl
	}
	return buf.String()
}

// Message renders err in locale when it is a domain error. ok is false for
// any other error.
func Message(locale string, err error) (string, bool) {
	code := apperrors.GetCode(err)
	if code == apperrors.CodeUnknown {
		return "", false
	}
	return GetCatalog(locale).Format(code, apperrors.GetMetadata(err)), true
}

// RegisterCatalog registers cat for locale. Intended for init and tests.
func RegisterCatalog(locale string, cat *Catalog) {
	catalogsMu.Lock()
	defer catalogsMu.Unlock()
	catalogs[locale] = cat
}

// NewCatalog creates a catalog with a copy of messages.
func NewCatalog(locale string, messages map[apperrors.Code]string) *Catalog {
	cloned := make(map[apperrors.Code]string, len(messages))
	for key, value := range messages {
		cloned[key] = value
	}
	return &Catalog{locale: locale, messages: cloned}
}
