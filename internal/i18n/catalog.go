// Package i18n holds the bot's localized texts and per-language API settings.
package i18n

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales.yaml
var embedded []byte

// Language describes one selectable interface language.
type Language struct {
	Code  string `yaml:"code"`
	Label string `yaml:"label"`
	// Locale is sent to the autocomplete and pricing APIs.
	Locale   string `yaml:"locale"`
	Currency string `yaml:"currency"`
}

type languageDoc struct {
	Language `yaml:",inline"`
	Texts    map[string]string `yaml:"texts"`
}

type catalogDoc struct {
	Default   string        `yaml:"default"`
	Languages []languageDoc `yaml:"languages"`
}

// Catalog resolves texts by language with fallback to the default language.
// It is immutable after construction and safe for concurrent use.
type Catalog struct {
	def   string
	order []Language
	langs map[string]languageDoc
}

// Default parses the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(embedded)
}

// MustDefault is Default that panics on a malformed embedded file.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// Parse builds a catalog from YAML.
func Parse(data []byte) (*Catalog, error) {
	var doc catalogDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("i18n: parse catalog: %w", err)
	}
	c := &Catalog{
		def:   strings.ToLower(strings.TrimSpace(doc.Default)),
		langs: make(map[string]languageDoc, len(doc.Languages)),
	}
	for _, l := range doc.Languages {
		l.Code = strings.ToLower(strings.TrimSpace(l.Code))
		if l.Code == "" {
			return nil, fmt.Errorf("i18n: language without code")
		}
		if _, dup := c.langs[l.Code]; dup {
			return nil, fmt.Errorf("i18n: duplicate language %q", l.Code)
		}
		c.langs[l.Code] = l
		c.order = append(c.order, l.Language)
	}
	if _, ok := c.langs[c.def]; !ok {
		return nil, fmt.Errorf("i18n: default language %q not defined", doc.Default)
	}
	return c, nil
}

// Languages returns languages in catalog order.
func (c *Catalog) Languages() []Language {
	return append([]Language(nil), c.order...)
}

// Supported reports whether code is a known language.
func (c *Catalog) Supported(code string) bool {
	_, ok := c.langs[code]
	return ok
}

// Language returns settings for code, or the default language when unknown.
func (c *Catalog) Language(code string) Language {
	if l, ok := c.langs[code]; ok {
		return l.Language
	}
	return c.langs[c.def].Language
}

// DefaultCode is the fallback language code.
func (c *Catalog) DefaultCode() string {
	return c.def
}

// Text returns the string for key; missing translations fall back to the default language,
// and a missing key yields the key itself.
func (c *Catalog) Text(lang, key string) string {
	if l, ok := c.langs[lang]; ok {
		if s, ok := l.Texts[key]; ok && s != "" {
			return s
		}
	}
	if s, ok := c.langs[c.def].Texts[key]; ok {
		return s
	}
	return key
}

// Render substitutes {name} placeholders in the text for key.
func (c *Catalog) Render(lang, key string, vars map[string]string) string {
	s := c.Text(lang, key)
	if len(vars) == 0 {
		return s
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}
