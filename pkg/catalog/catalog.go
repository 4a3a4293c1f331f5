// Package catalog holds the closed set of languages the chat pipeline accepts
// and the translation directions available between them.
package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// Code is an ISO 639-1 language code such as "en" or "hi".
type Code string

// English is the working language of the generation stage.
const English Code = "en"

// Direction is an ordered (source, target) language pair.
type Direction struct {
	Source Code
	Target Code
}

// String renders the direction as "src->tgt" for logs and metric labels.
func (d Direction) String() string {
	return string(d.Source) + "->" + string(d.Target)
}

// Catalog is immutable after construction and safe for concurrent use.
type Catalog struct {
	languages  map[Code]string
	directions map[Direction]string // direction -> translation model name
}

// New builds a catalog from language names and direction models.
// Every direction must join two distinct, known languages.
func New(languages map[Code]string, directions map[Direction]string) (*Catalog, error) {
	if len(languages) == 0 {
		return nil, fmt.Errorf("catalog: no languages configured")
	}

	c := &Catalog{
		languages:  make(map[Code]string, len(languages)),
		directions: make(map[Direction]string, len(directions)),
	}
	for code, name := range languages {
		norm := Normalize(string(code))
		if norm == "" {
			return nil, fmt.Errorf("catalog: empty language code")
		}
		c.languages[norm] = name
	}

	for dir, model := range directions {
		d := Direction{Source: Normalize(string(dir.Source)), Target: Normalize(string(dir.Target))}
		if d.Source == d.Target {
			return nil, fmt.Errorf("catalog: direction %s has identical source and target", d)
		}
		if _, ok := c.languages[d.Source]; !ok {
			return nil, fmt.Errorf("catalog: direction %s uses unknown source language", d)
		}
		if _, ok := c.languages[d.Target]; !ok {
			return nil, fmt.Errorf("catalog: direction %s uses unknown target language", d)
		}
		c.directions[d] = model
	}

	return c, nil
}

// Default returns the built-in catalog: English, Hindi and Punjabi, each
// non-English language translatable to and from English with opus-mt models.
func Default() *Catalog {
	c, err := New(
		map[Code]string{
			"en": "English",
			"hi": "Hindi",
			"pa": "Punjabi",
		},
		map[Direction]string{
			{Source: "hi", Target: "en"}: "Helsinki-NLP/opus-mt-hi-en",
			{Source: "en", Target: "hi"}: "Helsinki-NLP/opus-mt-en-hi",
			{Source: "pa", Target: "en"}: "Helsinki-NLP/opus-mt-pa-en",
			{Source: "en", Target: "pa"}: "Helsinki-NLP/opus-mt-en-pa",
		},
	)
	if err != nil {
		panic(err)
	}
	return c
}

// Normalize converts a caller-supplied code to catalog form.
// Examples:
//   - "EN" -> "en"
//   - " hi-IN " -> "hi"
//   - "pa_IN" -> "pa"
func Normalize(raw string) Code {
	lang := strings.ToLower(strings.TrimSpace(raw))
	if idx := strings.IndexAny(lang, "-_"); idx >= 0 {
		lang = lang[:idx]
	}
	return Code(lang)
}

// IsSupported reports whether code, after normalization, is in the catalog.
func (c *Catalog) IsSupported(code string) bool {
	_, ok := c.Lookup(code)
	return ok
}

// Lookup normalizes raw and returns the catalog code if it is supported.
func (c *Catalog) Lookup(raw string) (Code, bool) {
	code := Normalize(raw)
	_, ok := c.languages[code]
	return code, ok
}

// Codes returns the supported language codes in sorted order.
func (c *Catalog) Codes() []Code {
	codes := make([]Code, 0, len(c.languages))
	for code := range c.languages {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// Languages returns a copy of the code -> display name map.
func (c *Catalog) Languages() map[Code]string {
	out := make(map[Code]string, len(c.languages))
	for k, v := range c.languages {
		out[k] = v
	}
	return out
}

// Directions returns every available direction, sorted by source then target.
func (c *Catalog) Directions() []Direction {
	dirs := make([]Direction, 0, len(c.directions))
	for d := range c.directions {
		dirs = append(dirs, d)
	}
	sort.Slice(dirs, func(i, j int) bool {
		if dirs[i].Source != dirs[j].Source {
			return dirs[i].Source < dirs[j].Source
		}
		return dirs[i].Target < dirs[j].Target
	})
	return dirs
}

// HasDirection reports whether d is in the capability map.
func (c *Catalog) HasDirection(d Direction) bool {
	_, ok := c.directions[d]
	return ok
}

// Model returns the translation model name configured for d.
func (c *Catalog) Model(d Direction) (string, bool) {
	m, ok := c.directions[d]
	return m, ok
}
