package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	assert.Equal(t, []Code{"en", "hi", "pa"}, c.Codes())
	assert.Equal(t, []Direction{
		{Source: "en", Target: "hi"},
		{Source: "en", Target: "pa"},
		{Source: "hi", Target: "en"},
		{Source: "pa", Target: "en"},
	}, c.Directions())

	model, ok := c.Model(Direction{Source: "hi", Target: "en"})
	require.True(t, ok)
	assert.Equal(t, "Helsinki-NLP/opus-mt-hi-en", model)

	assert.False(t, c.HasDirection(Direction{Source: "hi", Target: "pa"}))
}

func TestIsSupported(t *testing.T) {
	c := Default()

	tests := []struct {
		code     string
		expected bool
	}{
		{"en", true},
		{"hi", true},
		{"pa", true},
		{"EN", true},
		{" hi ", true},
		{"hi-IN", true},
		{"pa_IN", true},
		{"fr", false},
		{"", false},
		{"english", false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, c.IsSupported(tt.code))
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, Code("en"), Normalize("EN"))
	assert.Equal(t, Code("fr"), Normalize("fr-CA"))
	assert.Equal(t, Code("pa"), Normalize("pa_IN"))
	assert.Equal(t, Code(""), Normalize("  "))
}

func TestLanguagesReturnsCopy(t *testing.T) {
	c := Default()

	langs := c.Languages()
	langs["fr"] = "French"

	assert.False(t, c.IsSupported("fr"))
	assert.Equal(t, "Hindi", c.Languages()["hi"])
}

func TestNewRejectsBadDirections(t *testing.T) {
	langs := map[Code]string{"en": "English", "hi": "Hindi"}

	_, err := New(langs, map[Direction]string{{Source: "en", Target: "en"}: "m"})
	assert.Error(t, err)

	_, err = New(langs, map[Direction]string{{Source: "fr", Target: "en"}: "m"})
	assert.Error(t, err)

	_, err = New(langs, map[Direction]string{{Source: "en", Target: "fr"}: "m"})
	assert.Error(t, err)

	_, err = New(nil, nil)
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	doc := `
languages:
  en: English
  bn: Bengali
directions:
  - source: bn
    target: en
    model: Helsinki-NLP/opus-mt-bn-en
  - source: en
    target: bn
    model: Helsinki-NLP/opus-mt-en-bn
`
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	c, err := LoadFile(path)
	require.NoError(t, err)

	assert.True(t, c.IsSupported("bn"))
	assert.False(t, c.IsSupported("hi"))
	model, ok := c.Model(Direction{Source: "en", Target: "bn"})
	require.True(t, ok)
	assert.Equal(t, "Helsinki-NLP/opus-mt-en-bn", model)
}

func TestParseRejectsMissingModel(t *testing.T) {
	doc := `
languages:
  en: English
  hi: Hindi
directions:
  - source: hi
    target: en
`
	_, err := Parse([]byte(doc))
	assert.Error(t, err)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
