package store

import (
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mural-service/internal/manifest"
)

func ptr[T any](v T) *T { return &v }

func TestConfig_LoadMissingIsEmpty(t *testing.T) {
	c := NewConfig(afero.NewMemMapFs(), "/media")
	doc, err := c.Load()
	require.NoError(t, err)
	assert.Nil(t, doc.Defaults.FitMode)
	assert.Empty(t, doc.Items)
	assert.NotNil(t, doc.Items)
}

func TestConfig_LoadBrokenFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/media/media.json", []byte("{nope"), 0o600))
	c := NewConfig(fs, "/media")

	doc, err := c.Load()
	assert.Error(t, err)
	assert.Empty(t, doc.Items)

	// a mutation replaces the broken file
	_, err = c.SetDefaults(manifest.Props{ImageDurationMs: ptr(3000)})
	require.NoError(t, err)
	doc, err = c.Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, *doc.Defaults.ImageDurationMs)
}

func TestConfig_SetDefaultsReplaces(t *testing.T) {
	c := NewConfig(afero.NewMemMapFs(), "/media")

	_, err := c.SetDefaults(manifest.Props{ImageDurationMs: ptr(3000), Mute: ptr(false)})
	require.NoError(t, err)
	got, err := c.SetDefaults(manifest.Props{BgColor: ptr("#fff")})
	require.NoError(t, err)

	assert.Nil(t, got.ImageDurationMs)
	assert.Equal(t, "#fff", *got.BgColor)
}

func TestConfig_UpsertOverrideMerges(t *testing.T) {
	c := NewConfig(afero.NewMemMapFs(), "/media")

	_, err := c.UpsertOverride(manifest.Override{Src: "a.png", Props: manifest.Props{FitMode: ptr(manifest.FitCrop)}})
	require.NoError(t, err)
	_, err = c.UpsertOverride(manifest.Override{Src: "b.png", Props: manifest.Props{Mute: ptr(true)}})
	require.NoError(t, err)
	got, err := c.UpsertOverride(manifest.Override{Src: "a.png", Props: manifest.Props{ImageDurationMs: ptr(2000)}})
	require.NoError(t, err)

	assert.Equal(t, manifest.FitCrop, *got.FitMode)
	assert.Equal(t, 2000, *got.ImageDurationMs)

	doc, err := c.Load()
	require.NoError(t, err)
	require.Len(t, doc.Items, 2)
	assert.Equal(t, "a.png", doc.Items[0].Src)
	assert.Equal(t, "b.png", doc.Items[1].Src)

	_, err = c.UpsertOverride(manifest.Override{})
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestConfig_DeleteOverride(t *testing.T) {
	c := NewConfig(afero.NewMemMapFs(), "/media")
	_, err := c.UpsertOverride(manifest.Override{Src: "a.png", Props: manifest.Props{Mute: ptr(true)}})
	require.NoError(t, err)

	require.NoError(t, c.DeleteOverride("a.png"))
	require.NoError(t, c.DeleteOverride("missing.png"))

	doc, err := c.Load()
	require.NoError(t, err)
	assert.Empty(t, doc.Items)
}

func TestConfig_FileFormat(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := NewConfig(fs, "/media")
	_, err := c.UpsertOverride(manifest.Override{Src: "a.png", Props: manifest.Props{FitMode: ptr(manifest.FitFill)}})
	require.NoError(t, err)

	data, err := afero.ReadFile(fs, "/media/media.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"defaults":{},"items":[{"src":"a.png","fitMode":"fill"}]}`, string(data))

	exists, err := afero.Exists(fs, "/media/media.json.tmp")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestConfig_ConcurrentUpserts(t *testing.T) {
	c := NewConfig(afero.NewMemMapFs(), "/media")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			src := string(rune('a'+i)) + ".png"
			_, err := c.UpsertOverride(manifest.Override{Src: src, Props: manifest.Props{ImageDurationMs: ptr(i + 1)}})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	doc, err := c.Load()
	require.NoError(t, err)
	assert.Len(t, doc.Items, 20)
}
