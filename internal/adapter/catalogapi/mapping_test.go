package catalogapi

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoArmGo/PhotoViewer/internal/domain"
)

func TestDecode_DropsRecordWithoutFullImage(t *testing.T) {
	m, err := Preset("pixabay")
	require.NoError(t, err)

	body := []byte(`{"total": 5, "hits": [
		{"id": 1, "user": "a", "largeImageURL": "http://x/1.jpg"},
		{"id": 2, "user": "b", "largeImageURL": "http://x/2.jpg"},
		{"id": 3, "user": "c"},
		{"id": 4, "user": "d", "largeImageURL": "http://x/4.jpg"},
		{"id": 5, "user": "e", "largeImageURL": "http://x/5.jpg"}
	]}`)

	res, err := m.Decode(body)
	require.NoError(t, err)
	assert.Len(t, res.Entries, 4)
	assert.Equal(t, 1, res.Dropped)

	for i, e := range res.Entries {
		assert.Equal(t, i, e.Position)
	}
	assert.Equal(t, "http://x/4.jpg", res.Entries[2].FullImageURL)
}

func TestDecode_PixabayScenario(t *testing.T) {
	m, err := Preset("pixabay")
	require.NoError(t, err)

	res, err := m.Decode([]byte(`{"hits":[{"id":1,"user":"a","largeImageURL":"http://x/1.jpg"}]}`))
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)

	e := res.Entries[0]
	require.NotNil(t, e.SourceID)
	assert.Equal(t, int64(1), *e.SourceID)
	require.NotNil(t, e.AttributionName)
	assert.Equal(t, "a", *e.AttributionName)
	assert.Equal(t, "http://x/1.jpg", e.FullImageURL)
	assert.Equal(t, 0, e.Width)
	assert.Nil(t, e.PreviewImageURL)
	assert.Equal(t, domain.EntryKey(e.SourceID, e.FullImageURL), e.ID)
}

func TestDecode_PicsumStringIDs(t *testing.T) {
	m, err := Preset("picsum")
	require.NoError(t, err)

	res, err := m.Decode([]byte(`[
		{"id":"0","author":"Alejandro Escamilla","width":5000,"height":3333,
		 "url":"https://unsplash.com/photos/yC-Yzbqy7PY","download_url":"https://picsum.photos/id/0/5000/3333"}
	]`))
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)

	e := res.Entries[0]
	require.NotNil(t, e.SourceID)
	assert.Equal(t, int64(0), *e.SourceID)
	assert.Equal(t, 5000, e.Width)
	assert.Equal(t, 3333, e.Height)
	require.NotNil(t, e.SourcePageURL)
	assert.Equal(t, "https://unsplash.com/photos/yC-Yzbqy7PY", *e.SourcePageURL)
}

func TestDecode_UnsplashNestedPaths(t *testing.T) {
	m, err := Preset("unsplash")
	require.NoError(t, err)

	res, err := m.Decode([]byte(`[{"id":"Dwu85P9SOIk","width":2448,"height":3264,
		"urls":{"full":"https://images.unsplash.com/full","small":"https://images.unsplash.com/small"},
		"links":{"html":"https://unsplash.com/photos/Dwu85P9SOIk"},
		"user":{"name":"Jane"}}]`))
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)

	e := res.Entries[0]
	assert.Nil(t, e.SourceID)
	assert.Equal(t, "https://images.unsplash.com/full", e.FullImageURL)
	require.NotNil(t, e.PreviewImageURL)
	assert.Equal(t, "https://images.unsplash.com/small", *e.PreviewImageURL)
	require.NotNil(t, e.AttributionName)
	assert.Equal(t, "Jane", *e.AttributionName)
}

func TestDecode_MalformedRecordsAreDropped(t *testing.T) {
	m, err := Preset("picsum")
	require.NoError(t, err)

	res, err := m.Decode([]byte(`[
		"not an object",
		{"id": 1, "download_url": 42},
		{"id": 2, "download_url": "not a url"},
		{"id": 3, "download_url": "http://x/3.jpg", "width": -10, "author": ""},
		{"id": 3, "download_url": "http://x/3-dup.jpg"}
	]`))
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, 4, res.Dropped)
	assert.Equal(t, 0, res.Entries[0].Width)
	assert.Nil(t, res.Entries[0].AttributionName)
}

func TestDecode_WholeBodyFailures(t *testing.T) {
	m, err := Preset("pixabay")
	require.NoError(t, err)

	_, err = m.Decode([]byte(`<html>oops</html>`))
	assert.ErrorIs(t, err, domain.ErrDecode)

	_, err = m.Decode([]byte(`{"hits": {"id": 1}}`))
	assert.ErrorIs(t, err, domain.ErrDecode)

	res, err := m.Decode([]byte(`{"hits": []}`))
	require.NoError(t, err)
	assert.Empty(t, res.Entries)
}

func TestPreset_Unknown(t *testing.T) {
	_, err := Preset("flickr")
	assert.Error(t, err)

	m, err := Preset(" PicSum ")
	require.NoError(t, err)
	assert.Equal(t, "picsum", m.Name)
}

func TestParseMapping_InheritsFromBase(t *testing.T) {
	m, err := ParseMapping([]byte(`
name: pixabay-editors
base: pixabay
endpoint: https://pixabay.com/api/?editors_choice=true
preview_image: webformatURL
`))
	require.NoError(t, err)
	assert.Equal(t, "pixabay-editors", m.Name)
	assert.Equal(t, "webformatURL", m.PreviewImage)
	assert.Equal(t, "largeImageURL", m.FullImage)
	assert.Equal(t, "hits", m.Items)
	assert.Equal(t, "key", m.APIKeyParam)
}

func TestParseMapping_Invalid(t *testing.T) {
	_, err := ParseMapping([]byte(`name: broken`))
	assert.Error(t, err, "без full_image маппинг непригоден")

	_, err = ParseMapping([]byte(`base: nope
full_image: x`))
	assert.Error(t, err)

	_, err = ParseMapping([]byte(`full_image: x
api_key_param: key
api_key_header: Authorization`))
	assert.Error(t, err)

	_, err = ParseMapping([]byte("full_image: [unclosed"))
	assert.Error(t, err)
}

func TestLoadMappingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: custom\nfull_image: src\nattribution: by\n"), 0o600))

	m, err := LoadMappingFile(path)
	require.NoError(t, err)
	assert.Equal(t, "src", m.FullImage)
	assert.Equal(t, "by", m.Attribution)

	_, err = LoadMappingFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
