package catalogapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoArmGo/PhotoViewer/internal/domain"
)

func newTestClient(t *testing.T, provider, apiKey string) *Client {
	t.Helper()
	m, err := Preset(provider)
	require.NoError(t, err)
	c, err := NewClient(Config{Mapping: m, APIKey: apiKey, Timeout: 2 * time.Second}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return c
}

func TestClient_FetchCatalog_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		assert.Equal(t, "cats", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"hits":[
			{"id":1,"user":"a","largeImageURL":"http://x/1.jpg"},
			{"id":2,"user":"b","largeImageURL":"http://x/2.jpg","previewURL":"http://x/2s.jpg"},
			{"id":3,"user":"c"}
		]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, "pixabay", "secret")
	entries, err := c.FetchCatalog(context.Background(), srv.URL+"/api/?q=cats")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "http://x/2s.jpg", entries[1].PreviewOrFull())
}

func TestClient_FetchCatalog_HeaderKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Client-ID abc", r.Header.Get("Authorization"))
		assert.Empty(t, r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := newTestClient(t, "unsplash", "abc")
	entries, err := c.FetchCatalog(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestClient_FetchCatalog_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"hits": [`))
	}))
	defer srv.Close()

	c := newTestClient(t, "pixabay", "")
	_, err := c.FetchCatalog(context.Background(), srv.URL)
	assert.ErrorIs(t, err, domain.ErrDecode)
	assert.Equal(t, domain.FailureDecode, domain.KindOf(err))
}

func TestClient_FetchCatalog_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, "picsum", "")
	_, err := c.FetchCatalog(context.Background(), srv.URL)
	assert.ErrorIs(t, err, domain.ErrNetwork)
	assert.Contains(t, err.Error(), "500")
}

func TestClient_FetchCatalog_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := newTestClient(t, "picsum", "")
	_, err := c.FetchCatalog(context.Background(), url)
	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func TestClient_FetchCatalog_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	m, err := Preset("picsum")
	require.NoError(t, err)
	c, err := NewClient(Config{Mapping: m, Timeout: 50 * time.Millisecond}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	_, err = c.FetchCatalog(context.Background(), srv.URL)
	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func TestClient_DefaultEndpoint(t *testing.T) {
	c := newTestClient(t, "picsum", "")
	assert.Equal(t, "https://picsum.photos/v2/list", c.Endpoint())

	_, err := NewClient(Config{Mapping: FieldMapping{Name: "empty"}}, slog.Default())
	assert.Error(t, err)
}
