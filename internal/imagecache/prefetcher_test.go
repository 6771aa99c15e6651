package imagecache

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoArmGo/PhotoViewer/internal/domain"
	"github.com/GoArmGo/PhotoViewer/internal/viewmodel"
)

func itemsFor(base string, names ...string) domain.Catalog {
	c := make(domain.Catalog, 0, len(names))
	for i, n := range names {
		full := base + "/full/" + n
		preview := base + "/preview/" + n
		c = append(c, domain.CatalogEntry{
			ID:              domain.EntryKey(nil, full),
			Position:        i,
			FullImageURL:    full,
			PreviewImageURL: &preview,
		})
	}
	return c
}

func TestPrefetcher_ObserveWarmsPreviews(t *testing.T) {
	srv := newImageServer(t)
	cache := newTestCache(t, afero.NewMemMapFs())
	p := NewPrefetcher(context.Background(), cache, 2, slog.New(slog.NewTextHandler(io.Discard, nil)))

	p.Observe(viewmodel.Snapshot{
		Status:  viewmodel.Status{Kind: viewmodel.StatusReady},
		Items:   itemsFor(srv.URL, "a.png", "b.png", "c.png"),
		Version: 1,
	})
	p.Close()

	assert.Equal(t, int32(3), srv.hits.Load())
	assert.Equal(t, 3, cache.MemoryItems())

	img, err := cache.Get(context.Background(), srv.URL+"/preview/b.png")
	require.NoError(t, err)
	assert.Equal(t, SourceMemory, img.Source)
}

func TestPrefetcher_IgnoresNotReadyAndStaleSnapshots(t *testing.T) {
	srv := newImageServer(t)
	cache := newTestCache(t, afero.NewMemMapFs())
	p := NewPrefetcher(context.Background(), cache, 2, slog.New(slog.NewTextHandler(io.Discard, nil)))

	p.Observe(viewmodel.Snapshot{
		Status:  viewmodel.Status{Kind: viewmodel.StatusLoading},
		Items:   itemsFor(srv.URL, "a.png"),
		Version: 5,
	})
	p.Observe(viewmodel.Snapshot{
		Status:  viewmodel.Status{Kind: viewmodel.StatusReady},
		Items:   itemsFor(srv.URL, "b.png"),
		Version: 2,
	})
	p.Observe(viewmodel.Snapshot{
		Status:  viewmodel.Status{Kind: viewmodel.StatusReady},
		Items:   itemsFor(srv.URL, "c.png"),
		Version: 1,
	})
	p.Close()

	assert.Equal(t, int32(1), srv.hits.Load())
}

func TestPrefetcher_Warm(t *testing.T) {
	srv := newImageServer(t)
	cache := newTestCache(t, afero.NewMemMapFs())
	p := NewPrefetcher(context.Background(), cache, 4, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer p.Close()

	require.NoError(t, p.Warm(itemsFor(srv.URL, "a.png", "b.png", "missing.png")))
	assert.Equal(t, 2, cache.MemoryItems())
}
