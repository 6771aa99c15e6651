package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/GoArmGo/PhotoViewer/internal/domain"
)

type slowStore struct {
	writing  atomic.Bool
	overlaps atomic.Int32
	catalog  domain.Catalog
}

func (s *slowStore) ReadAll(context.Context) domain.Catalog {
	if s.writing.Load() {
		s.overlaps.Add(1)
	}
	return s.catalog.Clone()
}

func (s *slowStore) IsEmpty(context.Context) bool {
	if s.writing.Load() {
		s.overlaps.Add(1)
	}
	return s.catalog.IsEmpty()
}

func (s *slowStore) ReplaceAll(_ context.Context, c domain.Catalog) error {
	s.writing.Store(true)
	time.Sleep(5 * time.Millisecond)
	s.catalog = c.Clone()
	s.writing.Store(false)
	return nil
}

func TestGuarded_ReadsNeverOverlapWrites(t *testing.T) {
	inner := &slowStore{}
	g := NewGuarded(inner)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				_ = g.ReplaceAll(ctx, sampleCatalog(n+1))
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				c := g.ReadAll(ctx)
				_ = g.IsEmpty(ctx)
				for k, e := range c {
					assert.Equal(t, k, e.Position)
				}
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, inner.overlaps.Load())
	assert.False(t, g.IsEmpty(ctx))
}
