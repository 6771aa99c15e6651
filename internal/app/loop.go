package app

import (
	"context"
	"sync"
	"time"
)

// runEvery вызывает fn с периодом interval до отмены ctx. Нулевой interval ничего не запускает.
// wg отпускается, когда горутина завершилась вместе с последним вызовом fn.
func runEvery(ctx context.Context, wg *sync.WaitGroup, interval time.Duration, fn func(context.Context)) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}()
}
