package logger

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestL_LazyInitIsShared(t *testing.T) {
	req := require.New(t)
	prev := def.Swap(nil)
	t.Cleanup(func() { def.Store(prev) })

	// Given: Init ещё не вызывали, первые запросы приходят одновременно
	const workers = 16
	got := make([]*slog.Logger, workers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			got[i] = L()
		}()
	}

	// When
	close(start)
	wg.Wait()

	// Then: все получили один и тот же логгер
	req.NotNil(got[0])
	for _, l := range got[1:] {
		req.Same(got[0], l)
	}
	req.Same(got[0], L())
}
