package transport

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// Merge runs every source against the same sink. When any source returns,
// the others are cancelled; the first error wins.
func Merge(sources ...Source) Source {
	return SourceFunc(func(ctx context.Context, sink EventSink) error {
		if len(sources) == 0 {
			return errors.New("no sources configured")
		}
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		g, gctx := errgroup.WithContext(runCtx)
		for _, src := range sources {
			if src == nil {
				continue
			}
			g.Go(func() error {
				defer cancel()
				return src.Listen(gctx, sink)
			})
		}
		return g.Wait()
	})
}
