package feed

import (
	"context"
	"log"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/aretasg/surechembl-mini-client/internal/remote"
	"github.com/aretasg/surechembl-mini-client/pkg/types"
)

// ConcurrentFetcher retrieves data files in parallel. Every in-flight fetch
// owns its own connection from the Dialer; connections are never shared
// across goroutines. Results are merged in entry order, so the output is
// identical to a sequential fetch regardless of completion order.
type ConcurrentFetcher struct {
	Dialer remote.Dialer
	// Workers bounds the number of parallel fetches.
	Workers int
	// WorkDir is where in-flight downloads are staged.
	WorkDir string
	Logger  *log.Logger
}

// Fetch downloads all entries and unions the row sets with first-seen-wins
// dedup in entry order. The first failure cancels outstanding work and is
// returned.
func (c *ConcurrentFetcher) Fetch(ctx context.Context, root string, entries []Entry) (*types.RowSet, error) {
	if len(entries) == 0 {
		return types.NewRowSet(), nil
	}

	workers := c.Workers
	if workers < 1 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := semaphore.NewWeighted(int64(workers))
	results := make([]*types.RowSet, len(entries))
	errs := make([]error, len(entries))

	var wg sync.WaitGroup
	for i, entry := range entries {
		if err := sem.Acquire(ctx, 1); err != nil {
			errs[i] = err
			break
		}

		wg.Add(1)
		go func(i int, entry Entry) {
			defer sem.Release(1)
			defer wg.Done()

			rows, err := c.fetchOne(ctx, root, entry)
			if err != nil {
				errs[i] = err
				cancel()
				return
			}
			results[i] = rows
		}(i, entry)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	set := types.NewRowSet()
	for _, rows := range results {
		set.Merge(rows)
	}
	return set, nil
}

// fetchOne dials a dedicated connection for one entry and fetches it with
// the sequential fetcher.
func (c *ConcurrentFetcher) fetchOne(ctx context.Context, root string, entry Entry) (*types.RowSet, error) {
	conn, err := c.Dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Quit()

	fetcher := &Fetcher{WorkDir: c.WorkDir, Logger: c.Logger}
	return fetcher.Fetch(ctx, conn, root, []Entry{entry})
}
