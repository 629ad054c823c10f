// Package ingest orchestrates full ingestion runs: front-file updates driven
// by a date spec plus backlog, and back-file archive loads over a year range.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aretasg/surechembl-mini-client/internal/db"
	"github.com/aretasg/surechembl-mini-client/internal/feed"
	"github.com/aretasg/surechembl-mini-client/internal/remote"
	"github.com/aretasg/surechembl-mini-client/pkg/types"
)

// Client ties the feed transport to the destination loader. Runs against the
// same destination table must be externally serialized; the bulk-load
// protocol is not safe under concurrent writers.
type Client struct {
	// Dialer opens feed sessions. Parallel fetches dial additional sessions.
	Dialer remote.Dialer

	// Loader writes row sets into the destination table.
	Loader *db.Loader

	// Backlog stores front-file partitions that were not yet published.
	Backlog *feed.Backlog

	// FrontfileDir and BackfileDir are the feed roots, relative to the
	// session root.
	FrontfileDir string
	BackfileDir  string

	// WorkDir stages in-flight downloads.
	WorkDir string

	// Workers bounds parallel fetches. 1 fetches sequentially over the run's
	// own connection.
	Workers int

	Logger *log.Logger

	// Now returns the current time; overridable for tests.
	Now func() time.Time
}

// fetch unions the entries' rows, in entry order, with first-seen-wins
// natural-key dedup. With more than one worker each entry is fetched over its
// own dialed session; otherwise the run's session is reused.
func (c *Client) fetch(ctx context.Context, conn remote.Conn, root string, entries []feed.Entry) (*types.RowSet, error) {
	if c.Workers > 1 && len(entries) > 1 {
		fetcher := &feed.ConcurrentFetcher{
			Dialer:  c.Dialer,
			Workers: c.Workers,
			WorkDir: c.WorkDir,
			Logger:  c.Logger,
		}
		return fetcher.Fetch(ctx, root, entries)
	}
	fetcher := &feed.Fetcher{WorkDir: c.WorkDir, Logger: c.Logger}
	return fetcher.Fetch(ctx, conn, root, entries)
}

// load merges set into the destination table and reports the row counts
// before and after.
func (c *Client) load(ctx context.Context, set *types.RowSet) error {
	if set.Len() == 0 {
		c.Logger.Printf("No rows to load into %s.", c.Loader.Table())
		return nil
	}

	before, err := c.Loader.Count(ctx)
	if err != nil {
		return err
	}
	if err := c.Loader.Load(ctx, set); err != nil {
		return err
	}
	after, err := c.Loader.Count(ctx)
	if err != nil {
		return err
	}

	c.Logger.Printf("Loaded %d parsed rows into %s: %d rows before, %d after, %d new.",
		set.Len(), c.Loader.Table(), before, after, after-before)
	return nil
}

// ensureAlive probes conn and redials when the session has gone stale.
// The stale session is closed best-effort.
func (c *Client) ensureAlive(ctx context.Context, conn remote.Conn) (remote.Conn, error) {
	if err := conn.NoOp(ctx); err == nil {
		return conn, nil
	}

	c.Logger.Printf("Feed session is stale. Reconnecting.")
	conn.Quit()

	fresh, err := c.Dialer.Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: reconnect: %v", types.ErrConnection, err)
	}
	return fresh, nil
}

// isNotFound reports whether err means a remote path does not exist.
func isNotFound(err error) bool {
	return errors.Is(err, types.ErrNotFound)
}
