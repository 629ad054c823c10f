package ingest

import (
	"context"

	"github.com/aretasg/surechembl-mini-client/internal/feed"
)

// LoadFrontfile ingests the front-file partitions selected by spec. In today
// mode the backlog is consumed first, so previously missed days are retried
// alongside the current one. A partition that is not published yet halts the
// run: the unresolved partition and every partition not yet attempted are
// queued in the backlog and the run ends without loading, to be retried whole
// on the next invocation. All visited partitions contribute to a single union
// row set, loaded in one pass.
func (c *Client) LoadFrontfile(ctx context.Context, spec feed.DateSpec) error {
	conn, err := c.Dialer.Dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Quit()

	root, err := conn.CurrentDir()
	if err != nil {
		return err
	}

	resolver := &feed.Resolver{
		FrontfileDir: c.FrontfileDir,
		Backlog:      c.Backlog,
		Now:          c.Now,
		Logger:       c.Logger,
	}
	dirs, err := resolver.Resolve(ctx, conn, root, spec)
	if err != nil {
		return err
	}

	lister := &feed.Lister{
		FrontfileDir: c.FrontfileDir,
		WorkDir:      c.WorkDir,
		Logger:       c.Logger,
	}

	var entries []feed.Entry
	for i, dir := range dirs {
		if err := conn.ChangeDir(ctx, root); err != nil {
			return err
		}
		if err := conn.ChangeDir(ctx, dir); err != nil {
			if isNotFound(err) {
				c.Logger.Printf("Partition %s is not published yet. Halting; the run will be retried whole.", dir)
				for _, pending := range dirs[i:] {
					if err := c.Backlog.Append(pending); err != nil {
						return err
					}
				}
				return nil
			}
			return err
		}

		dirEntries, err := lister.ListDataFiles(ctx, conn, dir)
		if err != nil {
			return err
		}
		entries = append(entries, dirEntries...)
	}

	set, err := c.fetch(ctx, conn, root, entries)
	if err != nil {
		return err
	}
	return c.load(ctx, set)
}
