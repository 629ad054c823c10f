package feed

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/aretasg/surechembl-mini-client/internal/chem"
	"github.com/aretasg/surechembl-mini-client/internal/remote"
	"github.com/aretasg/surechembl-mini-client/pkg/types"
)

// Fetcher retrieves and normalizes data files sequentially over a single
// connection.
type Fetcher struct {
	// WorkDir is where in-flight downloads are staged.
	WorkDir string
	Logger  *log.Logger
}

// Fetch downloads every entry in order, parses it and unions the results
// into one row set with first-seen-wins natural-key dedup. Entries are
// visited in the lister's enumeration order so the union is deterministic.
// Local copies are removed as soon as they are parsed. An empty entry list
// yields an empty set without touching the transport.
func (f *Fetcher) Fetch(ctx context.Context, conn remote.Conn, root string, entries []Entry) (*types.RowSet, error) {
	set := types.NewRowSet()
	if len(entries) == 0 {
		return set, nil
	}

	for _, entry := range entries {
		rows, err := f.fetchOne(ctx, conn, root, entry)
		if err != nil {
			return nil, err
		}
		set.Merge(rows)
	}

	if err := conn.ChangeDir(ctx, root); err != nil {
		return nil, err
	}
	return set, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, conn remote.Conn, root string, entry Entry) (*types.RowSet, error) {
	if err := conn.ChangeDir(ctx, root); err != nil {
		return nil, err
	}
	if err := conn.ChangeDir(ctx, entry.Dir); err != nil {
		return nil, err
	}

	f.Logger.Printf("Downloading %s from %s.", entry.File, entry.Dir)
	local := filepath.Join(f.WorkDir, uuid.NewString()+DataSuffix)
	if err := conn.Retrieve(ctx, entry.File, local); err != nil {
		// Remove whatever partial copy the failed transfer left behind.
		os.Remove(local)
		return nil, err
	}

	rows, err := chem.ParseFile(local)
	if err != nil {
		return nil, err
	}
	os.Remove(local)

	return rows, nil
}
