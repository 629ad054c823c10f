package ingest

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/aretasg/surechembl-mini-client/internal/feed"
	"github.com/aretasg/surechembl-mini-client/internal/remote"
	"github.com/aretasg/surechembl-mini-client/pkg/types"
)

// backfileSuffix marks data files in back-file year directories.
const backfileSuffix = ".tsv.gz"

// LoadBackfile ingests the back-file archive for every year directory whose
// year falls in [startYear, endYear]. Each year is fetched and loaded as its
// own unit, so a failure mid-range leaves earlier years fully loaded. The
// session is liveness-probed before each year and redialed when stale; year
// loads can outlast an idle control connection.
func (c *Client) LoadBackfile(ctx context.Context, startYear, endYear int) error {
	if startYear <= 0 || endYear <= 0 {
		return fmt.Errorf("%w: years must be positive, got %d..%d", types.ErrConfiguration, startYear, endYear)
	}
	if startYear > endYear {
		return fmt.Errorf("%w: start year %d is after end year %d", types.ErrConfiguration, startYear, endYear)
	}

	conn, err := c.Dialer.Dial(ctx)
	if err != nil {
		return err
	}
	defer func() { conn.Quit() }()

	root, err := conn.CurrentDir()
	if err != nil {
		return err
	}

	if err := conn.ChangeDir(ctx, c.BackfileDir); err != nil {
		return err
	}
	yearDirs, err := conn.List(ctx, ".")
	if err != nil {
		return err
	}

	for _, name := range yearDirs {
		year, ok := parseYearDir(name)
		if !ok {
			c.Logger.Printf("Skipping %s: not a year directory.", name)
			continue
		}
		if year < startYear || year > endYear {
			continue
		}

		if conn, err = c.ensureAlive(ctx, conn); err != nil {
			return err
		}
		if err := c.loadYear(ctx, conn, root, name, year); err != nil {
			return err
		}
	}
	return nil
}

// loadYear fetches and loads one back-file year directory.
func (c *Client) loadYear(ctx context.Context, conn remote.Conn, root, name string, year int) error {
	yearDir := path.Join(c.BackfileDir, name)

	if err := conn.ChangeDir(ctx, root); err != nil {
		return err
	}
	if err := conn.ChangeDir(ctx, yearDir); err != nil {
		// A listed year that cannot be entered is skipped; the back-file has
		// no backlog protocol.
		if isNotFound(err) {
			c.Logger.Printf("Year directory %s disappeared. Skipping.", yearDir)
			return nil
		}
		return err
	}
	names, err := conn.List(ctx, ".")
	if err != nil {
		return err
	}

	var entries []feed.Entry
	for _, n := range names {
		if strings.HasSuffix(n, backfileSuffix) {
			entries = append(entries, feed.Entry{Dir: yearDir, File: n})
		}
	}
	if len(entries) == 0 {
		c.Logger.Printf("No %s files for year %d. Skipping.", backfileSuffix, year)
		return nil
	}

	c.Logger.Printf("Loading back-file year %d: %d data file(s).", year, len(entries))
	set, err := c.fetch(ctx, conn, root, entries)
	if err != nil {
		return err
	}
	return c.load(ctx, set)
}

// parseYearDir extracts the leading year from a back-file directory name.
// Directories are named either by bare year or with a suffix after an
// underscore.
func parseYearDir(name string) (int, bool) {
	head, _, _ := strings.Cut(name, "_")
	year, err := strconv.Atoi(head)
	if err != nil || year <= 0 {
		return 0, false
	}
	return year, true
}
