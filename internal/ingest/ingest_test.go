package ingest

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretasg/surechembl-mini-client/internal/db"
	"github.com/aretasg/surechembl-mini-client/internal/feed"
	"github.com/aretasg/surechembl-mini-client/internal/remote"
	"github.com/aretasg/surechembl-mini-client/pkg/types"
)

// chemicalsTSV builds a gzipped TSV data file. SMILES values are prefixed so
// tests can tell which file a surviving row came from.
func chemicalsTSV(t *testing.T, smilesPrefix string, ids ...int64) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	fmt.Fprintf(zw, "SureChEMBL ID\tSMILES\tStandard InChi\tStandard InChiKey\n")
	for _, id := range ids {
		fmt.Fprintf(zw, "SCHEMBL%d\t%s%d\tInChI=1S/C%d\tKEY%d\n", id, smilesPrefix, id, id, id)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func newTestClient(t *testing.T, dialer remote.Dialer) *Client {
	t.Helper()

	ctx := context.Background()
	handle, dialect, err := db.Open(ctx, db.Params{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { handle.Close() })

	loader, err := db.NewLoader(handle, dialect, "schembl_chemical_structure", "id", log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}
	if err := loader.EnsureTable(ctx); err != nil {
		t.Fatalf("EnsureTable failed: %v", err)
	}

	workDir := t.TempDir()
	return &Client{
		Dialer:       dialer,
		Loader:       loader,
		Backlog:      feed.NewBacklog(filepath.Join(workDir, "schembl_backlog.txt")),
		FrontfileDir: "data/external/frontfile",
		BackfileDir:  "data/external/backfile",
		WorkDir:      workDir,
		Workers:      1,
		Logger:       log.New(io.Discard, "", 0),
	}
}

func memDialer(m *remote.MemConn) remote.Dialer {
	return remote.DialerFunc(func(ctx context.Context) (remote.Conn, error) {
		return m.Reopen(), nil
	})
}

func count(t *testing.T, c *Client) int64 {
	t.Helper()
	n, err := c.Loader.Count(context.Background())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	return n
}

func TestLoadFrontfile_TodayWithBacklog(t *testing.T) {
	m := remote.NewMemConn()
	m.Put("data/external/frontfile/2024/06/01/SureChEMBL_20240601.chemicals.tsv.gz",
		chemicalsTSV(t, "today", 1, 2, 3, 4, 5, 6, 7, 8, 9, 10))
	m.Put("data/external/frontfile/2024/05/31/SureChEMBL_20240531.chemicals.tsv.gz",
		chemicalsTSV(t, "queued", 11, 12, 13, 14, 15, 16, 17))

	c := newTestClient(t, memDialer(m))
	c.Now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	if err := c.Backlog.Append("data/external/frontfile/2024/05/31"); err != nil {
		t.Fatalf("seed backlog: %v", err)
	}

	if err := c.LoadFrontfile(context.Background(), feed.DateSpec{}); err != nil {
		t.Fatalf("LoadFrontfile failed: %v", err)
	}

	if got := count(t, c); got != 17 {
		t.Errorf("expected 17 rows from today plus backlog, got %d", got)
	}
	remaining, err := c.Backlog.Consume()
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("backlog should be empty after a successful retry, got %v", remaining)
	}
}

func TestLoadFrontfile_MissingPartitionQueuesBacklog(t *testing.T) {
	m := remote.NewMemConn()
	// The feed exists but today's partition has not been published.
	m.Put("data/external/frontfile/2024/05/30/SureChEMBL_20240530.chemicals.tsv.gz",
		chemicalsTSV(t, "old", 1))

	c := newTestClient(t, memDialer(m))
	c.Now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

	if err := c.LoadFrontfile(context.Background(), feed.DateSpec{}); err != nil {
		t.Fatalf("a missing partition must not fail the run: %v", err)
	}

	if got := count(t, c); got != 0 {
		t.Errorf("expected empty table, got %d rows", got)
	}
	queued, err := c.Backlog.Consume()
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if len(queued) != 1 || queued[0] != "data/external/frontfile/2024/06/01" {
		t.Errorf("expected today's partition in backlog, got %v", queued)
	}
}

func TestLoadFrontfile_BacklogEntryStillMissingHaltsRun(t *testing.T) {
	m := remote.NewMemConn()
	m.Put("data/external/frontfile/2024/06/01/SureChEMBL_20240601.chemicals.tsv.gz",
		chemicalsTSV(t, "today", 1, 2))

	c := newTestClient(t, memDialer(m))
	c.Now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	if err := c.Backlog.Append("data/external/frontfile/2024/05/31"); err != nil {
		t.Fatalf("seed backlog: %v", err)
	}

	if err := c.LoadFrontfile(context.Background(), feed.DateSpec{}); err != nil {
		t.Fatalf("LoadFrontfile failed: %v", err)
	}

	// The run halts before loading anything; the whole run is retried later.
	if got := count(t, c); got != 0 {
		t.Errorf("expected no load after a halted run, got %d rows", got)
	}
	queued, err := c.Backlog.Consume()
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if len(queued) != 1 || queued[0] != "data/external/frontfile/2024/05/31" {
		t.Errorf("expected the missing partition re-queued, got %v", queued)
	}
}

func TestLoadFrontfile_SpecificDay(t *testing.T) {
	m := remote.NewMemConn()
	m.Put("data/external/frontfile/2023/02/15/SureChEMBL_20230215.chemicals.tsv.gz",
		chemicalsTSV(t, "day", 100, 101, 102))

	c := newTestClient(t, memDialer(m))
	if err := c.LoadFrontfile(context.Background(), feed.DateSpec{Year: 2023, Month: 2, Day: 15}); err != nil {
		t.Fatalf("LoadFrontfile failed: %v", err)
	}
	if got := count(t, c); got != 3 {
		t.Errorf("expected 3 rows, got %d", got)
	}
}

func TestLoadFrontfile_MonthModeUnionsPartitions(t *testing.T) {
	m := remote.NewMemConn()
	m.Put("data/external/frontfile/2023/03/01/a.chemicals.tsv.gz", chemicalsTSV(t, "d1", 1, 2))
	m.Put("data/external/frontfile/2023/03/02/b.chemicals.tsv.gz", chemicalsTSV(t, "d2", 2, 3))
	m.Put("data/external/frontfile/2023/03/15/c.chemicals.tsv.gz", chemicalsTSV(t, "d3", 4))

	c := newTestClient(t, memDialer(m))
	if err := c.LoadFrontfile(context.Background(), feed.DateSpec{Year: 2023, Month: 3}); err != nil {
		t.Fatalf("LoadFrontfile failed: %v", err)
	}
	// IDs 1,2,3,4 with the duplicate 2 resolved once.
	if got := count(t, c); got != 4 {
		t.Errorf("expected 4 distinct rows, got %d", got)
	}
}

func TestLoadFrontfile_InvalidSpec(t *testing.T) {
	c := newTestClient(t, memDialer(remote.NewMemConn()))
	err := c.LoadFrontfile(context.Background(), feed.DateSpec{Day: 5})
	if !errors.Is(err, types.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestLoadBackfile_YearRange(t *testing.T) {
	m := remote.NewMemConn()
	// 1950 exists but carries no data files.
	m.Put("data/external/backfile/1950/README.txt", []byte("no structures this year\n"))
	m.Put("data/external/backfile/1951/SureChEMBL_part1.tsv.gz",
		chemicalsTSV(t, "p1", 1, 2, 3, 4, 5, 6, 7, 8, 9, 10))
	m.Put("data/external/backfile/1951/SureChEMBL_part2.tsv.gz",
		chemicalsTSV(t, "p2", 6, 7, 8, 9, 10, 11, 12, 13, 14, 15))
	// Out of range and non-year directories are skipped.
	m.Put("data/external/backfile/1960/SureChEMBL_part1.tsv.gz", chemicalsTSV(t, "x", 99))
	m.Put("data/external/backfile/notes/readme.tsv.gz", chemicalsTSV(t, "x", 98))

	c := newTestClient(t, memDialer(m))
	if err := c.LoadBackfile(context.Background(), 1950, 1951); err != nil {
		t.Fatalf("LoadBackfile failed: %v", err)
	}

	// 10 + 10 with 5 overlapping keys.
	if got := count(t, c); got != 15 {
		t.Errorf("expected 15 rows, got %d", got)
	}
}

func TestLoadBackfile_SuffixedYearDirs(t *testing.T) {
	m := remote.NewMemConn()
	m.Put("data/external/backfile/1975_supplement/SureChEMBL_part1.tsv.gz",
		chemicalsTSV(t, "s", 1, 2, 3))

	c := newTestClient(t, memDialer(m))
	if err := c.LoadBackfile(context.Background(), 1975, 1975); err != nil {
		t.Fatalf("LoadBackfile failed: %v", err)
	}
	if got := count(t, c); got != 3 {
		t.Errorf("expected 3 rows, got %d", got)
	}
}

func TestLoadBackfile_InvalidRange(t *testing.T) {
	dialed := false
	dialer := remote.DialerFunc(func(ctx context.Context) (remote.Conn, error) {
		dialed = true
		return remote.NewMemConn(), nil
	})
	c := newTestClient(t, dialer)

	for _, r := range [][2]int{{1990, 1980}, {0, 1980}, {1980, -1}} {
		if err := c.LoadBackfile(context.Background(), r[0], r[1]); !errors.Is(err, types.ErrConfiguration) {
			t.Errorf("range %v: expected ErrConfiguration, got %v", r, err)
		}
	}
	if dialed {
		t.Error("an invalid range must be rejected before any connection is made")
	}
}

func TestLoadBackfile_ReconnectsStaleSession(t *testing.T) {
	m := remote.NewMemConn()
	m.Put("data/external/backfile/1980/SureChEMBL_part1.tsv.gz", chemicalsTSV(t, "r", 1, 2))

	dials := 0
	dialer := remote.DialerFunc(func(ctx context.Context) (remote.Conn, error) {
		dials++
		conn := m.Reopen()
		if dials == 1 {
			conn.FailNoOp = true
		}
		return conn, nil
	})

	c := newTestClient(t, dialer)
	if err := c.LoadBackfile(context.Background(), 1980, 1980); err != nil {
		t.Fatalf("LoadBackfile failed: %v", err)
	}

	if dials != 2 {
		t.Errorf("expected a redial after the failed liveness probe, got %d dial(s)", dials)
	}
	if got := count(t, c); got != 2 {
		t.Errorf("expected 2 rows, got %d", got)
	}
}

func TestLoadBackfile_ParallelWorkers(t *testing.T) {
	// Each worker dials its own session, so every dial gets an independent
	// connection over the same tree.
	files := map[string][]byte{
		"data/external/backfile/1990/SureChEMBL_part1.tsv.gz": chemicalsTSV(t, "a", 1, 2, 3),
		"data/external/backfile/1990/SureChEMBL_part2.tsv.gz": chemicalsTSV(t, "b", 3, 4),
		"data/external/backfile/1990/SureChEMBL_part3.tsv.gz": chemicalsTSV(t, "c", 5),
	}
	dialer := remote.DialerFunc(func(ctx context.Context) (remote.Conn, error) {
		m := remote.NewMemConn()
		for path, data := range files {
			m.Put(path, data)
		}
		return m, nil
	})

	c := newTestClient(t, dialer)
	c.Workers = 3
	if err := c.LoadBackfile(context.Background(), 1990, 1990); err != nil {
		t.Fatalf("LoadBackfile failed: %v", err)
	}
	if got := count(t, c); got != 5 {
		t.Errorf("expected 5 distinct rows, got %d", got)
	}
}

func TestLoadFrontfile_ManifestDrivesSelection(t *testing.T) {
	m := remote.NewMemConn()
	manifest := "2024/04/01/SureChEMBL_20240401.chemicals.tsv.gz\n" +
		"2024/04/01/SureChEMBL_20240401.supp.tsv.gz\n"
	m.Put("data/external/frontfile/2024/04/01/"+feed.ManifestName, []byte(manifest))
	m.Put("data/external/frontfile/2024/04/01/SureChEMBL_20240401.chemicals.tsv.gz",
		chemicalsTSV(t, "m", 1, 2, 3))
	m.Put("data/external/frontfile/2024/04/01/SureChEMBL_20240401.supp.tsv.gz",
		chemicalsTSV(t, "supp", 7, 8))

	c := newTestClient(t, memDialer(m))
	if err := c.LoadFrontfile(context.Background(), feed.DateSpec{Year: 2024, Month: 4, Day: 1}); err != nil {
		t.Fatalf("LoadFrontfile failed: %v", err)
	}

	// Supplementary files named by the manifest are excluded.
	if got := count(t, c); got != 3 {
		t.Errorf("expected 3 rows from the manifest's data file, got %d", got)
	}
}
