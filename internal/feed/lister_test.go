package feed

import (
	"context"
	"errors"
	"testing"

	"github.com/aretasg/surechembl-mini-client/internal/remote"
	"github.com/aretasg/surechembl-mini-client/pkg/types"
)

func newTestLister(t *testing.T) *Lister {
	t.Helper()
	return &Lister{
		FrontfileDir: frontfileDir,
		WorkDir:      t.TempDir(),
		Logger:       testLogger(t),
	}
}

func TestLister_ManifestPrecedence(t *testing.T) {
	partition := frontfileDir + "/2024/06/01"
	manifest := "/2024/06/01/new.chemicals.tsv.gz\n" +
		"/2024/06/01/new.chemicals_supp.tsv.gz\n" +
		"/2024/06/01/new.biblio.tsv.gz\n"

	conn := remote.NewMemConn()
	conn.Put(partition+"/"+ManifestName, []byte(manifest))
	conn.Put(partition+"/loose"+DataSuffix, []byte("must not be listed"))

	ctx := context.Background()
	if err := conn.ChangeDir(ctx, partition); err != nil {
		t.Fatalf("ChangeDir failed: %v", err)
	}

	entries, err := newTestLister(t).ListDataFiles(ctx, conn, partition)
	if err != nil {
		t.Fatalf("ListDataFiles failed: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("expected 1 entry from manifest alone, got %v", entries)
	}
	if entries[0].File != "new.chemicals.tsv.gz" {
		t.Errorf("unexpected file: %s", entries[0].File)
	}
	if entries[0].Dir != frontfileDir+"/2024/06/01" {
		t.Errorf("unexpected dir: %s", entries[0].Dir)
	}
}

func TestLister_FallbackToLooseFiles(t *testing.T) {
	partition := frontfileDir + "/2024/06/02"

	conn := remote.NewMemConn()
	conn.Put(partition+"/b"+DataSuffix, []byte("x"))
	conn.Put(partition+"/a"+DataSuffix, []byte("y"))
	conn.Put(partition+"/readme.txt", []byte("z"))

	ctx := context.Background()
	if err := conn.ChangeDir(ctx, partition); err != nil {
		t.Fatalf("ChangeDir failed: %v", err)
	}

	entries, err := newTestLister(t).ListDataFiles(ctx, conn, partition)
	if err != nil {
		t.Fatalf("ListDataFiles failed: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("expected 2 fallback entries, got %v", entries)
	}
	for _, entry := range entries {
		if entry.Dir != partition {
			t.Errorf("fallback entries must be keyed by the partition, got %s", entry.Dir)
		}
	}
	if entries[0].File != "a"+DataSuffix || entries[1].File != "b"+DataSuffix {
		t.Errorf("expected listing order, got %v", entries)
	}
}

func TestLister_EmptyPartition(t *testing.T) {
	partition := frontfileDir + "/2024/06/03"

	conn := remote.NewMemConn()
	conn.Put(partition+"/notes.txt", []byte("x"))

	ctx := context.Background()
	if err := conn.ChangeDir(ctx, partition); err != nil {
		t.Fatalf("ChangeDir failed: %v", err)
	}

	entries, err := newTestLister(t).ListDataFiles(ctx, conn, partition)
	if err != nil {
		t.Fatalf("ListDataFiles failed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %v", entries)
	}
}

// dupListConn wraps a Conn and duplicates manifest names in listings, which
// real FTP servers can produce when NLST mixes relative and absolute names.
type dupListConn struct {
	remote.Conn
}

func (d *dupListConn) List(ctx context.Context, dir string) ([]string, error) {
	names, err := d.Conn.List(ctx, dir)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		if name == ManifestName {
			names = append(names, name)
		}
	}
	return names, nil
}

func TestLister_MultipleManifestsFatal(t *testing.T) {
	partition := frontfileDir + "/2024/06/04"

	mem := remote.NewMemConn()
	mem.Put(partition+"/"+ManifestName, []byte("/2024/06/04/f.chemicals.tsv.gz\n"))

	ctx := context.Background()
	if err := mem.ChangeDir(ctx, partition); err != nil {
		t.Fatalf("ChangeDir failed: %v", err)
	}

	_, err := newTestLister(t).ListDataFiles(ctx, &dupListConn{Conn: mem}, partition)
	if !errors.Is(err, types.ErrInvariant) {
		t.Fatalf("expected ErrInvariant for duplicated manifest, got %v", err)
	}
}
