package feed

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aretasg/surechembl-mini-client/internal/remote"
	"github.com/aretasg/surechembl-mini-client/pkg/types"
)

const (
	// ManifestName is the authoritative per-partition listing file.
	ManifestName = "newfiles.txt"

	// DataSuffix marks chemical data files in a partition.
	DataSuffix = ".chemicals.tsv.gz"

	// Manifest lines are data files when they carry dataMarker and are not
	// supplementary data.
	dataMarker = "chemicals"
	suppMarker = "supp"
)

// Entry names one data file to fetch: the directory it lives in (relative
// to the session root) and its filename.
type Entry struct {
	Dir  string
	File string
}

// Lister resolves which data files a partition holds.
type Lister struct {
	// FrontfileDir is the feed root manifest directory entries are
	// relative to.
	FrontfileDir string
	// WorkDir is where retrieved manifest files are staged.
	WorkDir string
	Logger  *log.Logger
}

// ListDataFiles returns the partition's data files in deterministic order.
// conn must be positioned at partitionDir. An empty result is a valid
// outcome: there is nothing to ingest in this partition.
//
// The manifest file, when present, is authoritative; loose data files are
// only used as a fallback. More than one manifest in the listing means the
// partition is malformed and must not be guessed at.
func (l *Lister) ListDataFiles(ctx context.Context, conn remote.Conn, partitionDir string) ([]Entry, error) {
	names, err := conn.List(ctx, ".")
	if err != nil {
		return nil, err
	}

	var manifests, dataFiles []string
	for _, name := range names {
		if name == ManifestName {
			manifests = append(manifests, name)
		}
		if strings.HasSuffix(name, DataSuffix) {
			dataFiles = append(dataFiles, name)
		}
	}

	if len(manifests) > 1 {
		return nil, fmt.Errorf("%w: %d manifest files in %s", types.ErrInvariant, len(manifests), partitionDir)
	}

	switch {
	case len(manifests) == 1:
		return l.entriesFromManifest(ctx, conn, partitionDir)
	case len(dataFiles) > 0:
		l.Logger.Printf("No %s in %s. Falling back to %s files.", ManifestName, partitionDir, DataSuffix)
		entries := make([]Entry, 0, len(dataFiles))
		for _, name := range dataFiles {
			entries = append(entries, Entry{Dir: partitionDir, File: name})
		}
		return entries, nil
	default:
		l.Logger.Printf("No %s or %s files in %s. Nothing to ingest.", ManifestName, DataSuffix, partitionDir)
		return nil, nil
	}
}

// entriesFromManifest retrieves and parses the manifest. The local copy is
// removed after reading.
func (l *Lister) entriesFromManifest(ctx context.Context, conn remote.Conn, partitionDir string) ([]Entry, error) {
	local := filepath.Join(l.WorkDir, ManifestName)
	if err := conn.Retrieve(ctx, ManifestName, local); err != nil {
		return nil, err
	}
	defer os.Remove(local)

	file, err := os.Open(local)
	if err != nil {
		return nil, fmt.Errorf("open manifest copy %s: %w", local, err)
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.Contains(line, dataMarker) || strings.Contains(line, suppMarker) {
			continue
		}
		dir, name := path.Split(line)
		entries = append(entries, Entry{
			Dir:  path.Join(l.FrontfileDir, dir),
			File: name,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: read manifest for %s: %v", types.ErrParse, partitionDir, err)
	}

	if len(entries) == 0 {
		l.Logger.Printf("%s contained no data file entries for %s.", ManifestName, partitionDir)
	}
	return entries, nil
}
