package feed

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"log"
	"testing"
)

// testLogger returns a logger that writes through t.Log.
func testLogger(t *testing.T) *log.Logger {
	t.Helper()
	return log.New(writerFunc(func(p []byte) (int, error) {
		t.Log(string(bytes.TrimRight(p, "\n")))
		return len(p), nil
	}), "", 0)
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

var _ io.Writer = writerFunc(nil)

// chemicalsTSV builds a gzip-compressed chemicals TSV holding one row per ID.
func chemicalsTSV(t *testing.T, ids ...int64) []byte {
	return chemicalsTSVWith(t, "C", ids...)
}

// chemicalsTSVWith prefixes each row's SMILES with smilesPrefix so tests can
// tell which file a surviving row came from.
func chemicalsTSVWith(t *testing.T, smilesPrefix string, ids ...int64) []byte {
	t.Helper()

	var raw bytes.Buffer
	raw.WriteString("SureChEMBL ID\tSMILES\tStandard InChi\tStandard InChiKey\n")
	for _, id := range ids {
		fmt.Fprintf(&raw, "SCHEMBL%d\t%s%d\tInChI=1S/%d\tKEY%d\n", id, smilesPrefix, id, id, id)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(raw.Bytes()); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}
