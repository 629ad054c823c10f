// Package chem parses SureChEMBL chemical data files into canonical rows.
package chem

import (
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/aretasg/surechembl-mini-client/pkg/types"
)

// Source column headers in the feed's chemicals TSV files.
const (
	colID       = "SureChEMBL ID"
	colSMILES   = "SMILES"
	colInChI    = "Standard InChi"
	colInChIKey = "Standard InChiKey"
)

// ParseFile reads a gzip-compressed chemicals TSV and returns its rows
// restricted to the canonical column subset, deduplicated by natural key
// with the first-seen row winning.
//
// Any open or parse failure is fatal for the file: the local copy is removed
// before the error is returned so corrupt downloads do not accumulate.
func ParseFile(path string) (*types.RowSet, error) {
	set, err := parseFile(path)
	if err != nil {
		os.Remove(path)
		return nil, err
	}
	return set, nil
}

func parseFile(path string) (*types.RowSet, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", types.ErrParse, path, err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("%w: gunzip %s: %v", types.ErrParse, path, err)
	}
	defer gz.Close()

	reader := csv.NewReader(gz)
	reader.Comma = '\t'
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header of %s: %v", types.ErrParse, path, err)
	}

	cols, err := columnIndices(header)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrParse, path, err)
	}

	set := types.NewRowSet()
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", types.ErrParse, path, err)
		}

		id, err := parseID(fields[cols[colID]])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", types.ErrParse, path, err)
		}

		set.Add(types.Record{
			ID:          id,
			SMILES:      fields[cols[colSMILES]],
			StdInChI:    fields[cols[colInChI]],
			StdInChIKey: fields[cols[colInChIKey]],
		})
	}

	return set, nil
}

// columnIndices locates the required columns in the header row.
func columnIndices(header []string) (map[string]int, error) {
	cols := make(map[string]int, 4)
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}

	for _, required := range []string{colID, colSMILES, colInChI, colInChIKey} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}
	return cols, nil
}

// parseID extracts the numeric natural key from a SureChEMBL identifier.
// The feed publishes IDs as SCHEMBL<digits>; bare digits are accepted too.
func parseID(raw string) (int64, error) {
	trimmed := strings.TrimSpace(raw)
	digits := strings.TrimPrefix(strings.ToUpper(trimmed), "SCHEMBL")

	id, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid SureChEMBL ID %q", raw)
	}
	return id, nil
}
