// Package feed implements discovery and retrieval over the SureChEMBL
// remote directory hierarchy: date resolution, the manifest-or-glob
// directory listing protocol, backlog bookkeeping and batch fetching.
package feed

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Backlog persists partition paths that were requested but not yet published
// remotely. It is a plain line-oriented file, one path per line.
type Backlog struct {
	path string
}

// NewBacklog creates a backlog store backed by the given file path.
func NewBacklog(path string) *Backlog {
	return &Backlog{path: path}
}

// Append adds a partition path to the end of the backlog.
func (b *Backlog) Append(dir string) error {
	file, err := os.OpenFile(b.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open backlog %s: %w", b.path, err)
	}
	defer file.Close()

	if _, err := file.WriteString(dir + "\n"); err != nil {
		return fmt.Errorf("append to backlog %s: %w", b.path, err)
	}
	return nil
}

// Consume returns all backlog entries in file order and deletes the file.
// A missing backlog file yields an empty result. The file is removed before
// the caller knows whether the retried partitions resolve; entries that are
// still unavailable get re-queued by the orchestrator.
func (b *Backlog) Consume() ([]string, error) {
	file, err := os.Open(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open backlog %s: %w", b.path, err)
	}

	var entries []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			entries = append(entries, line)
		}
	}
	if err := scanner.Err(); err != nil {
		file.Close()
		return nil, fmt.Errorf("read backlog %s: %w", b.path, err)
	}
	file.Close()

	if err := os.Remove(b.path); err != nil {
		return nil, fmt.Errorf("clear backlog %s: %w", b.path, err)
	}
	return entries, nil
}
