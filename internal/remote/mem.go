package remote

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/aretasg/surechembl-mini-client/pkg/types"
)

// MemConn implements Conn over an in-memory file tree.
// This is primarily used for testing and development.
type MemConn struct {
	mu     sync.Mutex
	files  map[string][]byte
	cwd    string
	closed bool

	// FailNoOp makes NoOp report a dead connection, for reconnect tests.
	FailNoOp bool
}

// NewMemConn creates an empty in-memory feed.
func NewMemConn() *MemConn {
	return &MemConn{files: make(map[string][]byte)}
}

// Put registers a remote file under a slash-separated path from the root.
func (m *MemConn) Put(path string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[strings.TrimPrefix(path, "/")] = data
}

// Remove deletes a remote file.
func (m *MemConn) Remove(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, strings.TrimPrefix(path, "/"))
}

// List returns the immediate children of dir, sorted.
func (m *MemConn) List(ctx context.Context, dir string) ([]string, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	prefix := resolvePath(m.cwd, dir)
	if prefix != "" {
		prefix += "/"
	}

	seen := make(map[string]struct{})
	for path := range m.files {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		rest := strings.TrimPrefix(path, prefix)
		name, _, _ := strings.Cut(rest, "/")
		if name != "" {
			seen[name] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ChangeDir moves the session to path.
func (m *MemConn) ChangeDir(ctx context.Context, path string) error {
	if err := m.check(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	target := resolvePath(m.cwd, path)
	if target == "" {
		m.cwd = ""
		return nil
	}

	for file := range m.files {
		if strings.HasPrefix(file, target+"/") {
			m.cwd = target
			return nil
		}
	}
	return fmt.Errorf("%w: directory %s", types.ErrNotFound, path)
}

// CurrentDir returns the current directory as an absolute path.
func (m *MemConn) CurrentDir() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return "/" + m.cwd, nil
}

// Retrieve writes the named file's content to localPath.
func (m *MemConn) Retrieve(ctx context.Context, name, localPath string) error {
	if err := m.check(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	data, ok := m.files[resolvePath(m.cwd, name)]
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: file %s", types.ErrNotFound, name)
	}
	return os.WriteFile(localPath, data, 0644)
}

// NoOp probes liveness.
func (m *MemConn) NoOp(ctx context.Context) error {
	if err := m.check(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailNoOp {
		return fmt.Errorf("%w: noop", types.ErrConnection)
	}
	return nil
}

// Quit closes the session. Later calls fail with ErrConnection.
func (m *MemConn) Quit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Reopen reverts Quit, standing in for a fresh dial of the same tree.
func (m *MemConn) Reopen() *MemConn {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = false
	m.cwd = ""
	m.FailNoOp = false
	return m
}

func (m *MemConn) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("%w: connection closed", types.ErrConnection)
	}
	return nil
}
