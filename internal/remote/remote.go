// Package remote provides the transport capability for the SureChEMBL feed.
// Implementations include FTP, S3-compatible object storage for mirrored
// feeds, and an in-memory tree for testing.
package remote

import (
	"context"
	"path"
	"strings"
)

// Conn is an open session against the remote feed, positioned at a current
// directory. Paths starting with "/" are resolved from the session root,
// anything else relative to the current directory.
type Conn interface {
	// List returns the names of the entries in dir, relative to the current
	// directory. A missing or empty directory yields an empty slice.
	List(ctx context.Context, dir string) ([]string, error)

	// ChangeDir moves the session to path.
	// Returns an error wrapping types.ErrNotFound when the directory does
	// not exist.
	ChangeDir(ctx context.Context, path string) error

	// CurrentDir returns the absolute path of the current directory.
	CurrentDir() (string, error)

	// Retrieve downloads the named file into localPath.
	Retrieve(ctx context.Context, name, localPath string) error

	// NoOp probes connection liveness.
	NoOp(ctx context.Context) error

	// Quit closes the session.
	Quit() error
}

// Dialer opens new feed sessions. Workers fetching in parallel each dial
// their own session; a Conn must never be shared across goroutines.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context) (Conn, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context) (Conn, error) {
	return f(ctx)
}

// resolvePath resolves p against the current directory cwd. Both cwd and the
// result are rooted, slash-separated paths without a leading slash; the empty
// string is the session root.
func resolvePath(cwd, p string) string {
	var joined string
	if strings.HasPrefix(p, "/") {
		joined = path.Clean(strings.TrimPrefix(p, "/"))
	} else {
		joined = path.Join(cwd, p)
	}
	if joined == "." {
		return ""
	}
	return joined
}
