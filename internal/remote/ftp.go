package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"os"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/aretasg/surechembl-mini-client/pkg/types"
)

// FTPConfig holds connection parameters for the FTP backend.
type FTPConfig struct {
	// Addr is the server address; port 21 is assumed when omitted.
	Addr string
	// User and Password are the login credentials.
	User     string
	Password string
	// Timeout bounds dial and control-channel operations.
	Timeout time.Duration
}

// FTPConn implements Conn over an FTP control connection.
type FTPConn struct {
	conn *ftp.ServerConn
}

// DialFTP connects and logs in to the FTP server.
func DialFTP(ctx context.Context, cfg FTPConfig) (*FTPConn, error) {
	addr := cfg.Addr
	if !strings.Contains(addr, ":") {
		addr += ":21"
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	conn, err := ftp.Dial(addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", types.ErrConnection, addr, err)
	}

	if err := conn.Login(cfg.User, cfg.Password); err != nil {
		_ = conn.Quit()
		return nil, fmt.Errorf("%w: login as %s: %v", types.ErrConnection, cfg.User, err)
	}

	return &FTPConn{conn: conn}, nil
}

// List returns the names of the entries in dir.
func (c *FTPConn) List(ctx context.Context, dir string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	names, err := c.conn.NameList(dir)
	if err != nil {
		if isFTPNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: list %s: %v", types.ErrConnection, dir, err)
	}
	return names, nil
}

// ChangeDir moves the session to path.
func (c *FTPConn) ChangeDir(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := c.conn.ChangeDir(path); err != nil {
		if isFTPNotFound(err) {
			return fmt.Errorf("%w: directory %s", types.ErrNotFound, path)
		}
		return fmt.Errorf("%w: cwd %s: %v", types.ErrConnection, path, err)
	}
	return nil
}

// CurrentDir returns the server-side working directory.
func (c *FTPConn) CurrentDir() (string, error) {
	dir, err := c.conn.CurrentDir()
	if err != nil {
		return "", fmt.Errorf("%w: pwd: %v", types.ErrConnection, err)
	}
	return dir, nil
}

// Retrieve downloads the named file into localPath.
func (c *FTPConn) Retrieve(ctx context.Context, name, localPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	resp, err := c.conn.Retr(name)
	if err != nil {
		if isFTPNotFound(err) {
			return fmt.Errorf("%w: file %s", types.ErrNotFound, name)
		}
		return fmt.Errorf("%w: retr %s: %v", types.ErrConnection, name, err)
	}
	defer resp.Close()

	file, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", localPath, err)
	}
	defer file.Close()

	if _, err := io.Copy(file, resp); err != nil {
		return fmt.Errorf("%w: transfer %s: %v", types.ErrConnection, name, err)
	}
	return nil
}

// NoOp probes the control connection.
func (c *FTPConn) NoOp(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.conn.NoOp(); err != nil {
		return fmt.Errorf("%w: noop: %v", types.ErrConnection, err)
	}
	return nil
}

// Quit closes the session.
func (c *FTPConn) Quit() error {
	return c.conn.Quit()
}

// isFTPNotFound reports whether err is a 550 "file unavailable" reply.
func isFTPNotFound(err error) bool {
	var proto *textproto.Error
	if errors.As(err, &proto) {
		return proto.Code == ftp.StatusFileUnavailable
	}
	return false
}

// FTPDialer opens FTP sessions with a fixed configuration.
type FTPDialer struct {
	Config FTPConfig
}

// Dial opens a new logged-in session.
func (d *FTPDialer) Dial(ctx context.Context) (Conn, error) {
	return DialFTP(ctx, d.Config)
}
