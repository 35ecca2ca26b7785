package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/julianstephens/daystreak/internal/backup"
	"github.com/julianstephens/daystreak/internal/keyring"
	"github.com/julianstephens/daystreak/internal/lockfile"
	"github.com/julianstephens/daystreak/internal/logger"
	"github.com/julianstephens/daystreak/internal/remote"
	"github.com/julianstephens/daystreak/internal/session"
	"github.com/julianstephens/daystreak/internal/storage"
	"github.com/julianstephens/daystreak/internal/storage/sqlite"
)

// closeTimeout bounds the final flush when a command exits
const closeTimeout = 30 * time.Second

type Context struct {
	Store     storage.Provider
	ServerURL string
	Out       io.Writer
	Now       func() time.Time

	// Remote, Credentials and Prompt default to the HTTP client, the OS
	// keyring and interactive huh forms.
	Remote      session.Remote
	Credentials session.Credentials
	Prompt      Prompter

	lock *lockfile.Lock
	sess *session.Session
}

// NewStore picks the local store for path: a .json suffix selects the JSON
// document store, anything else SQLite.
func NewStore(path string) storage.Provider {
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		return storage.NewJSONStore(path)
	}
	return sqlite.NewStore(path)
}

func NewContext(store storage.Provider, serverURL string) *Context {
	return &Context{
		Store:     store,
		ServerURL: serverURL,
		Out:       os.Stdout,
		Now:       time.Now,
	}
}

func (c *Context) printf(format string, args ...any) {
	fmt.Fprintf(c.Out, format, args...)
}

func (c *Context) println(args ...any) {
	fmt.Fprintln(c.Out, args...)
}

func (c *Context) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func (c *Context) prompt() Prompter {
	if c.Prompt == nil {
		return huhPrompter{}
	}
	return c.Prompt
}

func (c *Context) remote() session.Remote {
	if c.Remote == nil {
		c.Remote = remote.New(c.ServerURL)
	}
	return c.Remote
}

// backupManager returns the file backup manager for SQLite stores
func (c *Context) backupManager() (*backup.Manager, bool) {
	if _, ok := c.Store.(*sqlite.Store); !ok {
		return nil, false
	}
	return backup.NewManager(c.Store.GetConfigPath()), true
}

// Open takes the session lock, then starts a session over the local store.
func (c *Context) Open(ctx context.Context) (*session.Session, error) {
	if c.sess != nil {
		return c.sess, nil
	}

	if err := c.Store.Load(); err != nil {
		return nil, err
	}
	lock, err := lockfile.Acquire(filepath.Dir(c.Store.GetConfigPath()))
	if err != nil {
		c.Store.Close()
		return nil, err
	}

	cfg := session.Config{
		Local:       c.Store,
		Remote:      c.remote(),
		Credentials: c.Credentials,
		Now:         c.Now,
	}
	if cfg.Credentials == nil {
		cfg.Credentials = keyring.Credentials{}
	}
	if mgr, ok := c.backupManager(); ok {
		cfg.Backup = mgr
	}

	sess := session.New(cfg)
	if err := sess.Start(ctx); err != nil {
		if rerr := lock.Release(); rerr != nil {
			logger.Warn("Failed to release lock", "error", rerr)
		}
		c.Store.Close()
		return nil, err
	}

	c.lock = lock
	c.sess = sess
	return sess, nil
}

// Close flushes and closes the session, then releases the lock
func (c *Context) Close() error {
	if c.sess == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	err := c.sess.Close(ctx)
	c.sess = nil
	if rerr := c.lock.Release(); rerr != nil {
		logger.Warn("Failed to release lock", "error", rerr)
	}
	c.lock = nil
	if err != nil {
		return fmt.Errorf("changes were not saved: %w", err)
	}
	return nil
}

// withSession runs fn against an open session and closes it afterwards,
// reporting a failed final save.
func (c *Context) withSession(fn func(ctx context.Context, s *session.Session) error) (err error) {
	ctx := context.Background()
	sess, err := c.Open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := c.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()
	return fn(ctx, sess)
}
