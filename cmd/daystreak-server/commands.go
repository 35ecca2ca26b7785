package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/julianstephens/daystreak/internal/auth"
	"github.com/julianstephens/daystreak/internal/keyring"
	"github.com/julianstephens/daystreak/internal/logger"
	"github.com/julianstephens/daystreak/internal/scheduler"
	"github.com/julianstephens/daystreak/internal/server"
	"github.com/julianstephens/daystreak/internal/storage"
	"github.com/julianstephens/daystreak/internal/storage/postgres"
	"github.com/julianstephens/daystreak/internal/storage/sqlite"
)

const (
	shutdownTimeout   = 10 * time.Second
	retentionTimeout  = 5 * time.Minute
	readHeaderTimeout = 5 * time.Second
)

type Globals struct {
	DatabaseURL string `name:"database-url" help:"PostgreSQL connection string or SQLite path. Falls back to the OS keyring." env:"DAYSTREAK_DATABASE_URL"`
	JWTSecret   string `name:"jwt-secret" help:"Shared HS256 secret used to verify access tokens." env:"DAYSTREAK_JWT_SECRET"`
}

// kvBackend is a server store that can be opened and migrated
type kvBackend interface {
	storage.KVStore
	Init() error
	Load() error
	GetConfigPath() string
}

// resolveDatabaseURL returns dsn, or the connection string stored in the
// keyring when dsn is empty. PostgreSQL strings carrying a password are refused.
func resolveDatabaseURL(dsn string) (string, error) {
	if strings.TrimSpace(dsn) == "" {
		stored, err := keyring.GetConnectionString()
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("no database configured, set DAYSTREAK_DATABASE_URL or run 'daystreak-server database set'")
		}
		if err != nil {
			return "", err
		}
		dsn = stored
	}
	if postgres.IsConnString(dsn) {
		if _, err := postgres.ValidateConnString(dsn); err != nil {
			if errors.Is(err, postgres.ErrEmbeddedCredentials) {
				return "", fmt.Errorf("%w, use a .pgpass file or PGPASSWORD instead", err)
			}
			return "", err
		}
	}
	return dsn, nil
}

func openBackend(dsn string) (kvBackend, error) {
	dsn, err := resolveDatabaseURL(dsn)
	if err != nil {
		return nil, err
	}
	if postgres.IsConnString(dsn) {
		return postgres.New(dsn), nil
	}
	return sqlite.NewStore(dsn), nil
}

type ServeCmd struct {
	Port          string   `help:"Port to listen on." env:"PORT" default:"8080"`
	CORSOrigins   []string `name:"cors-origins" help:"Allowed CORS origins, comma separated. Empty allows none, '*' allows any." env:"DAYSTREAK_CORS_ORIGINS"`
	RetentionCron string   `help:"Cron spec (seconds first) of the retention cleanup." env:"DAYSTREAK_RETENTION_CRON" default:"${retention_cron}"`
	NoRetention   bool     `help:"Disable the retention cleanup job."`
	AutoMigrate   bool     `help:"Apply pending schema migrations on start." default:"true" negatable:""`
}

func (c *ServeCmd) Run(g *Globals) error {
	authMgr, err := auth.NewManager(g.JWTSecret)
	if err != nil {
		return err
	}

	store, err := openBackend(g.DatabaseURL)
	if err != nil {
		return err
	}
	open := store.Load
	if c.AutoMigrate {
		open = store.Init
	}
	if err := open(); err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	data := storage.NewUserData(store)
	api := &server.API{Data: data, Auth: authMgr, Origins: c.CORSOrigins}

	sched := scheduler.New(time.UTC)
	if !c.NoRetention {
		if _, err := sched.ScheduleSpec(c.RetentionCron, scheduler.RetentionJob(data, time.Now, retentionTimeout)); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:              ":" + c.Port,
		Handler:           api.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		logger.Info("Server listening", "addr", srv.Addr, "store", store.GetConfigPath())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		sched.Start()
		<-egCtx.Done()
		sched.Stop()
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		return err
	}
	logger.Info("Shutdown complete")
	return nil
}

type MigrateCmd struct{}

func (c *MigrateCmd) Run(g *Globals) error {
	store, err := openBackend(g.DatabaseURL)
	if err != nil {
		return err
	}
	if err := store.Init(); err != nil {
		return err
	}
	defer store.Close()
	fmt.Printf("Database is up to date: %s\n", store.GetConfigPath())
	return nil
}

type TokenCmd struct {
	User string        `arg:"" help:"User id placed in the token's subject."`
	TTL  time.Duration `name:"ttl" help:"Token lifetime." default:"720h"`
}

func (c *TokenCmd) Run(g *Globals) error {
	mgr, err := auth.NewManager(g.JWTSecret)
	if err != nil {
		return err
	}
	token, err := mgr.GenerateToken(c.User, c.TTL)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

type DatabaseSetCmd struct {
	URL string `arg:"" name:"url" help:"PostgreSQL connection string (without password) or SQLite path."`
}

func (c *DatabaseSetCmd) Run() error {
	if postgres.IsConnString(c.URL) {
		if _, err := postgres.ValidateConnString(c.URL); err != nil {
			return err
		}
	}
	if err := keyring.SetConnectionString(c.URL); err != nil {
		return err
	}
	fmt.Println("✓ Database connection stored in the OS keyring")
	return nil
}

type DatabaseClearCmd struct{}

func (c *DatabaseClearCmd) Run() error {
	if err := keyring.DeleteConnectionString(); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	fmt.Println("✓ Database connection removed from the OS keyring")
	return nil
}
