// Command spotify-genome runs the Spotify Genome web application.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/justestif/go-spotify-genome/internal/auth"
	"github.com/justestif/go-spotify-genome/internal/config"
	"github.com/justestif/go-spotify-genome/internal/db"
	"github.com/justestif/go-spotify-genome/internal/logging"
	"github.com/justestif/go-spotify-genome/internal/session"
	"github.com/justestif/go-spotify-genome/internal/web"
	webfs "github.com/justestif/go-spotify-genome/web"
)

func main() {
	app := &cli.Command{
		Name:  "spotify-genome",
		Usage: "Log in with Spotify and view your top tracks as a genome",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to an optional TOML configuration file",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on (overrides PORT)",
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to bind (overrides HOST)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error (overrides LOG_LEVEL)",
			},
		},
		Action: run,
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logging.New(os.Stderr, "").Fatalf("application error: %v", err)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cmd.IsSet("port") {
		cfg.Server.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("host") {
		cfg.Server.Host = cmd.String("host")
	}
	if cmd.IsSet("log-level") {
		cfg.Log.Level = cmd.String("log-level")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.New(os.Stderr, cfg.Log.Level)
	if cfg.EphemeralSecret {
		logger.Warn("SESSION_SECRET is not set; using a temporary secret, sessions will not survive a restart")
	}

	backend, closeBackend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend()

	storeOpts := []session.Option{session.WithSecureCookies(cfg.SecureCookies())}
	if backend != nil {
		storeOpts = append(storeOpts, session.WithBackend(backend))
	}
	store, err := session.New([]byte(cfg.Session.Secret), storeOpts...)
	if err != nil {
		return fmt.Errorf("creating session store: %w", err)
	}

	authenticator, err := auth.New(auth.Config{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		RedirectURI:  cfg.Spotify.RedirectURI,
	})
	if err != nil {
		return fmt.Errorf("creating authenticator: %w", err)
	}

	controller := auth.NewController(auth.ControllerConfig{
		Authenticator: authenticator,
		Sessions:      store,
		Logger:        logger.WithPrefix("auth"),
		SecureCookies: cfg.SecureCookies(),
	})

	templates, err := fs.Sub(webfs.TemplatesFS, "templates")
	if err != nil {
		return fmt.Errorf("creating templates filesystem: %w", err)
	}

	static, err := fs.Sub(webfs.StaticFS, "static")
	if err != nil {
		return fmt.Errorf("creating static filesystem: %w", err)
	}

	server, err := web.NewServer(web.ServerConfig{
		Addr:        cfg.Addr(),
		Controller:  controller,
		Logger:      logger,
		TemplatesFS: templates,
		StaticFS:    static,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	logger.Info("configured",
		"redirect_uri", cfg.Spotify.RedirectURI,
		"session_backend", cfg.Session.Backend,
	)
	return server.Run(ctx)
}

// openBackend connects the configured server-side session backend. The
// cookie backend needs none and yields a nil Backend.
func openBackend(ctx context.Context, cfg *config.Config, logger *log.Logger) (session.Backend, func(), error) {
	noop := func() {}

	switch cfg.Session.Backend {
	case config.BackendMemory:
		return session.NewMemoryBackend(), noop, nil

	case config.BackendPostgres:
		database, err := db.New(ctx, cfg.Database.URL)
		if err != nil {
			return nil, noop, fmt.Errorf("connecting to database: %w", err)
		}
		if err := database.EnsureSchema(ctx); err != nil {
			database.Close()
			return nil, noop, err
		}
		if n, err := database.Sessions().DeleteExpired(ctx); err != nil {
			logger.Warn("pruning expired sessions", "err", err)
		} else if n > 0 {
			logger.Info("pruned expired sessions", "count", n)
		}
		return session.NewPostgresBackend(database), database.Close, nil

	case config.BackendRedis:
		client, err := session.DialRedis(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, noop, fmt.Errorf("connecting to redis: %w", err)
		}
		return session.NewRedisBackend(client), func() { _ = client.Close() }, nil

	default:
		return nil, noop, nil
	}
}
