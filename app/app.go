// Package app assembles the blog from its parts: it owns the database pool,
// the optional Redis session registry, the services and the renderer, and
// exposes them to the router through one explicitly constructed App value.
package app

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/user/blogpress-go/auth"
	"github.com/user/blogpress-go/config"
	"github.com/user/blogpress-go/db"
	"github.com/user/blogpress-go/posts"
	"github.com/user/blogpress-go/uploads"
	"github.com/user/blogpress-go/views"
)

// Pinger reports whether the database is reachable. *pgxpool.Pool implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Stores are the persistence backends App is built on.
type Stores struct {
	DB       Pinger
	Posts    posts.Store
	Users    auth.UserStore
	Registry auth.SessionRegistry // nil means stateless sessions
}

// App is the application context shared by all handlers.
type App struct {
	Config   *config.AppConfig
	Log      *logrus.Logger
	DB       Pinger
	Uploads  *uploads.Handler
	Views    *views.Renderer
	Sessions *auth.SessionManager
	Auth     *auth.AuthService
	Posts    *posts.PostService

	closers []func()
}

// New connects to PostgreSQL and, when REDIS_URL is set, to Redis, and
// builds the App on top of them. Call Close when done.
func New(ctx context.Context, cfg *config.AppConfig, log *logrus.Logger) (*App, error) {
	pool, err := db.NewPool(cfg.Database)
	if err != nil {
		return nil, err
	}
	closers := []func(){pool.Close}

	var registry auth.SessionRegistry
	if cfg.Redis.URL != "" {
		client, err := auth.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			pool.Close()
			return nil, err
		}
		closers = append(closers, func() { _ = client.Close() })
		registry = auth.NewRedisRegistry(client, cfg.Redis.KeyPrefix)
		log.Info("Sessions are registered in Redis")
	} else {
		log.Info("REDIS_URL not set, using stateless sessions")
	}

	a, err := Assemble(cfg, log, Stores{
		DB:       pool,
		Posts:    posts.NewPgStore(pool, cfg.Location),
		Users:    auth.NewPgUserStore(pool),
		Registry: registry,
	})
	if err != nil {
		for _, c := range closers {
			c()
		}
		return nil, err
	}
	a.closers = closers
	return a, nil
}

// Assemble wires services, renderer and session manager over the given stores
// and makes sure the upload directory exists.
func Assemble(cfg *config.AppConfig, log *logrus.Logger, stores Stores) (*App, error) {
	assets := uploads.NewHandler(cfg.Server.StaticDir)
	if err := assets.EnsureDir(); err != nil {
		return nil, err
	}

	renderer, err := views.New(log, currentUsername)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:   cfg,
		Log:      log,
		DB:       stores.DB,
		Uploads:  assets,
		Views:    renderer,
		Sessions: auth.NewSessionManager(cfg.Auth.SecretKey, cfg.Auth.SessionDuration, cfg.Auth.CookieSecure, stores.Registry),
		Auth:     auth.NewAuthService(stores.Users),
		Posts:    posts.NewPostService(stores.Posts, assets, cfg.Location),
	}, nil
}

// Close releases the database pool and Redis client.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func currentUsername(r *http.Request) (string, bool) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		return "", false
	}
	return user.Username, true
}
