package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/circlesocial/backend/internal/auth"
	"github.com/circlesocial/backend/internal/cache"
	"github.com/circlesocial/backend/internal/config"
	"github.com/circlesocial/backend/internal/db"
	"github.com/circlesocial/backend/internal/events"
	"github.com/circlesocial/backend/internal/friends"
	"github.com/circlesocial/backend/internal/handlers"
	"github.com/circlesocial/backend/internal/metrics"
	"github.com/circlesocial/backend/internal/middleware"
	"github.com/circlesocial/backend/internal/models"
	"github.com/circlesocial/backend/internal/posts"
	"github.com/circlesocial/backend/internal/repositories"
	"github.com/circlesocial/backend/internal/storage"
	"github.com/circlesocial/backend/internal/users"
)

type userStore interface {
	repositories.UserRepository
	repositories.FriendRepository
}

// store bundles the repositories of one backend with its lifecycle hooks.
type store struct {
	users userStore
	posts repositories.PostRepository
	ping  func(ctx context.Context) error
	close func(ctx context.Context) error
}

func openStore(ctx context.Context, cfg config.Config) (store, error) {
	switch cfg.Store {
	case config.StorePostgres:
		pool, err := db.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
		if err != nil {
			return store{}, err
		}
		return store{
			users: repositories.NewPostgresUserRepository(pool),
			posts: repositories.NewPostgresPostRepository(pool),
			ping:  pool.Ping,
			close: func(context.Context) error { pool.Close(); return nil },
		}, nil
	case config.StoreMongo:
		client, err := db.ConnectMongo(ctx, cfg.MongoURI, cfg.ServiceName)
		if err != nil {
			return store{}, err
		}
		database := client.Database(cfg.MongoDB)
		if err := repositories.EnsureMongoIndexes(ctx, database); err != nil {
			_ = client.Disconnect(context.Background())
			return store{}, err
		}
		return store{
			users: repositories.NewMongoUserRepository(database),
			posts: repositories.NewMongoPostRepository(database),
			ping:  func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) },
			close: client.Disconnect,
		}, nil
	case config.StoreMemory:
		return store{
			users: repositories.NewInMemoryUserRepository(),
			posts: repositories.NewInMemoryPostRepository(),
			ping:  func(context.Context) error { return nil },
			close: func(context.Context) error { return nil },
		}, nil
	default:
		return store{}, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

func openCache(cfg config.Config, logger *slog.Logger) cache.Backend {
	if strings.TrimSpace(cfg.MemcachedAddr) == "" {
		return cache.NewMemoryBackend()
	}

	var addrs []string
	for _, addr := range strings.Split(cfg.MemcachedAddr, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			addrs = append(addrs, addr)
		}
	}
	backend := cache.NewMemcacheBackend(cfg.ServiceName+":", addrs...)
	if err := backend.Ping(); err != nil {
		logger.Warn("memcached unreachable, directory reads will hit the store", "addrs", addrs, "error", err)
	}
	return backend
}

func openPictures(ctx context.Context, cfg config.Config) (storage.PictureStore, string, error) {
	if strings.TrimSpace(cfg.ObjectStore.Bucket) != "" {
		s3Store, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			return nil, "", err
		}
		return s3Store, "", nil
	}

	local, err := storage.NewLocalStorage(cfg.AssetsDir)
	if err != nil {
		return nil, "", err
	}
	return local, local.Dir(), nil
}

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. The returned cleanup drains queued events and releases the store.
func buildDependencies(ctx context.Context, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, func(context.Context) error, error) {
	var closers []func(context.Context) error
	cleanup := func(ctx context.Context) error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	fail := func(err error) (handlers.Dependencies, func(context.Context) error, error) {
		_ = cleanup(context.Background())
		return handlers.Dependencies{}, nil, err
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, st.close)

	m := metrics.New("circle")

	var sink events.Publisher = events.LogPublisher{Logger: logger}
	if cfg.NATSURL != "" {
		natsPublisher, err := events.ConnectNATS(cfg.NATSURL, cfg.EventSubject, cfg.ServiceName)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func(context.Context) error { return natsPublisher.Close() })
		sink = natsPublisher
	}

	dispatcher := events.NewDispatcher(sink, events.DispatcherConfig{
		QueueSize: cfg.EventQueue,
		Workers:   cfg.EventWorkers,
		OnDeliver: func(event events.Event, err error) { m.ObserveEvent(event.Type, err) },
	}, logger)
	closers = append(closers, dispatcher.Shutdown)

	tokens, err := auth.NewTokenManager([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.TokenTTL)
	if err != nil {
		return fail(err)
	}

	pictures, assetsDir, err := openPictures(ctx, cfg)
	if err != nil {
		return fail(err)
	}

	directory := cache.NewJSON[[]models.User](openCache(cfg, logger), cfg.DirectoryCacheTTL)

	return handlers.Dependencies{
		Auth:        auth.NewService(st.users, tokens, dispatcher),
		Tokens:      tokens,
		Directory:   users.NewService(st.users, directory),
		Friends:     friends.NewService(st.users, dispatcher),
		Posts:       posts.NewService(st.posts, st.users, dispatcher),
		Pictures:    pictures,
		AuthLimiter: middleware.NewIPRateLimiter(cfg.AuthRateLimit, cfg.AuthRateWindow, cfg.AuthRateBurst, 0),
		MaxUpload:   cfg.MaxUploadBytes,
		AssetsDir:   assetsDir,
		Metrics:     m,
		Health:      st.ping,

		TrustedProxies: cfg.TrustedProxies,
	}, cleanup, nil
}
