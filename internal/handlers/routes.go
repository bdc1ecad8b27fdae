package handlers

import (
	"context"
	"net/http"
	"net/netip"
	"strings"

	"github.com/circlesocial/backend/internal/metrics"
	"github.com/circlesocial/backend/internal/middleware"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Auth      Authenticator
	Tokens    TokenVerifier
	Directory Directory
	Friends   FriendGraph
	Posts     PostService
	Pictures  PictureStore

	// AuthLimiter throttles register and login per client IP.
	AuthLimiter    RateLimiter
	TrustedProxies []netip.Prefix
	MaxUpload      int64

	// AssetsDir is served at /assets/ when set.
	AssetsDir string
	Metrics   *metrics.Metrics
	Health    func(ctx context.Context) error
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{Check: deps.Health}
	authHandler := AuthHandler{
		Auth:      deps.Auth,
		Directory: deps.Directory,
		Pictures:  deps.Pictures,
		Limiter:   deps.AuthLimiter,
		MaxUpload: deps.MaxUpload,

		TrustedProxies: deps.TrustedProxies,
	}
	users := UserHandler{Directory: deps.Directory, Graph: deps.Friends}
	postHandler := PostHandler{Posts: deps.Posts, Pictures: deps.Pictures, MaxUpload: deps.MaxUpload}

	requireAuth := middleware.RequireAuth(deps.Tokens)
	handle := func(pattern string, h http.HandlerFunc, protected bool) {
		var handler http.Handler = h
		if protected {
			handler = requireAuth(handler)
		}
		mux.Handle(pattern, deps.Metrics.Instrument(pattern, handler))
	}

	handle("GET /healthz", health.Handle, false)

	handle("POST /api/v1/auth/register", authHandler.Register, false)
	handle("POST /api/v1/auth/login", authHandler.Login, false)

	handle("GET /api/v1/user", users.List, false)
	handle("GET /api/v1/user/{id}", users.Get, true)
	handle("PATCH /api/v1/user/{id}", users.Update, true)
	handle("GET /api/v1/user/{id}/friends", users.Friends, true)
	handle("PATCH /api/v1/user/{id}/friendId", users.ToggleFriend, true)
	handle("PATCH /api/v1/user/{id}/{friendId}", users.ToggleFriendByPath, true)

	handle("POST /api/v1/post", postHandler.Create, true)
	handle("GET /api/v1/post", postHandler.Feed, true)
	handle("GET /api/v1/post/{userId}/posts", postHandler.UserPosts, true)
	handle("PATCH /api/v1/post/{id}/like", postHandler.Like, true)

	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics.Handler())
	}
	if deps.AssetsDir != "" {
		mux.Handle("GET /assets/", http.StripPrefix("/assets/", noDirectoryListing(http.FileServer(http.Dir(deps.AssetsDir)))))
	}
}

func noDirectoryListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
