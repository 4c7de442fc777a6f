package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/storeops/storeops/internal/observability"
	"github.com/storeops/storeops/internal/platform/httpx"
	"github.com/storeops/storeops/internal/shared"
)

const (
	// HeaderUserID carries the authenticated user id set by the gateway.
	HeaderUserID = "X-User-ID"
	// HeaderUserRole carries the caller's role in the addressed store.
	HeaderUserRole = "X-User-Role"
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics
}

// MiddlewareStack installs the global middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'",
		SSLRedirect:           cfg.Config.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         !cfg.Config.IsProduction(),
	})

	timeout := 30 * time.Second
	limit := 120
	if cfg.Config != nil {
		if cfg.Config.AppRequestTimeout > 0 {
			timeout = cfg.Config.AppRequestTimeout
		}
		if cfg.Config.RateLimitPerMinute > 0 {
			limit = cfg.Config.RateLimitPerMinute
		}
	}

	middlewares := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					logger.Warn("secure headers blocked request", slog.Any("error", err))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				next.ServeHTTP(w, r)
			})
		},
		httprate.Limit(limit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
	}
	if cfg.Metrics != nil {
		middlewares = append(middlewares, cfg.Metrics.Middleware)
	}
	return middlewares
}

// Identity builds the actor for store-scoped routes from the gateway headers and
// the {storeID} path parameter. Requests without identity headers pass through
// without an actor and are refused by the handlers.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawUser := r.Header.Get(HeaderUserID)
		rawRole := r.Header.Get(HeaderUserRole)
		if rawUser == "" && rawRole == "" {
			next.ServeHTTP(w, r)
			return
		}
		actor, err := actorFromRequest(r, rawUser, rawRole)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
	})
}

func actorFromRequest(r *http.Request, rawUser, rawRole string) (shared.Actor, error) {
	storeID, err := httpx.IDParam(r, "storeID")
	if err != nil {
		return shared.Actor{}, err
	}
	userID, err := strconv.ParseInt(rawUser, 10, 64)
	if err != nil || userID <= 0 {
		return shared.Actor{}, fmt.Errorf("%w: invalid %s", shared.ErrValidation, HeaderUserID)
	}
	role, err := shared.ParseRole(rawRole)
	if err != nil {
		return shared.Actor{}, err
	}
	return shared.Actor{UserID: userID, StoreID: storeID, Role: role}, nil
}

// storeRoutes mounts the store-scoped API.
func storeRoutes(mounts ...func(chi.Router)) func(chi.Router) {
	return func(r chi.Router) {
		r.Use(Identity)
		for _, mount := range mounts {
			mount(r)
		}
	}
}
