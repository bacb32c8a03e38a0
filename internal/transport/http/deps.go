package http

import (
	"context"

	"github.com/go-shop-api/internal/application/confirmation"
	"github.com/go-shop-api/internal/domain"
	jwtinfra "github.com/go-shop-api/internal/infrastructure/jwt"
	"github.com/go-shop-api/internal/infrastructure/metrics"
	"github.com/go-shop-api/internal/transport/http/handler"
	appmiddleware "github.com/go-shop-api/internal/transport/http/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

// UserRepository is the minimal interface the router requires from a user store.
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	MarkConfirmed(ctx context.Context, userID string, purpose domain.Purpose) error
}

// SessionRepository is the minimal interface the router requires from a session store.
type SessionRepository interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	Disable(ctx context.Context, sessionID string) error
	DisableByUser(ctx context.Context, userID string) error
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo    UserRepository
	SessionRepo SessionRepository
	KeyStore    confirmation.KeyStore
	Dispatcher  confirmation.Dispatcher
	JWTProvider *jwtinfra.Provider

	// Optional. A nil Metrics records nothing; a nil Gatherer hides /metrics.
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Tracer   trace.Tracer
	// Health is pinged by /health-check/ready, keyed by dependency name.
	Health map[string]handler.Pinger
	// Limiter guards the public write endpoints. NewRouter builds a default
	// one when nil; the caller owns Stop either way.
	Limiter *appmiddleware.RateLimiter
	// BcryptCost is lowered in tests.
	BcryptCost int
}
