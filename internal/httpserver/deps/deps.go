package deps

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/linkmetrics/internal/aggregate"
	"github.com/MrSnakeDoc/linkmetrics/internal/cache"
	"github.com/MrSnakeDoc/linkmetrics/internal/domain"
	"github.com/MrSnakeDoc/linkmetrics/internal/index"
	"github.com/MrSnakeDoc/linkmetrics/internal/logger"
	"github.com/MrSnakeDoc/linkmetrics/internal/provider"
)

// Store is the durable store surface used by the handlers.
type Store interface {
	Ping(ctx context.Context) error
	QueryServicesByOwner(ctx context.Context, ownerID string) ([]domain.Service, error)
	SelectUserFields(ctx context.Context, ids []string) ([]domain.UserProfile, error)
	GetCredential(ctx context.Context, ownerID, provider string) (*domain.Credential, error)
}

// Pinger is a component that can report its reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Aggregator serves per-owner metric maps.
type Aggregator interface {
	FetchUserMetrics(ctx context.Context, ownerID, metric string) (map[string]aggregate.MetricResult, error)
}

// Entities reads users, channels and services through the cache.
type Entities interface {
	User(ctx context.Context, id string) (*domain.User, error)
	Channel(ctx context.Context, id string) (*domain.Channel, error)
	Service(ctx context.Context, key domain.ServiceKey) (*domain.Service, error)
}

// Dispatcher refreshes one service from its provider.
type Dispatcher interface {
	Family(service string) (string, error)
	Refresh(ctx context.Context, service string, cred domain.Credential, ownerID string) (provider.Result, error)
}

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	TimeNow      func() time.Time // for testing, defaults to time.Now
	AllowedHosts []string         // Host headers allowed to access the server
	AllowedCIDRS []string         // IPs allowed to access ops endpoints
	TrustProxy   bool             // true if running behind a trusted reverse proxy (e.g., cloudflared)

	RateLimitBurst     int // burst of the per-IP token bucket on /api
	RateLimitPerMinute int // refill rate of the bucket
	RateLimitEntries   int // max tracked client IPs

	Store          Store
	Entities       Entities
	Aggregator     Aggregator
	Dispatcher     Dispatcher
	CacheStats     func() cache.Stats // nil when the cache resolver is not wired
	SharedCache    Pinger             // redis tier, nil with the memory cache backend
	MemoryIndex    *index.MemoryIndex // refresh status board
	RefreshTrigger chan struct{}      // Channel to trigger a manual refresh-all run
}

// Now returns the injected clock or time.Now.
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
