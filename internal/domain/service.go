package domain

import (
	"strings"
	"time"
)

// Status is the link state of a Service.
type Status string

const (
	StatusUnlinked Status = "unlinked"
	StatusActive   Status = "active"
	StatusError    Status = "error"
)

// Known service names.
const (
	ServiceTwitter         = "twitter"
	ServiceFacebook        = "facebook"
	ServiceYouTube         = "youtube"
	ServiceInstagram       = "instagram"
	ServiceGooglePlus      = "googleplus"
	ServiceGoogleAnalytics = "googleanalytics"
)

// Provider families. Several services can share one family (and one credential).
const (
	ProviderTwitter   = "twitter"
	ProviderFacebook  = "facebook"
	ProviderGoogle    = "google"
	ProviderInstagram = "instagram"
)

// Service represents the canonical record of a social account linked to a user.
//
// It is NOT tied to any provider wire format. Every provider adapter maps its
// native response into a Fragment that is merged into this shape.
//
// A Service is uniquely identified by (OwnerID, Name).
type Service struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// OwnerID is the opaque identifier of the user owning the link.
	OwnerID string `gorm:"column:owner_id;primaryKey;size:64;index:idx_services_owner"`

	// Name is the service name.
	// Example: twitter, youtube, googleanalytics
	Name string `gorm:"column:name;primaryKey;size:32"`

	// Provider is the provider family the service belongs to.
	// Example: youtube -> google
	Provider string `gorm:"column:provider;size:32;not null"`

	// ─────────────────────────────
	// Provider-native fields
	// (overwritten by the refresh path only)
	// ─────────────────────────────

	Identifier  string `gorm:"column:identifier;size:128"`
	Username    string `gorm:"column:username;size:128"`
	DisplayName string `gorm:"column:display_name;size:256"`
	ProfileURL  string `gorm:"column:profile_url;size:512"`
	PictureURL  string `gorm:"column:picture_url;size:512"`

	// ─────────────────────────────
	// Liveness
	// ─────────────────────────────

	Status Status `gorm:"column:status;size:16;not null"`

	// RefreshedAt is truncated to the start of the UTC day on every refresh.
	// A zero value means the record was never refreshed.
	RefreshedAt time.Time `gorm:"column:refreshed_at"`

	// Metrics is attached at read time and never persisted.
	Metrics map[string]int64 `gorm:"-" json:",omitempty"`
}

// TableName exposes the table backing linked services.
func (Service) TableName() string {
	return "services"
}

// Key returns the composite identity of the service.
func (s *Service) Key() ServiceKey {
	return ServiceKey{OwnerID: s.OwnerID, Name: s.Name}
}

// RefreshedOn reports whether the service was already refreshed on the day of t.
func (s *Service) RefreshedOn(t time.Time) bool {
	if s.RefreshedAt.IsZero() {
		return false
	}
	return !s.RefreshedAt.Before(StartOfDay(t))
}

// WithMetric returns a copy of the service with the metric attached.
// The receiver is left untouched so concurrent readers never observe a partial map.
func (s Service) WithMetric(name string, value int64) Service {
	metrics := make(map[string]int64, len(s.Metrics)+1)
	for k, v := range s.Metrics {
		metrics[k] = v
	}
	metrics[name] = value
	s.Metrics = metrics
	return s
}

// ServiceKey is the composite identity of a Service.
type ServiceKey struct {
	OwnerID string
	Name    string
}

// String returns the fixed "owner:name" concatenation used for cache keys.
func (k ServiceKey) String() string {
	return k.OwnerID + ":" + k.Name
}

// Fragment is the canonical shape produced by a provider adapter.
type Fragment struct {
	Provider    string
	Identifier  string
	Username    string
	DisplayName string
	ProfileURL  string
	PictureURL  string
	Status      Status
}

// NormalizeServiceName lowercases and trims a service name from user input.
func NormalizeServiceName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
