// Package entity resolves cacheable records through the ephemeral cache, falling
// back to the durable store. Only the primary record is cached; enrichment such as
// channel members or user avatars is attached after resolution on every read.
package entity

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/linkmetrics/internal/cache"
	"github.com/MrSnakeDoc/linkmetrics/internal/domain"
	"github.com/MrSnakeDoc/linkmetrics/internal/logger"
)

// Store is the subset of the durable store the resolver loads from.
type Store interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetChannel(ctx context.Context, id string) (*domain.Channel, error)
	ListMembers(ctx context.Context, channelID string) ([]domain.Member, error)
	GetFile(ctx context.Context, id string) (*domain.File, error)
	GetService(ctx context.Context, key domain.ServiceKey) (*domain.Service, error)
}

// Resolver composes the cache resolver with store loaders, one per entity type.
type Resolver struct {
	cache *cache.Resolver
	store Store
	log   logger.Logger
}

// NewResolver creates an entity resolver.
func NewResolver(c *cache.Resolver, store Store, log logger.Logger) *Resolver {
	if log == nil {
		log = logger.Nop()
	}
	return &Resolver{cache: c, store: store, log: log}
}

// load adapts a pointer-returning store getter to the value-typed cache loader.
func load[T any](get func(ctx context.Context) (*T, error)) func(ctx context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		var zero T
		v, err := get(ctx)
		if err != nil {
			return zero, err
		}
		if v == nil {
			return zero, domain.ErrNotFound
		}
		return *v, nil
	}
}

// User resolves a user and attaches its avatar file.
func (r *Resolver) User(ctx context.Context, id string) (*domain.User, error) {
	if id == "" {
		return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	user, err := cache.Resolve(ctx, r.cache, cache.EntityKey(cache.EntityUser, id),
		load(func(ctx context.Context) (*domain.User, error) { return r.store.GetUser(ctx, id) }))
	if err != nil {
		return nil, err
	}

	if user.AvatarFileID != "" {
		file, err := r.File(ctx, user.AvatarFileID)
		switch {
		case err == nil:
			user.Avatar = file
		case errors.Is(err, domain.ErrNotFound):
		default:
			r.log.Warn("failed to enrich user avatar",
				logger.String("user_id", id),
				logger.Error(err))
		}
	}
	return &user, nil
}

// Channel resolves a channel and attaches its current members.
func (r *Resolver) Channel(ctx context.Context, id string) (*domain.Channel, error) {
	if id == "" {
		return nil, fmt.Errorf("channel: %w", domain.ErrNotFound)
	}
	channel, err := cache.Resolve(ctx, r.cache, cache.EntityKey(cache.EntityChannel, id),
		load(func(ctx context.Context) (*domain.Channel, error) { return r.store.GetChannel(ctx, id) }))
	if err != nil {
		return nil, err
	}

	members, err := r.store.ListMembers(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to enrich channel %s: %w", id, err)
	}
	channel.Members = members
	return &channel, nil
}

// File resolves a file.
func (r *Resolver) File(ctx context.Context, id string) (*domain.File, error) {
	if id == "" {
		return nil, fmt.Errorf("file: %w", domain.ErrNotFound)
	}
	file, err := cache.Resolve(ctx, r.cache, cache.EntityKey(cache.EntityFile, id),
		load(func(ctx context.Context) (*domain.File, error) { return r.store.GetFile(ctx, id) }))
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// Service resolves a linked service by its composite key.
func (r *Resolver) Service(ctx context.Context, key domain.ServiceKey) (*domain.Service, error) {
	if key.OwnerID == "" || key.Name == "" {
		return nil, fmt.Errorf("service: %w", domain.ErrNotFound)
	}
	service, err := cache.Resolve(ctx, r.cache, serviceKey(key),
		load(func(ctx context.Context) (*domain.Service, error) { return r.store.GetService(ctx, key) }))
	if err != nil {
		return nil, err
	}
	return &service, nil
}

// InvalidateService drops the cached service so the next read goes to the store.
func (r *Resolver) InvalidateService(ctx context.Context, key domain.ServiceKey) error {
	return r.cache.Invalidate(ctx, serviceKey(key))
}

// InvalidateUser drops the cached user.
func (r *Resolver) InvalidateUser(ctx context.Context, id string) error {
	return r.cache.Invalidate(ctx, cache.EntityKey(cache.EntityUser, id))
}

// InvalidateChannel drops the cached channel.
func (r *Resolver) InvalidateChannel(ctx context.Context, id string) error {
	return r.cache.Invalidate(ctx, cache.EntityKey(cache.EntityChannel, id))
}

func serviceKey(key domain.ServiceKey) string {
	return cache.EntityKey(cache.EntityService, key.OwnerID, key.Name)
}
