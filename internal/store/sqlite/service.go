package sqlite

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"github.com/MrSnakeDoc/linkmetrics/internal/domain"
)

// GetService retrieves a service by its composite key.
func (s *Store) GetService(ctx context.Context, key domain.ServiceKey) (*domain.Service, error) {
	var service domain.Service
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND name = ?", key.OwnerID, key.Name).
		First(&service).
		Error
	if err != nil {
		return nil, classify("failed to get service "+key.String(), err)
	}
	return &service, nil
}

// QueryServicesByOwner lists the services of one owner through the owner index.
func (s *Store) QueryServicesByOwner(ctx context.Context, ownerID string) ([]domain.Service, error) {
	var services []domain.Service
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("name").
		Find(&services).
		Error
	if err != nil {
		return nil, classify("failed to query services of "+ownerID, err)
	}
	return services, nil
}

// ListOwners returns every owner with at least one linked service.
func (s *Store) ListOwners(ctx context.Context) ([]string, error) {
	var owners []string
	err := s.db.WithContext(ctx).
		Model(&domain.Service{}).
		Distinct("owner_id").
		Order("owner_id").
		Pluck("owner_id", &owners).
		Error
	if err != nil {
		return nil, classify("failed to list owners", err)
	}
	return owners, nil
}

// LinkService creates the record of a newly linked service. Linking an existing
// key only resets its status to active.
func (s *Store) LinkService(ctx context.Context, service *domain.Service) error {
	if service.Status == "" {
		service.Status = domain.StatusActive
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_id"}, {Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "provider"}),
		}).
		Create(service).
		Error
	return classify("failed to link service "+service.Key().String(), err)
}

// SetServiceStatus transitions a service between unlinked, active and error.
func (s *Store) SetServiceStatus(ctx context.Context, key domain.ServiceKey, status domain.Status) error {
	res := s.db.WithContext(ctx).
		Model(&domain.Service{}).
		Where("owner_id = ? AND name = ?", key.OwnerID, key.Name).
		Update("status", status)
	if res.Error != nil {
		return classify("failed to set status of "+key.String(), res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("service %s: %w", key, domain.ErrNotFound)
	}
	return nil
}

// ConditionalRefresh writes the fragment and sets refreshed_at to day, but only when
// the record is not unlinked and was not refreshed on or after day. When the predicate
// fails the record is left untouched and domain.ErrConditionFailed is returned.
func (s *Store) ConditionalRefresh(ctx context.Context, key domain.ServiceKey, fragment domain.Fragment, day time.Time) (*domain.Service, error) {
	patch := map[string]interface{}{
		"provider":     fragment.Provider,
		"identifier":   fragment.Identifier,
		"username":     fragment.Username,
		"display_name": fragment.DisplayName,
		"profile_url":  fragment.ProfileURL,
		"picture_url":  fragment.PictureURL,
		"status":       fragment.Status,
		"refreshed_at": day,
	}

	res := s.db.WithContext(ctx).
		Model(&domain.Service{}).
		Where("owner_id = ? AND name = ?", key.OwnerID, key.Name).
		Where("status <> ?", domain.StatusUnlinked).
		Where("(refreshed_at IS NULL OR refreshed_at < ?)", day).
		Updates(patch)
	if res.Error != nil {
		return nil, classify("failed to refresh service "+key.String(), res.Error)
	}

	if res.RowsAffected == 0 {
		// The record is missing, unlinked or already refreshed today.
		if _, err := s.GetService(ctx, key); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("service %s not refreshable: %w", key, domain.ErrConditionFailed)
	}

	return s.GetService(ctx, key)
}
