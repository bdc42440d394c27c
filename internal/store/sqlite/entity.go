package sqlite

import (
	"context"

	"github.com/MrSnakeDoc/linkmetrics/internal/domain"
)

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, classify("failed to get user "+id, err)
	}
	return &user, nil
}

func (s *Store) GetChannel(ctx context.Context, id string) (*domain.Channel, error) {
	var channel domain.Channel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&channel).Error; err != nil {
		return nil, classify("failed to get channel "+id, err)
	}
	return &channel, nil
}

// ListMembers queries the members of a channel through the channel index.
func (s *Store) ListMembers(ctx context.Context, channelID string) ([]domain.Member, error) {
	var members []domain.Member
	err := s.db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		Order("user_id").
		Find(&members).
		Error
	if err != nil {
		return nil, classify("failed to list members of "+channelID, err)
	}
	return members, nil
}

func (s *Store) GetFile(ctx context.Context, id string) (*domain.File, error) {
	var file domain.File
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&file).Error; err != nil {
		return nil, classify("failed to get file "+id, err)
	}
	return &file, nil
}

// SelectUserFields is the relational join used by listing views.
func (s *Store) SelectUserFields(ctx context.Context, ids []string) ([]domain.UserProfile, error) {
	if len(ids) == 0 {
		return []domain.UserProfile{}, nil
	}
	var profiles []domain.UserProfile
	err := s.db.WithContext(ctx).
		Table(domain.User{}.TableName()).
		Select("id, display_name AS name, email, description").
		Where("id IN ?", ids).
		Order("id").
		Scan(&profiles).
		Error
	if err != nil {
		return nil, classify("failed to select user fields", err)
	}
	return profiles, nil
}

// Create inserts any supported entity. Used by seeding and tests.
func (s *Store) Create(ctx context.Context, value interface{}) error {
	return classify("failed to create entity", s.db.WithContext(ctx).Create(value).Error)
}
