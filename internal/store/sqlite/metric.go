package sqlite

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"github.com/MrSnakeDoc/linkmetrics/internal/domain"
)

// GetMetric retrieves the last fetched value of one metric of one service.
func (s *Store) GetMetric(ctx context.Context, key domain.ServiceKey, name string) (*domain.Metric, error) {
	var metric domain.Metric
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND service = ? AND name = ?", key.OwnerID, key.Name, name).
		First(&metric).
		Error
	if err != nil {
		return nil, classify("failed to get metric "+name+" of "+key.String(), err)
	}
	return &metric, nil
}

// PutMetric upserts a metric value.
func (s *Store) PutMetric(ctx context.Context, metric *domain.Metric) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_id"}, {Name: "service"}, {Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "fetched_at"}),
		}).
		Create(metric).
		Error
	return classify("failed to put metric "+metric.Name, err)
}

// PruneMetrics deletes metric values fetched before the cutoff and returns how many were removed.
func (s *Store) PruneMetrics(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("fetched_at < ?", before).
		Delete(&domain.Metric{})
	if res.Error != nil {
		return 0, classify("failed to prune metrics", res.Error)
	}
	return res.RowsAffected, nil
}

// GetCredential retrieves the tokens of an owner for one provider family.
func (s *Store) GetCredential(ctx context.Context, ownerID, provider string) (*domain.Credential, error) {
	var cred domain.Credential
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND provider = ?", ownerID, provider).
		First(&cred).
		Error
	if err != nil {
		return nil, classify("failed to get "+provider+" credential of "+ownerID, err)
	}
	return &cred, nil
}

// PutCredential upserts the tokens of an owner for one provider family.
func (s *Store) PutCredential(ctx context.Context, cred *domain.Credential) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_id"}, {Name: "provider"}},
			DoUpdates: clause.AssignmentColumns([]string{"access_token", "access_secret"}),
		}).
		Create(cred).
		Error
	return classify("failed to put "+cred.Provider+" credential", err)
}
