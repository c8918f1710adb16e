package trust

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TrustRecord struct {
	UserID       string `gorm:"primaryKey"`
	WarningCount int    `gorm:"not null;default:0"`
	Suspended    bool   `gorm:"not null;default:false"`
	UpdatedAt    time.Time
}

func (TrustRecord) TableName() string {
	return "trust_states"
}

// SQL store (sqlite or postgres). The increment is a single in-database expression, inside a transaction which also handles the conditional suspend.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&TrustRecord{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Get(ctx context.Context, userID string) (State, error) {
	var rec TrustRecord
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return State{UserID: userID}, nil
	} else if err != nil {
		return State{}, err
	}
	return State{
		UserID:       userID,
		WarningCount: rec.WarningCount,
		Suspended:    rec.Suspended,
	}, nil
}

func (s *GormStore) Increment(ctx context.Context, userID string, threshold int) (Violation, error) {
	var out Violation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// make sure a row exists for the UPDATE to lock
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&TrustRecord{UserID: userID}).Error; err != nil {
			return err
		}
		res := tx.Model(&TrustRecord{}).
			Where("user_id = ?", userID).
			Updates(map[string]any{
				"warning_count": gorm.Expr("warning_count + ?", 1),
				"updated_at":    time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		var rec TrustRecord
		if err := tx.Where("user_id = ?", userID).Take(&rec).Error; err != nil {
			return err
		}
		newly := false
		if !rec.Suspended && rec.WarningCount >= threshold {
			if err := tx.Model(&TrustRecord{}).Where("user_id = ?", userID).Update("suspended", true).Error; err != nil {
				return err
			}
			rec.Suspended = true
			newly = true
		}
		out = Violation{
			State: State{
				UserID:       userID,
				WarningCount: rec.WarningCount,
				Suspended:    rec.Suspended,
			},
			NewlySuspended: newly,
		}
		return nil
	})
	if err != nil {
		return Violation{}, err
	}
	return out, nil
}
