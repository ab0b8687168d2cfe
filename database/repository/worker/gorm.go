package workerRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"homeserve/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type workerRecord struct {
	ID                string             `gorm:"primaryKey;size:64"`
	Name              string             `gorm:"size:128"`
	ExperienceTier    string             `gorm:"size:16"`
	HourlyRates       map[string]float64 `gorm:"serializer:json"`
	DefaultHourlyRate float64
	Currency          string `gorm:"size:8"`
	Active            bool   `gorm:"not null;default:true"`
	UpdatedAt         time.Time
}

func (workerRecord) TableName() string { return "worker_profiles" }

type GormWorkerRepo struct {
	db *gorm.DB
}

func NewGormWorkerRepo(db *gorm.DB) *GormWorkerRepo {
	return &GormWorkerRepo{db: db}
}

func (r *GormWorkerRepo) Migrate() error {
	return r.db.AutoMigrate(&workerRecord{})
}

func (r *GormWorkerRepo) GetWorkerProfile(ctx context.Context, workerID string) (*models.WorkerProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var row workerRecord
	if err := r.db.WithContext(ctx).First(&row, "id = ?", workerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching worker with id %s: %w", workerID, err)
	}
	return &models.WorkerProfile{
		ID:                row.ID,
		Name:              row.Name,
		ExperienceTier:    models.ExperienceTier(row.ExperienceTier),
		HourlyRates:       row.HourlyRates,
		DefaultHourlyRate: row.DefaultHourlyRate,
		Currency:          row.Currency,
		Active:            row.Active,
		UpdatedAt:         row.UpdatedAt,
	}, nil
}

func (r *GormWorkerRepo) SaveWorkerProfile(ctx context.Context, p *models.WorkerProfile) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	row := workerRecord{
		ID:                p.ID,
		Name:              p.Name,
		ExperienceTier:    string(p.ExperienceTier),
		HourlyRates:       p.HourlyRates,
		DefaultHourlyRate: p.DefaultHourlyRate,
		Currency:          p.Currency,
		Active:            p.Active,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("error saving worker %s: %w", p.ID, err)
	}
	return nil
}
