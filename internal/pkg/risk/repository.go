package risk

import (
	"time"

	"github.com/MarekWeber/RevRescue/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the risk service.
type Repository interface {
	AppendSignal(event *models.RiskSignalEvent) error
	ListSignalsSince(accountID uint, since time.Time) ([]models.RiskSignalEvent, error)
	GetSubscriptionByAccount(accountID uint) (*models.Subscription, error)
	UpsertSnapshot(snapshot *models.RiskSnapshot) error
	GetSnapshot(accountID uint) (*models.RiskSnapshot, error)
	ListAccountIDsWithSignalsSince(since time.Time) ([]uint, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a risk repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) AppendSignal(event *models.RiskSignalEvent) error {
	return r.db.Create(event).Error
}

func (r *gormRepository) ListSignalsSince(accountID uint, since time.Time) ([]models.RiskSignalEvent, error) {
	var signals []models.RiskSignalEvent
	err := r.db.
		Where("account_id = ? AND occurred_at > ?", accountID, since).
		Order("occurred_at DESC").
		Find(&signals).Error
	return signals, err
}

func (r *gormRepository) GetSubscriptionByAccount(accountID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("account_id = ?", accountID).
		Order("updated_at DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) UpsertSnapshot(snapshot *models.RiskSnapshot) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "account_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"score",
			"top_reasons",
			"updated_at",
		}),
	}).Create(snapshot).Error
}

func (r *gormRepository) GetSnapshot(accountID uint) (*models.RiskSnapshot, error) {
	var snap models.RiskSnapshot
	err := r.db.Where("account_id = ?", accountID).First(&snap).Error
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (r *gormRepository) ListAccountIDsWithSignalsSince(since time.Time) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.RiskSignalEvent{}).
		Where("occurred_at > ?", since).
		Distinct("account_id").
		Pluck("account_id", &ids).Error
	return ids, err
}
