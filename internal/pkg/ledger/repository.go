package ledger

import (
	"time"

	"github.com/MarekWeber/RevRescue/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the attribution ledger.
type Repository interface {
	CreateEntryIfNotExists(entry *models.LedgerEntry) (bool, *models.LedgerEntry, error)
	GetCase(caseID uint) (*models.RecoveryCase, error)
	ListEntriesByAccount(accountID uint, limit int) ([]models.LedgerEntry, error)
	ListEntriesSince(since time.Time) ([]models.LedgerEntry, error)
	SumRecoveredByAccount(accountID uint) (int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a ledger repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// CreateEntryIfNotExists inserts the entry unless one already exists for the
// (recovery_case_id, source_event_id) pair. The unique index does the
// enforcement; this is not a read-then-write.
func (r *gormRepository) CreateEntryIfNotExists(entry *models.LedgerEntry) (bool, *models.LedgerEntry, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "recovery_case_id"},
			{Name: "source_event_id"},
		},
		DoNothing: true,
	}).Create(entry)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.LedgerEntry
	if err := r.db.Where("recovery_case_id = ? AND source_event_id = ?", entry.RecoveryCaseID, entry.SourceEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) GetCase(caseID uint) (*models.RecoveryCase, error) {
	var rc models.RecoveryCase
	if err := r.db.First(&rc, caseID).Error; err != nil {
		return nil, err
	}
	return &rc, nil
}

func (r *gormRepository) ListEntriesByAccount(accountID uint, limit int) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	q := r.db.Where("owner_account_id = ?", accountID).Order("recovered_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&entries).Error
	return entries, err
}

func (r *gormRepository) ListEntriesSince(since time.Time) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := r.db.Where("recovered_at > ?", since).Order("recovered_at ASC").Find(&entries).Error
	return entries, err
}

func (r *gormRepository) SumRecoveredByAccount(accountID uint) (int64, error) {
	var total int64
	err := r.db.Model(&models.LedgerEntry{}).
		Where("owner_account_id = ?", accountID).
		Select("COALESCE(SUM(amount_recovered), 0)").
		Scan(&total).Error
	return total, err
}
