package recovery

import (
	"time"

	"github.com/MarekWeber/RevRescue/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the recovery case manager.
type Repository interface {
	CreateCaseIfNotExists(rc *models.RecoveryCase) (bool, *models.RecoveryCase, error)
	GetByID(id uint) (*models.RecoveryCase, error)
	GetByPublicID(publicID string) (*models.RecoveryCase, error)
	GetLatestByInvoice(ownerAccountID uint, invoiceReference string) (*models.RecoveryCase, error)
	MarkRecovered(id uint, now time.Time) (bool, error)
	MarkFirstAction(id uint, now time.Time) error
	ExpireDue(now time.Time) (int64, error)
	ListOpen(limit int) ([]models.RecoveryCase, error)
	ListByOwner(ownerAccountID uint, limit int) ([]models.RecoveryCase, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a recovery repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// CreateCaseIfNotExists inserts the case unless an open case already claims
// the same open_invoice_key. Concurrent webhook deliveries race on the unique
// index, not on a read-then-write, so exactly one of them creates the row.
func (r *gormRepository) CreateCaseIfNotExists(rc *models.RecoveryCase) (bool, *models.RecoveryCase, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "open_invoice_key"}},
		DoNothing: true,
	}).Create(rc)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.RecoveryCase
	if err := r.db.Where("open_invoice_key = ?", rc.OpenInvoiceKey).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) GetByID(id uint) (*models.RecoveryCase, error) {
	var rc models.RecoveryCase
	if err := r.db.First(&rc, id).Error; err != nil {
		return nil, err
	}
	return &rc, nil
}

func (r *gormRepository) GetByPublicID(publicID string) (*models.RecoveryCase, error) {
	var rc models.RecoveryCase
	if err := r.db.Where("public_id = ?", publicID).First(&rc).Error; err != nil {
		return nil, err
	}
	return &rc, nil
}

func (r *gormRepository) GetLatestByInvoice(ownerAccountID uint, invoiceReference string) (*models.RecoveryCase, error) {
	var rc models.RecoveryCase
	err := r.db.Where("owner_account_id = ? AND invoice_reference = ?", ownerAccountID, invoiceReference).
		Order("opened_at DESC").
		First(&rc).Error
	if err != nil {
		return nil, err
	}
	return &rc, nil
}

// MarkRecovered flips the case to recovered with a single conditional UPDATE.
// The WHERE clause carries both guards: the case must still be open and the
// deadline must not have passed. false means some other writer (or the clock)
// got there first.
func (r *gormRepository) MarkRecovered(id uint, now time.Time) (bool, error) {
	tx := r.db.Model(&models.RecoveryCase{}).
		Where("id = ? AND status = ? AND deadline_at > ?", id, models.CaseOpen, now).
		Updates(map[string]interface{}{
			"status":           models.CaseRecovered,
			"resolved_at":      now,
			"open_invoice_key": nil,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) MarkFirstAction(id uint, now time.Time) error {
	return r.db.Model(&models.RecoveryCase{}).
		Where("id = ? AND first_action_at IS NULL", id).
		Update("first_action_at", now).Error
}

// ExpireDue materializes expiry for every open case past its deadline.
// Readers already see those cases as expired via EffectiveStatus; this sweep
// just makes the stored rows agree.
func (r *gormRepository) ExpireDue(now time.Time) (int64, error) {
	tx := r.db.Model(&models.RecoveryCase{}).
		Where("status = ? AND deadline_at <= ?", models.CaseOpen, now).
		Updates(map[string]interface{}{
			"status":           models.CaseExpired,
			"resolved_at":      now,
			"open_invoice_key": nil,
		})
	return tx.RowsAffected, tx.Error
}

func (r *gormRepository) ListOpen(limit int) ([]models.RecoveryCase, error) {
	var cases []models.RecoveryCase
	q := r.db.Where("status = ?", models.CaseOpen).Order("deadline_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&cases).Error
	return cases, err
}

func (r *gormRepository) ListByOwner(ownerAccountID uint, limit int) ([]models.RecoveryCase, error) {
	var cases []models.RecoveryCase
	q := r.db.Where("owner_account_id = ?", ownerAccountID).Order("opened_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&cases).Error
	return cases, err
}
