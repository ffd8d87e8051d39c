package repository

import (
	"github.com/MarekWeber/RevRescue/app/models"
	"gorm.io/gorm"
)

// offerConfigRepository implements OfferConfigRepository on GORM
type offerConfigRepository struct {
	db *gorm.DB
}

// NewOfferConfigRepository creates a new offer config repository
func NewOfferConfigRepository(db *gorm.DB) OfferConfigRepository {
	return &offerConfigRepository{db: db}
}

func (r *offerConfigRepository) Create(config *models.OfferConfig) error {
	return r.db.Create(config).Error
}

func (r *offerConfigRepository) GetByID(id uint) (*models.OfferConfig, error) {
	var config models.OfferConfig
	if err := r.db.First(&config, id).Error; err != nil {
		return nil, err
	}
	return &config, nil
}

func (r *offerConfigRepository) GetActive(accountID uint) (*models.OfferConfig, error) {
	var config models.OfferConfig
	err := r.db.Where("account_id = ? AND is_active = ?", accountID, true).
		Order("version DESC").
		First(&config).Error
	if err != nil {
		return nil, err
	}
	return &config, nil
}

func (r *offerConfigRepository) GetVersion(accountID uint, version int) (*models.OfferConfig, error) {
	var config models.OfferConfig
	err := r.db.Where("account_id = ? AND version = ?", accountID, version).First(&config).Error
	if err != nil {
		return nil, err
	}
	return &config, nil
}

func (r *offerConfigRepository) ListByAccount(accountID uint) ([]models.OfferConfig, error) {
	var configs []models.OfferConfig
	err := r.db.Where("account_id = ?", accountID).Order("version DESC").Find(&configs).Error
	return configs, err
}

func (r *offerConfigRepository) NextVersion(accountID uint) (int, error) {
	var maxVersion int
	err := r.db.Model(&models.OfferConfig{}).
		Where("account_id = ?", accountID).
		Select("COALESCE(MAX(version), 0)").
		Scan(&maxVersion).Error
	if err != nil {
		return 0, err
	}
	return maxVersion + 1, nil
}

// Activate flips the active flag to one version atomically: publishing a new
// version deactivates every other one in the same transaction.
func (r *offerConfigRepository) Activate(accountID uint, version int) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.OfferConfig{}).
			Where("account_id = ? AND version != ?", accountID, version).
			Update("is_active", false).Error; err != nil {
			return err
		}
		res := tx.Model(&models.OfferConfig{}).
			Where("account_id = ? AND version = ?", accountID, version).
			Update("is_active", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
