package repository

import (
	"time"

	"github.com/MarekWeber/RevRescue/app/models"
	"gorm.io/gorm"
)

// accountRepository implements AccountRepository on GORM
type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(account *models.Account) error {
	return r.db.Create(account).Error
}

func (r *accountRepository) GetByID(id uint) (*models.Account, error) {
	var account models.Account
	if err := r.db.First(&account, id).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) GetByPublicID(publicID string) (*models.Account, error) {
	var account models.Account
	if err := r.db.Where("public_id = ?", publicID).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) GetByEmail(email string) (*models.Account, error) {
	var account models.Account
	if err := r.db.Where("email = ?", email).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) GetByExternalRef(externalRef string) (*models.Account, error) {
	var account models.Account
	if err := r.db.Where("external_ref = ?", externalRef).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) GetByAPIKeyHash(hash string) (*models.Account, error) {
	var account models.Account
	err := r.db.Where("api_key_hash = ? AND api_key_hash != '' AND api_key_revoked_at IS NULL", hash).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) Update(account *models.Account) error {
	return r.db.Save(account).Error
}

func (r *accountRepository) Delete(id uint) error {
	return r.db.Delete(&models.Account{}, id).Error
}

func (r *accountRepository) List(offset, limit int) ([]models.Account, error) {
	var accounts []models.Account
	err := r.db.Offset(offset).Limit(limit).Order("created_at DESC").Find(&accounts).Error
	return accounts, err
}

func (r *accountRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Account{}).Count(&count).Error
	return count, err
}

func (r *accountRepository) UpdateLastLogin(id uint, at time.Time) error {
	return r.db.Model(&models.Account{}).Where("id = ?", id).Update("last_login_at", at).Error
}
