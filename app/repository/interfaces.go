package repository

import (
	"time"

	"github.com/MarekWeber/RevRescue/app/models"
	"gorm.io/gorm"
)

// AccountRepository defines the interface for account-related database operations
type AccountRepository interface {
	Create(account *models.Account) error
	GetByID(id uint) (*models.Account, error)
	GetByPublicID(publicID string) (*models.Account, error)
	GetByEmail(email string) (*models.Account, error)
	GetByExternalRef(externalRef string) (*models.Account, error)
	GetByAPIKeyHash(hash string) (*models.Account, error)
	Update(account *models.Account) error
	Delete(id uint) error
	List(offset, limit int) ([]models.Account, error)
	Count() (int64, error)
	UpdateLastLogin(id uint, at time.Time) error
}

// OfferConfigRepository defines the interface for retention config versions
type OfferConfigRepository interface {
	Create(config *models.OfferConfig) error
	GetByID(id uint) (*models.OfferConfig, error)
	GetActive(accountID uint) (*models.OfferConfig, error)
	GetVersion(accountID uint, version int) (*models.OfferConfig, error)
	ListByAccount(accountID uint) ([]models.OfferConfig, error)
	NextVersion(accountID uint) (int, error)
	Activate(accountID uint, version int) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	Account     AccountRepository
	OfferConfig OfferConfigRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Account:     NewAccountRepository(db),
		OfferConfig: NewOfferConfigRepository(db),
	}
}
