package cancelflow

import (
	"github.com/MarekWeber/RevRescue/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the cancel-flow engine.
type Repository interface {
	CreateSessionIfNotExists(session *models.CancelSession) (bool, *models.CancelSession, error)
	GetByToken(token string) (*models.CancelSession, error)
	TransitionFrom(token string, from models.SessionStatus, updates map[string]interface{}) (bool, error)
	ResolveActive(token string, updates map[string]interface{}) (bool, error)
	GetActiveConfig(accountID uint) (*models.OfferConfig, error)
	GetConfigVersion(accountID uint, version int) (*models.OfferConfig, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a cancel-flow repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateSessionIfNotExists(session *models.CancelSession) (bool, *models.CancelSession, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoNothing: true,
	}).Create(session)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.CancelSession
	if err := r.db.Where("token = ?", session.Token).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) GetByToken(token string) (*models.CancelSession, error) {
	var session models.CancelSession
	if err := r.db.Where("token = ?", token).First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// TransitionFrom applies the updates only while the session still sits in the
// expected source state. false means another request moved it first.
func (r *gormRepository) TransitionFrom(token string, from models.SessionStatus, updates map[string]interface{}) (bool, error) {
	tx := r.db.Model(&models.CancelSession{}).
		Where("token = ? AND status = ?", token, from).
		Updates(updates)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// ResolveActive applies the updates to any session that has not reached a
// terminal state yet.
func (r *gormRepository) ResolveActive(token string, updates map[string]interface{}) (bool, error) {
	tx := r.db.Model(&models.CancelSession{}).
		Where("token = ? AND status NOT IN ?", token, []models.SessionStatus{models.SessionSaved, models.SessionCancelled}).
		Updates(updates)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) GetActiveConfig(accountID uint) (*models.OfferConfig, error) {
	var config models.OfferConfig
	err := r.db.Where("account_id = ? AND is_active = ?", accountID, true).
		Order("version DESC").
		First(&config).Error
	if err != nil {
		return nil, err
	}
	return &config, nil
}

func (r *gormRepository) GetConfigVersion(accountID uint, version int) (*models.OfferConfig, error) {
	var config models.OfferConfig
	err := r.db.Where("account_id = ? AND version = ?", accountID, version).First(&config).Error
	if err != nil {
		return nil, err
	}
	return &config, nil
}
