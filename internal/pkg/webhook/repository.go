package webhook

import (
	"github.com/MarekWeber/RevRescue/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by webhook ingestion.
type Repository interface {
	CreateEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkProcessed(eventID uint, processingError string) error
	GetAccountByExternalRef(externalRef string) (*models.Account, error)
	UpsertSubscription(sub *models.Subscription) error
	ListUnprocessed(limit int) ([]models.WebhookEvent, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a webhook repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// CreateEventIfNotExists inserts the event unless the provider already
// delivered it. The (provider, provider_event_id) unique index carries the
// exactly-once guarantee.
func (r *gormRepository) CreateEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkProcessed(eventID uint, processingError string) error {
	return r.db.Model(&models.WebhookEvent{}).
		Where("id = ?", eventID).
		Updates(map[string]interface{}{
			"processed_at":     gorm.Expr("NOW()"),
			"processing_error": processingError,
		}).Error
}

func (r *gormRepository) GetAccountByExternalRef(externalRef string) (*models.Account, error) {
	var account models.Account
	if err := r.db.Where("external_ref = ?", externalRef).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// UpsertSubscription writes the provider's subscription state keyed on the
// provider subscription id.
func (r *gormRepository) UpsertSubscription(sub *models.Subscription) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider_subscription_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "current_period_start", "current_period_end", "trial_end",
			"cancel_at_period_end", "amount_cents", "currency", "raw_payload_json", "updated_at",
		}),
	}).Create(sub).Error
}

func (r *gormRepository) ListUnprocessed(limit int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	q := r.db.Where("processed_at IS NULL").Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&events).Error
	return events, err
}
