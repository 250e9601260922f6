package billing

import (
	"time"

	"github.com/inkwell-app/InkWell/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the webhook reconciler and
// the guard.
type Repository interface {
	GetOrCreateRecord(userID uint) (*models.BillingRecord, error)
	GetRecordByProviderSubscriptionID(provider, subscriptionID string) (*models.BillingRecord, error)
	GetRecordByProviderCustomerID(provider, customerID string) (*models.BillingRecord, error)
	SaveRecord(rec *models.BillingRecord) error
	FindUserByEmail(email string) (*models.User, error)
	CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetOrCreateRecord(userID uint) (*models.BillingRecord, error) {
	return models.GetOrCreateBillingRecord(r.db, userID)
}

func (r *gormRepository) GetRecordByProviderSubscriptionID(provider, subscriptionID string) (*models.BillingRecord, error) {
	var rec models.BillingRecord
	err := r.db.Where("provider = ? AND provider_subscription_id = ?", provider, subscriptionID).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *gormRepository) GetRecordByProviderCustomerID(provider, customerID string) (*models.BillingRecord, error) {
	var rec models.BillingRecord
	err := r.db.Where("provider = ? AND provider_customer_id = ?", provider, customerID).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *gormRepository) SaveRecord(rec *models.BillingRecord) error {
	return r.db.Save(rec).Error
}

// FindUserByEmail resolves a payment email to a local user: exact match
// first, then case-insensitive.
func (r *gormRepository) FindUserByEmail(email string) (*models.User, error) {
	var user models.User
	err := r.db.Where("email = ?", email).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	err = r.db.Where("LOWER(email) = LOWER(?)", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
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
	var stored models.BillingWebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
