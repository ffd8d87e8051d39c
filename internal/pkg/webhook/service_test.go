package webhook

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/MarekWeber/RevRescue/app/models"
	"github.com/MarekWeber/RevRescue/internal/pkg/faults"
	"github.com/MarekWeber/RevRescue/internal/pkg/ledger"
	"github.com/MarekWeber/RevRescue/internal/pkg/recovery"
	"github.com/MarekWeber/RevRescue/internal/pkg/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// memStore backs risk, recovery, ledger and webhook repositories with maps so
// one ingest test exercises the whole dispatch path.
type memStore struct {
	accounts  map[string]*models.Account
	events    map[string]*models.WebhookEvent
	cases     map[uint]*models.RecoveryCase
	entries   map[string]*models.LedgerEntry
	signals   []models.RiskSignalEvent
	subs      map[string]*models.Subscription
	snapshots map[uint]*models.RiskSnapshot
	nextID    uint
}

func newMemStore() *memStore {
	return &memStore{
		accounts:  make(map[string]*models.Account),
		events:    make(map[string]*models.WebhookEvent),
		cases:     make(map[uint]*models.RecoveryCase),
		entries:   make(map[string]*models.LedgerEntry),
		subs:      make(map[string]*models.Subscription),
		snapshots: make(map[uint]*models.RiskSnapshot),
	}
}

// webhook.Repository

func (m *memStore) CreateEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	key := event.Provider + "|" + event.ProviderEventID
	if existing, ok := m.events[key]; ok {
		return false, existing, nil
	}
	m.nextID++
	event.ID = m.nextID
	m.events[key] = event
	return true, event, nil
}

func (m *memStore) MarkProcessed(eventID uint, processingError string) error {
	for _, event := range m.events {
		if event.ID == eventID {
			now := time.Now()
			event.ProcessedAt = &now
			event.ProcessingError = processingError
		}
	}
	return nil
}

func (m *memStore) GetAccountByExternalRef(externalRef string) (*models.Account, error) {
	account, ok := m.accounts[externalRef]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return account, nil
}

func (m *memStore) UpsertSubscription(sub *models.Subscription) error {
	m.subs[sub.ProviderSubscriptionID] = sub
	return nil
}

func (m *memStore) ListUnprocessed(limit int) ([]models.WebhookEvent, error) {
	return nil, nil
}

// risk.Repository

func (m *memStore) AppendSignal(event *models.RiskSignalEvent) error {
	m.signals = append(m.signals, *event)
	return nil
}

func (m *memStore) ListSignalsSince(accountID uint, since time.Time) ([]models.RiskSignalEvent, error) {
	var out []models.RiskSignalEvent
	for _, sig := range m.signals {
		if sig.AccountID == accountID && sig.OccurredAt.After(since) {
			out = append(out, sig)
		}
	}
	return out, nil
}

func (m *memStore) GetSubscriptionByAccount(accountID uint) (*models.Subscription, error) {
	for _, sub := range m.subs {
		if sub.AccountID == accountID {
			return sub, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memStore) UpsertSnapshot(snapshot *models.RiskSnapshot) error {
	m.snapshots[snapshot.AccountID] = snapshot
	return nil
}

func (m *memStore) GetSnapshot(accountID uint) (*models.RiskSnapshot, error) {
	snap, ok := m.snapshots[accountID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return snap, nil
}

func (m *memStore) ListAccountIDsWithSignalsSince(since time.Time) ([]uint, error) {
	return nil, nil
}

// recovery.Repository

func (m *memStore) CreateCaseIfNotExists(rc *models.RecoveryCase) (bool, *models.RecoveryCase, error) {
	for _, existing := range m.cases {
		if existing.OpenInvoiceKey != nil && rc.OpenInvoiceKey != nil && *existing.OpenInvoiceKey == *rc.OpenInvoiceKey {
			return false, existing, nil
		}
	}
	m.nextID++
	rc.ID = m.nextID
	m.cases[rc.ID] = rc
	return true, rc, nil
}

func (m *memStore) GetByID(id uint) (*models.RecoveryCase, error) {
	rc, ok := m.cases[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return rc, nil
}

func (m *memStore) GetByPublicID(publicID string) (*models.RecoveryCase, error) {
	for _, rc := range m.cases {
		if rc.PublicID == publicID {
			return rc, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memStore) GetLatestByInvoice(ownerAccountID uint, invoiceReference string) (*models.RecoveryCase, error) {
	var latest *models.RecoveryCase
	for _, rc := range m.cases {
		if rc.OwnerAccountID == ownerAccountID && rc.InvoiceReference == invoiceReference {
			if latest == nil || rc.OpenedAt.After(latest.OpenedAt) {
				latest = rc
			}
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return latest, nil
}

func (m *memStore) MarkRecovered(id uint, now time.Time) (bool, error) {
	rc, ok := m.cases[id]
	if !ok || rc.Status != models.CaseOpen || !rc.DeadlineAt.After(now) {
		return false, nil
	}
	resolved := now
	rc.Status = models.CaseRecovered
	rc.ResolvedAt = &resolved
	rc.OpenInvoiceKey = nil
	return true, nil
}

func (m *memStore) MarkFirstAction(id uint, now time.Time) error { return nil }

func (m *memStore) ExpireDue(now time.Time) (int64, error) { return 0, nil }

func (m *memStore) ListOpen(limit int) ([]models.RecoveryCase, error) { return nil, nil }

func (m *memStore) ListByOwner(ownerAccountID uint, limit int) ([]models.RecoveryCase, error) {
	return nil, nil
}

// ledger.Repository

func (m *memStore) CreateEntryIfNotExists(entry *models.LedgerEntry) (bool, *models.LedgerEntry, error) {
	key := fmt.Sprintf("%d|%s", entry.RecoveryCaseID, entry.SourceEventID)
	if existing, ok := m.entries[key]; ok {
		return false, existing, nil
	}
	m.nextID++
	entry.ID = m.nextID
	m.entries[key] = entry
	return true, entry, nil
}

func (m *memStore) GetCase(caseID uint) (*models.RecoveryCase, error) {
	return m.GetByID(caseID)
}

func (m *memStore) ListEntriesByAccount(accountID uint, limit int) ([]models.LedgerEntry, error) {
	return nil, nil
}

func (m *memStore) ListEntriesSince(since time.Time) ([]models.LedgerEntry, error) {
	return nil, nil
}

func (m *memStore) SumRecoveredByAccount(accountID uint) (int64, error) { return 0, nil }

func newTestWebhookService() (*Service, *memStore) {
	store := newMemStore()
	store.accounts["cus_1"] = &models.Account{ID: 11, ExternalRef: "cus_1", Email: "owner@example.com"}
	recoverySvc := recovery.NewService(store, ledger.NewService(store))
	return NewService(store, risk.NewService(store), recoverySvc, nil), store
}

func paymentFailedBody(eventID, invoice string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"type": "payment_failed",
		"data": {"customer": "cus_1", "invoice": %q, "amount": 4900, "currency": "usd", "failure_code": "expired_card", "retry_scheduled": true}
	}`, eventID, invoice))
}

func invoicePaidBody(eventID, invoice string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"type": "invoice_paid",
		"data": {"customer": "cus_1", "invoice": %q, "amount": 4900, "currency": "usd"}
	}`, eventID, invoice))
}

func TestIngestPaymentFailedOpensCaseAndScores(t *testing.T) {
	svc, store := newTestWebhookService()

	res, err := svc.Ingest(context.Background(), "billingd", paymentFailedBody("evt_1", "in_100"), true)
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	require.NotNil(t, res.Event.ProcessedAt)
	assert.Empty(t, res.Event.ProcessingError)

	require.Len(t, store.cases, 1)
	for _, rc := range store.cases {
		assert.Equal(t, models.CaseOpen, rc.Status)
		assert.Equal(t, models.ReasonCardExpired, rc.ChurnReason)
		assert.Equal(t, int64(4900), rc.AmountAtRisk)
	}
	require.Len(t, store.signals, 1)
	assert.Equal(t, models.SignalPaymentFailed, store.signals[0].EventType)
	assert.Equal(t, "evt_1", store.signals[0].SourceRef)
	require.Contains(t, store.snapshots, uint(11))
	assert.Equal(t, 50, store.snapshots[11].Score)
}

func TestIngestDuplicateDeliveryIsIgnored(t *testing.T) {
	svc, store := newTestWebhookService()

	_, err := svc.Ingest(context.Background(), "billingd", paymentFailedBody("evt_1", "in_100"), true)
	require.NoError(t, err)

	res, err := svc.Ingest(context.Background(), "billingd", paymentFailedBody("evt_1", "in_100"), true)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Len(t, store.cases, 1)
	assert.Len(t, store.signals, 1)
}

func TestIngestInvoicePaidRecoversAndCredits(t *testing.T) {
	svc, store := newTestWebhookService()

	_, err := svc.Ingest(context.Background(), "billingd", paymentFailedBody("evt_1", "in_100"), true)
	require.NoError(t, err)

	res, err := svc.Ingest(context.Background(), "billingd", invoicePaidBody("evt_2", "in_100"), true)
	require.NoError(t, err)
	require.NotNil(t, res.Event.ProcessedAt)
	assert.Empty(t, res.Event.ProcessingError)

	for _, rc := range store.cases {
		assert.Equal(t, models.CaseRecovered, rc.Status)
	}
	require.Len(t, store.entries, 1)
	for _, entry := range store.entries {
		assert.Equal(t, "evt_2", entry.SourceEventID)
		assert.Equal(t, int64(4900), entry.AmountRecovered)
	}
}

func TestIngestInvoicePaidWithoutCaseIsBenign(t *testing.T) {
	svc, store := newTestWebhookService()

	res, err := svc.Ingest(context.Background(), "billingd", invoicePaidBody("evt_9", "in_unknown"), true)
	require.NoError(t, err)
	require.NotNil(t, res.Event.ProcessedAt)
	assert.Empty(t, res.Event.ProcessingError)
	assert.Empty(t, store.entries)
}

func TestIngestUnknownCustomerRecordsProcessingError(t *testing.T) {
	svc, store := newTestWebhookService()
	body := []byte(`{"id":"evt_5","type":"payment_failed","data":{"customer":"cus_ghost","invoice":"in_1"}}`)

	res, err := svc.Ingest(context.Background(), "billingd", body, true)
	require.NoError(t, err)
	require.NotNil(t, res.Event.ProcessedAt)
	assert.Contains(t, res.Event.ProcessingError, "unknown customer")
	assert.Empty(t, store.cases)
}

func TestIngestSubscriptionUpdated(t *testing.T) {
	svc, store := newTestWebhookService()
	body := []byte(`{
		"id": "evt_7",
		"type": "subscription_updated",
		"data": {"customer": "cus_1", "subscription": "sub_1", "status": "past_due", "amount": 1900, "currency": "eur"}
	}`)

	res, err := svc.Ingest(context.Background(), "billingd", body, true)
	require.NoError(t, err)
	assert.Empty(t, res.Event.ProcessingError)

	require.Contains(t, store.subs, "sub_1")
	assert.Equal(t, models.SubscriptionStatusPastDue, store.subs["sub_1"].Status)
	assert.Equal(t, "EUR", store.subs["sub_1"].Currency)
	require.Len(t, store.signals, 1)
	assert.Equal(t, models.SignalPastDue, store.signals[0].EventType)
	// past_due subscription plus a fresh past_due signal
	assert.Equal(t, 40, store.snapshots[11].Score)
}

func TestIngestRejectsGarbage(t *testing.T) {
	svc, _ := newTestWebhookService()
	_, err := svc.Ingest(context.Background(), "billingd", []byte("not json"), false)
	require.ErrorIs(t, err, faults.ErrValidation)

	_, err = svc.Ingest(context.Background(), "", []byte(`{"type":"x"}`), false)
	require.ErrorIs(t, err, faults.ErrValidation)
}

func TestIngestUnhandledTypeIsMarkedProcessed(t *testing.T) {
	svc, _ := newTestWebhookService()
	res, err := svc.Ingest(context.Background(), "billingd", []byte(`{"id":"evt_x","type":"customer_updated","data":{}}`), true)
	require.NoError(t, err)
	require.NotNil(t, res.Event.ProcessedAt)
	assert.Empty(t, res.Event.ProcessingError)
}
