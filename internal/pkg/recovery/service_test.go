package recovery

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/MarekWeber/RevRescue/app/models"
	"github.com/MarekWeber/RevRescue/internal/pkg/faults"
	"github.com/MarekWeber/RevRescue/internal/pkg/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var svcNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeCaseRepo struct {
	cases      map[uint]*models.RecoveryCase
	nextID     uint
	beforeMark func(f *fakeCaseRepo)
}

func newFakeCaseRepo() *fakeCaseRepo {
	return &fakeCaseRepo{cases: make(map[uint]*models.RecoveryCase)}
}

func (f *fakeCaseRepo) CreateCaseIfNotExists(rc *models.RecoveryCase) (bool, *models.RecoveryCase, error) {
	for _, existing := range f.cases {
		if existing.OpenInvoiceKey != nil && rc.OpenInvoiceKey != nil && *existing.OpenInvoiceKey == *rc.OpenInvoiceKey {
			return false, existing, nil
		}
	}
	f.nextID++
	rc.ID = f.nextID
	f.cases[rc.ID] = rc
	return true, rc, nil
}

func (f *fakeCaseRepo) GetByID(id uint) (*models.RecoveryCase, error) {
	rc, ok := f.cases[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return rc, nil
}

func (f *fakeCaseRepo) GetByPublicID(publicID string) (*models.RecoveryCase, error) {
	for _, rc := range f.cases {
		if rc.PublicID == publicID {
			return rc, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeCaseRepo) GetLatestByInvoice(ownerAccountID uint, invoiceReference string) (*models.RecoveryCase, error) {
	var latest *models.RecoveryCase
	for _, rc := range f.cases {
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

func (f *fakeCaseRepo) MarkRecovered(id uint, now time.Time) (bool, error) {
	if f.beforeMark != nil {
		f.beforeMark(f)
		f.beforeMark = nil
	}
	rc, ok := f.cases[id]
	if !ok || rc.Status != models.CaseOpen || !rc.DeadlineAt.After(now) {
		return false, nil
	}
	resolved := now
	rc.Status = models.CaseRecovered
	rc.ResolvedAt = &resolved
	rc.OpenInvoiceKey = nil
	return true, nil
}

func (f *fakeCaseRepo) MarkFirstAction(id uint, now time.Time) error {
	rc, ok := f.cases[id]
	if ok && rc.FirstActionAt == nil {
		stamp := now
		rc.FirstActionAt = &stamp
	}
	return nil
}

func (f *fakeCaseRepo) ExpireDue(now time.Time) (int64, error) {
	var expired int64
	for _, rc := range f.cases {
		if rc.Status == models.CaseOpen && !rc.DeadlineAt.After(now) {
			resolved := now
			rc.Status = models.CaseExpired
			rc.ResolvedAt = &resolved
			rc.OpenInvoiceKey = nil
			expired++
		}
	}
	return expired, nil
}

func (f *fakeCaseRepo) ListOpen(limit int) ([]models.RecoveryCase, error) {
	var out []models.RecoveryCase
	for _, rc := range f.cases {
		if rc.Status == models.CaseOpen {
			out = append(out, *rc)
		}
	}
	return out, nil
}

func (f *fakeCaseRepo) ListByOwner(ownerAccountID uint, limit int) ([]models.RecoveryCase, error) {
	var out []models.RecoveryCase
	for _, rc := range f.cases {
		if rc.OwnerAccountID == ownerAccountID {
			out = append(out, *rc)
		}
	}
	return out, nil
}

type fakeLedgerStore struct {
	cases   map[uint]*models.RecoveryCase
	entries map[string]*models.LedgerEntry
}

func (f *fakeLedgerStore) CreateEntryIfNotExists(entry *models.LedgerEntry) (bool, *models.LedgerEntry, error) {
	key := fmt.Sprintf("%d|%s", entry.RecoveryCaseID, entry.SourceEventID)
	if existing, ok := f.entries[key]; ok {
		return false, existing, nil
	}
	entry.ID = uint(len(f.entries) + 1)
	f.entries[key] = entry
	return true, entry, nil
}

func (f *fakeLedgerStore) GetCase(caseID uint) (*models.RecoveryCase, error) {
	rc, ok := f.cases[caseID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return rc, nil
}

func (f *fakeLedgerStore) ListEntriesByAccount(accountID uint, limit int) ([]models.LedgerEntry, error) {
	return nil, nil
}

func (f *fakeLedgerStore) ListEntriesSince(since time.Time) ([]models.LedgerEntry, error) {
	return nil, nil
}

func (f *fakeLedgerStore) SumRecoveredByAccount(accountID uint) (int64, error) {
	return 0, nil
}

func newTestService() (*Service, *fakeCaseRepo, *fakeLedgerStore) {
	repo := newFakeCaseRepo()
	store := &fakeLedgerStore{cases: repo.cases, entries: make(map[string]*models.LedgerEntry)}
	svc := NewService(repo, ledger.NewService(store)).WithClock(func() time.Time { return svcNow })
	return svc, repo, store
}

func mustOpen(t *testing.T, svc *Service, invoice string) *models.RecoveryCase {
	t.Helper()
	res, err := svc.OpenCase(context.Background(), OpenCaseInput{
		OwnerAccountID:   1,
		InvoiceReference: invoice,
		AmountAtRisk:     4900,
		Currency:         "usd",
		FailureCode:      "expired_card",
	})
	require.NoError(t, err)
	require.True(t, res.Created)
	return res.Case
}

func TestOpenCaseSetsDeadlineAndReason(t *testing.T) {
	svc, _, _ := newTestService()
	rc := mustOpen(t, svc, "in_100")

	assert.Equal(t, models.CaseOpen, rc.Status)
	assert.Equal(t, models.ReasonCardExpired, rc.ChurnReason)
	assert.Equal(t, svcNow.Add(models.CaseDeadline), rc.DeadlineAt)
	assert.Equal(t, "USD", rc.Currency)
	require.NotNil(t, rc.OpenInvoiceKey)
	assert.Equal(t, "1:in_100", *rc.OpenInvoiceKey)
	assert.NotEmpty(t, rc.PublicID)
}

func TestOpenCaseRedeliveryReturnsExistingCase(t *testing.T) {
	svc, repo, _ := newTestService()
	first := mustOpen(t, svc, "in_100")

	res, err := svc.OpenCase(context.Background(), OpenCaseInput{
		OwnerAccountID:   1,
		InvoiceReference: "in_100",
		AmountAtRisk:     4900,
	})
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, first.ID, res.Case.ID)
	assert.Len(t, repo.cases, 1)
}

func TestOpenCaseValidation(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.OpenCase(context.Background(), OpenCaseInput{InvoiceReference: "in_1"})
	require.ErrorIs(t, err, faults.ErrValidation)

	_, err = svc.OpenCase(context.Background(), OpenCaseInput{OwnerAccountID: 1, InvoiceReference: " "})
	require.ErrorIs(t, err, faults.ErrValidation)
}

func TestRecoverFromPaymentHappyPath(t *testing.T) {
	svc, _, store := newTestService()
	rc := mustOpen(t, svc, "in_100")

	out, err := svc.RecoverFromPayment(context.Background(), 1, "in_100", "evt_paid_1", 4900, "USD")
	require.NoError(t, err)
	assert.False(t, out.AlreadyResolved)
	assert.True(t, out.LedgerCreated)
	assert.Equal(t, models.CaseRecovered, out.Case.Status)
	assert.Nil(t, out.Case.OpenInvoiceKey)
	require.NotNil(t, out.Case.ResolvedAt)
	assert.Len(t, store.entries, 1)
	_ = rc
}

func TestRecoverFromPaymentReplayIsBenign(t *testing.T) {
	svc, _, store := newTestService()
	mustOpen(t, svc, "in_100")

	_, err := svc.RecoverFromPayment(context.Background(), 1, "in_100", "evt_paid_1", 4900, "USD")
	require.NoError(t, err)

	out, err := svc.RecoverFromPayment(context.Background(), 1, "in_100", "evt_paid_1", 4900, "USD")
	require.NoError(t, err)
	assert.True(t, out.AlreadyResolved)
	assert.False(t, out.LedgerCreated)
	assert.Len(t, store.entries, 1)
}

func TestRecoverFromPaymentAfterDeadline(t *testing.T) {
	svc, repo, store := newTestService()
	rc := mustOpen(t, svc, "in_100")
	repo.cases[rc.ID].DeadlineAt = svcNow.Add(-time.Minute)

	_, err := svc.RecoverFromPayment(context.Background(), 1, "in_100", "evt_paid_1", 4900, "USD")
	require.ErrorIs(t, err, faults.ErrInvalidTransition)
	assert.Empty(t, store.entries)
	// The stored row is still open; only the sweep materializes expiry.
	assert.Equal(t, models.CaseOpen, repo.cases[rc.ID].Status)
}

func TestRecoverFromPaymentUnknownInvoice(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.RecoverFromPayment(context.Background(), 1, "in_missing", "evt_1", 100, "USD")
	require.ErrorIs(t, err, faults.ErrNotFound)
}

func TestRecoverLostRaceReportsAlreadyResolved(t *testing.T) {
	svc, repo, store := newTestService()
	rc := mustOpen(t, svc, "in_100")

	// Another writer wins between the load and the conditional update.
	repo.beforeMark = func(f *fakeCaseRepo) {
		resolved := svcNow
		f.cases[rc.ID].Status = models.CaseRecovered
		f.cases[rc.ID].ResolvedAt = &resolved
		f.cases[rc.ID].OpenInvoiceKey = nil
	}

	out, err := svc.RecoverFromPayment(context.Background(), 1, "in_100", "evt_paid_2", 4900, "USD")
	require.NoError(t, err)
	assert.True(t, out.AlreadyResolved)
	// A distinct source event still credits the ledger exactly once.
	assert.Len(t, store.entries, 1)
}

func TestSimulateRecovery(t *testing.T) {
	svc, _, store := newTestService()
	rc := mustOpen(t, svc, "in_100")

	out, err := svc.SimulateRecovery(context.Background(), rc.PublicID)
	require.NoError(t, err)
	assert.False(t, out.AlreadyResolved)
	assert.True(t, out.LedgerCreated)
	assert.Equal(t, models.CaseRecovered, out.Case.Status)
	assert.Len(t, store.entries, 1)
	for _, entry := range store.entries {
		assert.Equal(t, int64(4900), entry.AmountRecovered)
		assert.Contains(t, entry.SourceEventID, "sim:")
	}
}

func TestSimulateRecoveryRepeatWritesNothing(t *testing.T) {
	svc, _, store := newTestService()
	rc := mustOpen(t, svc, "in_100")

	_, err := svc.SimulateRecovery(context.Background(), rc.PublicID)
	require.NoError(t, err)

	out, err := svc.SimulateRecovery(context.Background(), rc.PublicID)
	require.NoError(t, err)
	assert.True(t, out.AlreadyResolved)
	assert.False(t, out.LedgerCreated)
	assert.Len(t, store.entries, 1)
}

func TestExpireSweep(t *testing.T) {
	svc, repo, _ := newTestService()
	due := mustOpen(t, svc, "in_due")
	repo.cases[due.ID].DeadlineAt = svcNow.Add(-time.Hour)
	live := mustOpen(t, svc, "in_live")

	expired, err := svc.ExpireSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)
	assert.Equal(t, models.CaseExpired, repo.cases[due.ID].Status)
	assert.Nil(t, repo.cases[due.ID].OpenInvoiceKey)
	assert.Equal(t, models.CaseOpen, repo.cases[live.ID].Status)
}

func TestRecordFirstActionIsSetOnce(t *testing.T) {
	svc, repo, _ := newTestService()
	rc := mustOpen(t, svc, "in_100")

	require.NoError(t, svc.RecordFirstAction(context.Background(), rc.ID))
	first := repo.cases[rc.ID].FirstActionAt
	require.NotNil(t, first)

	require.NoError(t, svc.RecordFirstAction(context.Background(), rc.ID))
	assert.Equal(t, first, repo.cases[rc.ID].FirstActionAt)
}
