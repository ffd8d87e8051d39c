package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/MarekWeber/RevRescue/app/models"
	"github.com/MarekWeber/RevRescue/internal/pkg/faults"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeLedgerRepo struct {
	cases   map[uint]*models.RecoveryCase
	entries map[string]*models.LedgerEntry
}

func newFakeLedgerRepo() *fakeLedgerRepo {
	return &fakeLedgerRepo{
		cases:   make(map[uint]*models.RecoveryCase),
		entries: make(map[string]*models.LedgerEntry),
	}
}

func entryKey(caseID uint, sourceEventID string) string {
	return fmt.Sprintf("%d|%s", caseID, sourceEventID)
}

func (f *fakeLedgerRepo) CreateEntryIfNotExists(entry *models.LedgerEntry) (bool, *models.LedgerEntry, error) {
	key := entryKey(entry.RecoveryCaseID, entry.SourceEventID)
	if existing, ok := f.entries[key]; ok {
		return false, existing, nil
	}
	entry.ID = uint(len(f.entries) + 1)
	f.entries[key] = entry
	return true, entry, nil
}

func (f *fakeLedgerRepo) GetCase(caseID uint) (*models.RecoveryCase, error) {
	rc, ok := f.cases[caseID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return rc, nil
}

func (f *fakeLedgerRepo) ListEntriesByAccount(accountID uint, limit int) ([]models.LedgerEntry, error) {
	var out []models.LedgerEntry
	for _, e := range f.entries {
		if e.OwnerAccountID == accountID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeLedgerRepo) ListEntriesSince(since time.Time) ([]models.LedgerEntry, error) {
	var out []models.LedgerEntry
	for _, e := range f.entries {
		if e.RecoveredAt.After(since) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeLedgerRepo) SumRecoveredByAccount(accountID uint) (int64, error) {
	var total int64
	for _, e := range f.entries {
		if e.OwnerAccountID == accountID {
			total += e.AmountRecovered
		}
	}
	return total, nil
}

func recoveredCase(id uint) *models.RecoveryCase {
	return &models.RecoveryCase{
		ID:               id,
		OwnerAccountID:   42,
		InvoiceReference: "in_100",
		AmountAtRisk:     4900,
		Currency:         "USD",
		Status:           models.CaseRecovered,
	}
}

func TestRecordCreatesEntryOnce(t *testing.T) {
	repo := newFakeLedgerRepo()
	repo.cases[1] = recoveredCase(1)
	svc := NewService(repo)

	in := RecordInput{CaseID: 1, SourceEventID: "evt_1", AmountRecovered: 4900, Currency: "usd"}

	first, err := svc.Record(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, "USD", first.Entry.Currency)
	assert.Equal(t, uint(42), first.Entry.OwnerAccountID)
	assert.Equal(t, "in_100", first.Entry.InvoiceReference)

	// Duplicate delivery of the same source event must not create a second
	// entry and must not be reported as an error.
	second, err := svc.Record(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Entry.ID, second.Entry.ID)
	assert.Len(t, repo.entries, 1)
}

func TestRecordDistinctSourceEventsStack(t *testing.T) {
	repo := newFakeLedgerRepo()
	repo.cases[1] = recoveredCase(1)
	svc := NewService(repo)

	_, err := svc.Record(context.Background(), RecordInput{CaseID: 1, SourceEventID: "evt_1", AmountRecovered: 100})
	require.NoError(t, err)
	_, err = svc.Record(context.Background(), RecordInput{CaseID: 1, SourceEventID: "evt_2", AmountRecovered: 200})
	require.NoError(t, err)

	total, err := svc.TotalRecovered(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(300), total)
}

func TestRecordRejectsNonRecoveredCase(t *testing.T) {
	repo := newFakeLedgerRepo()
	repo.cases[1] = recoveredCase(1)
	repo.cases[1].Status = models.CaseOpen
	svc := NewService(repo)

	_, err := svc.Record(context.Background(), RecordInput{CaseID: 1, SourceEventID: "evt_1"})
	require.ErrorIs(t, err, faults.ErrInvalidTransition)
	assert.Empty(t, repo.entries)
}

func TestRecordValidation(t *testing.T) {
	svc := NewService(newFakeLedgerRepo())

	_, err := svc.Record(context.Background(), RecordInput{SourceEventID: "evt_1"})
	require.ErrorIs(t, err, faults.ErrValidation)

	_, err = svc.Record(context.Background(), RecordInput{CaseID: 1, SourceEventID: "  "})
	require.ErrorIs(t, err, faults.ErrValidation)

	_, err = svc.Record(context.Background(), RecordInput{CaseID: 1, SourceEventID: "evt_1", AmountRecovered: -5})
	require.ErrorIs(t, err, faults.ErrValidation)
}

func TestRecordUnknownCase(t *testing.T) {
	svc := NewService(newFakeLedgerRepo())
	_, err := svc.Record(context.Background(), RecordInput{CaseID: 9, SourceEventID: "evt_1"})
	require.ErrorIs(t, err, faults.ErrNotFound)
}
