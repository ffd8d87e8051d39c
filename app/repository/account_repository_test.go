package repository

import (
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	return db, mock
}

func TestGetByAPIKeyHashFiltersRevokedKeys(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db)

	rows := sqlmock.NewRows([]string{"id", "email", "api_key_hash"}).
		AddRow(7, "owner@example.com", "abc123")
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT * FROM `accounts` WHERE (api_key_hash = ? AND api_key_hash != '' AND api_key_revoked_at IS NULL) AND `accounts`.`deleted_at` IS NULL ORDER BY `accounts`.`id` LIMIT ?")).
		WithArgs("abc123", 1).
		WillReturnRows(rows)

	account, err := repo.GetByAPIKeyHash("abc123")
	require.NoError(t, err)
	assert.Equal(t, uint(7), account.ID)
	assert.Equal(t, "owner@example.com", account.Email)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLastLogin(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db)

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE `accounts` SET `last_login_at`=?,`updated_at`=? WHERE id = ? AND `accounts`.`deleted_at` IS NULL")).
		WithArgs(at, sqlmock.AnyArg(), 42).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.UpdateLastLogin(42, at))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCount(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT count(*) FROM `accounts` WHERE `accounts`.`deleted_at` IS NULL")).
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(3))

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	require.NoError(t, mock.ExpectationsWereMet())
}
