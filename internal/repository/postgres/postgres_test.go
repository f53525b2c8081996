package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beaconpage/lifecycle-engine/internal/automation"
	"github.com/beaconpage/lifecycle-engine/internal/domain"
	"github.com/beaconpage/lifecycle-engine/internal/segments"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	}
}

var repoNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func TestSegmentRepoGetNotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT (.+) FROM segments").
		WithArgs("seg-1", "p-1").
		WillReturnError(sql.ErrNoRows)

	repo := NewSegmentRepo(db)
	_, err := repo.Get(context.Background(), "p-1", "seg-1")
	assert.ErrorIs(t, err, segments.ErrNotFound)
}

func TestSegmentRepoGetDecodesCriteria(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	criteria := []byte(`{"match":"all","rules":[{"field":"is_vip","operator":"eq","value":{"bool":true}}]}`)
	actions := []byte(`[{"action_type":"send_coupon","coupon_id":"c-1"}]`)

	rows := sqlmock.NewRows([]string{
		"id", "profile_id", "name", "description", "type",
		"criteria", "color", "icon", "auto_actions",
		"customer_count", "is_active", "created_at", "updated_at",
	}).AddRow("seg-1", "p-1", "VIP", "Top customers", "system",
		criteria, "#eab308", "crown", actions, 7, true, repoNow, repoNow)

	mock.ExpectQuery("SELECT (.+) FROM segments").
		WithArgs("seg-1", "p-1").
		WillReturnRows(rows)

	repo := NewSegmentRepo(db)
	s, err := repo.Get(context.Background(), "p-1", "seg-1")
	require.NoError(t, err)

	assert.Equal(t, domain.SegmentSystem, s.Type)
	require.Len(t, s.Criteria.Rules, 1)
	assert.Equal(t, "is_vip", s.Criteria.Rules[0].Field)
	require.Len(t, s.AutoActions, 1)
	assert.Equal(t, "c-1", s.AutoActions[0].CouponID)
	assert.Equal(t, 7, s.CustomerCount)
}

func TestSegmentRepoUpdateNotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("UPDATE segments SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewSegmentRepo(db)
	name := "Renamed"
	err := repo.Update(context.Background(), "p-1", "seg-gone", segments.UpdateFields{Name: &name})
	assert.ErrorIs(t, err, segments.ErrNotFound)
}

func TestSegmentRepoUpdateNoFieldsIsNoop(t *testing.T) {
	db, _, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewSegmentRepo(db)
	assert.NoError(t, repo.Update(context.Background(), "p-1", "seg-1", segments.UpdateFields{}))
}

func TestCustomerRepoFetchExtrasEmpty(t *testing.T) {
	db, _, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewCustomerRepo(db)
	out, err := repo.FetchExtras(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCustomerRepoFetchExtras(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"id", "has_referrals", "has_stamps"}).
		AddRow("c-1", true, false).
		AddRow("c-2", false, true)

	mock.ExpectQuery("SELECT c.id").WillReturnRows(rows)

	repo := NewCustomerRepo(db)
	out, err := repo.FetchExtras(context.Background(), []string{"c-1", "c-2", "c-3"})
	require.NoError(t, err)

	assert.Equal(t, domain.CustomerExtras{HasReferrals: true}, out["c-1"])
	assert.Equal(t, domain.CustomerExtras{HasStamps: true}, out["c-2"])
	_, present := out["c-3"]
	assert.False(t, present, "missing rows read as all-false extras")
}

func TestRuleRepoGetNotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT (.+) FROM automation_rules").
		WithArgs("r-1", "p-1").
		WillReturnError(sql.ErrNoRows)

	repo := NewRuleRepo(db)
	_, err := repo.Get(context.Background(), "p-1", "r-1")
	assert.ErrorIs(t, err, automation.ErrRuleNotFound)
}

func TestLogRepoClaimDue(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{
		"id", "rule_id", "customer_id", "profile_id", "status",
		"scheduled_at", "sent_at", "error", "created_at",
	}).
		AddRow("l-1", "r-1", "c-1", "p-1", "processing", repoNow.Add(-2*time.Hour), nil, "", repoNow.Add(-2*time.Hour)).
		AddRow("l-2", "r-1", "c-2", "p-1", "processing", repoNow.Add(-time.Hour), nil, "", repoNow.Add(-time.Hour))

	mock.ExpectQuery("UPDATE automation_logs").
		WithArgs(repoNow, 50).
		WillReturnRows(rows)

	repo := NewLogRepo(db)
	claimed, err := repo.ClaimDue(context.Background(), repoNow, 50)
	require.NoError(t, err)

	require.Len(t, claimed, 2)
	assert.Equal(t, "l-1", claimed[0].ID, "oldest due first")
	assert.Equal(t, domain.LogProcessing, claimed[0].Status)
	assert.Nil(t, claimed[0].SentAt)
}

func TestLogRepoFinish(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	sentAt := repoNow
	mock.ExpectExec("UPDATE automation_logs").
		WithArgs("sent", sentAt, "", "l-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewLogRepo(db)
	require.NoError(t, repo.Finish(context.Background(), "l-1", domain.LogSent, &sentAt, ""))
}

func TestLogRepoFinishRequiresClaim(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("UPDATE automation_logs").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewLogRepo(db)
	err := repo.Finish(context.Background(), "l-unclaimed", domain.LogFailed, nil, "send failed")
	assert.Error(t, err)
}
