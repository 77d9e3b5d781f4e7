package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifybridge/pipeline/internal/apperrors"
	"github.com/notifybridge/pipeline/internal/notifypipe"
)

func TestPostgresRepository_Record_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	attempt := notifypipe.DeliveryAttempt{
		SubmissionID:      "sub-1",
		RecipientID:       "r-1",
		Channel:           notifypipe.ChannelEmail,
		Status:            notifypipe.AttemptSent,
		ProviderMessageID: "provider-1",
		RetryCount:        0,
		AttemptAt:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec("INSERT INTO delivery_attempts").
		WithArgs(attempt.SubmissionID, attempt.RecipientID, "email", "sent",
			"provider-1", nil, 0, nil, attempt.AttemptAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewPostgresRepository(db)
	require.NoError(t, repo.Record(context.Background(), attempt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Record_DefaultsAttemptAt(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("INSERT INTO delivery_attempts").
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewPostgresRepository(db)
	err = repo.Record(context.Background(), notifypipe.DeliveryAttempt{
		SubmissionID: "sub-2",
		RecipientID:  "r-2",
		Channel:      notifypipe.ChannelPush,
		Status:       notifypipe.AttemptFailed,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Record_WrapsDBError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("INSERT INTO delivery_attempts").
		WillReturnError(errors.New("connection reset"))

	repo := NewPostgresRepository(db)
	recordErr := repo.Record(context.Background(), notifypipe.DeliveryAttempt{
		SubmissionID: "sub-3",
		RecipientID:  "r-3",
		Channel:      notifypipe.ChannelEmail,
		Status:       notifypipe.AttemptFailed,
	})

	require.Error(t, recordErr)
	assert.True(t, apperrors.Is(recordErr, apperrors.KindAuditWriteError))
}

func TestPostgresRepository_FindStaleSubmissions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{"submission_id"}).
		AddRow("sub-1").
		AddRow("sub-2")
	mock.ExpectQuery("SELECT DISTINCT submission_id").
		WithArgs(24).
		WillReturnRows(rows)

	repo := NewPostgresRepository(db)
	ids, err := repo.FindStaleSubmissions(context.Background(), 24)

	require.NoError(t, err)
	assert.Equal(t, []string{"sub-1", "sub-2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_FindStaleSubmissions_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT DISTINCT submission_id").
		WillReturnError(errors.New("query timeout"))

	repo := NewPostgresRepository(db)
	_, err = repo.FindStaleSubmissions(context.Background(), 48)

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindAuditWriteError))
}

func TestNullableHelpers(t *testing.T) {
	assert.Nil(t, nullableString(""))
	assert.Equal(t, "x", nullableString("x"))
	assert.Nil(t, nullableInt(0))
	assert.Equal(t, 7, nullableInt(7))
}
