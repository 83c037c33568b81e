package store

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Nkennyelvis/momo-sms-data-processor-codecrafters/internal/model"
)

func TestLoadBatchRollsBackOnStorageFault(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := New(db, zap.NewNop().Sugar())

	boom := errors.New("disk I/O error")
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("tx_1").
		WillReturnError(boom)
	mock.ExpectRollback()

	result, err := s.LoadBatch([]model.Transaction{
		testTx("tx_1", "+256701111111", "100"),
		testTx("tx_2", "+256702222222", "200"),
	}, "run_a")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, LoadResult{}, result, "a faulted batch reports nothing loaded")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadBatchContinuesPastRecordFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := New(db, zap.NewNop().Sugar())

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("tx_1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`INSERT INTO transactions`).
		WillReturnError(errors.New("CHECK constraint failed: amount > 0"))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("tx_2").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`INSERT INTO transactions`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	result, err := s.LoadBatch([]model.Transaction{
		testTx("tx_1", "+256701111111", "100"),
		testTx("tx_2", "+256702222222", "200"),
	}, "run_a")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Loaded)
	assert.Equal(t, 1, result.Failed)

	require.NoError(t, mock.ExpectationsWereMet())
}
