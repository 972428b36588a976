package customers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Qurbani-app-backend/hissa"
)

type execCall struct {
	sql  string
	args []any
}

type recordingDB struct {
	calls []execCall
	err   error
	tag   string
	row   pgx.Row
}

func (r *recordingDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.calls = append(r.calls, execCall{sql, args})
	tag := r.tag
	if tag == "" {
		tag = "INSERT 0 1"
	}
	return pgconn.NewCommandTag(tag), r.err
}

func (r *recordingDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (r *recordingDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return r.row
}

// ledgerRow scans an owner and completed flag.
type ledgerRow struct {
	owner     string
	completed bool
}

func (l ledgerRow) Scan(dest ...any) error {
	*dest[0].(*string) = l.owner
	*dest[1].(*bool) = l.completed
	return nil
}

func TestStoreCreateRecord(t *testing.T) {
	rec := &recordingDB{}
	phone := "9820000000"
	err := Store{DB: rec}.CreateRecord(context.Background(), hissa.Record{
		SubmissionID:   "sub-1",
		IdempotencyKey: "sub-1:3:0",
		Receipt:        "R-77",
		Name:           "Bilal",
		Phone:          &phone,
		Type:           hissa.AqeeqahBoy,
		Region:         hissa.Mumbai,
		UserName:       "Imran",
		AreaName:       "Kurla West",
		ZoneName:       "Central",
	})
	require.NoError(t, err)
	require.Len(t, rec.calls, 1)

	call := rec.calls[0]
	assert.Contains(t, call.sql, "ON CONFLICT (idempotency_key) DO UPDATE")
	assert.Contains(t, call.sql, "name = EXCLUDED.name")
	assert.Equal(t, strings.Count(call.sql, "$"), len(call.args))
	assert.Equal(t, "sub-1", call.args[0])
	assert.Equal(t, "sub-1:3:0", call.args[1])
	assert.Equal(t, "R-77", call.args[2])
	assert.Equal(t, hissa.AqeeqahBoy, call.args[5])
	assert.Equal(t, hissa.Mumbai, call.args[6])
	assert.Equal(t, false, call.args[12])
}

func TestStorePrune(t *testing.T) {
	rec := &recordingDB{}
	keep := []string{"sub-1:1:0", "sub-1:3:0"}
	require.NoError(t, Store{DB: rec}.Prune(context.Background(), "sub-1", "Imran", keep))

	require.Len(t, rec.calls, 1)
	sql := rec.calls[0].sql
	assert.Contains(t, sql, "DELETE FROM customers")
	assert.Contains(t, sql, "user_name = $2")
	assert.Contains(t, sql, "status = FALSE AND payment_status = FALSE")
	assert.Equal(t, []any{"sub-1", "Imran", keep}, rec.calls[0].args)
}

func TestStoreCreateRecordLeavesLockedRows(t *testing.T) {
	rec := &recordingDB{tag: "INSERT 0 0"}
	err := Store{DB: rec}.CreateRecord(context.Background(), hissa.Record{IdempotencyKey: "sub-1:1:0", UserName: "Imran"})
	assert.ErrorIs(t, err, ErrRecordLocked)
	assert.Contains(t, rec.calls[0].sql, "WHERE customers.user_name = EXCLUDED.user_name")
}

func TestStoreOpenSubmission(t *testing.T) {
	tests := []struct {
		name string
		row  ledgerRow
		err  error
	}{
		{name: "new or open for the same collector", row: ledgerRow{owner: "Imran"}},
		{name: "completed", row: ledgerRow{owner: "Imran", completed: true}, err: hissa.ErrSubmissionClosed},
		{name: "another collector", row: ledgerRow{owner: "Yusuf"}, err: hissa.ErrSubmissionClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingDB{row: tt.row}
			err := Store{DB: rec}.OpenSubmission(context.Background(), "sub-1", "Imran")
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			} else {
				assert.NoError(t, err)
			}
			require.Len(t, rec.calls, 1)
			assert.Contains(t, rec.calls[0].sql, "INSERT INTO share_submissions")
		})
	}
}

func TestStoreCompleteSubmission(t *testing.T) {
	rec := &recordingDB{}
	require.NoError(t, Store{DB: rec}.CompleteSubmission(context.Background(), "sub-1"))
	assert.Contains(t, rec.calls[0].sql, "completed_at = NOW()")
	assert.Equal(t, []any{"sub-1"}, rec.calls[0].args)
}

func TestStoreCreateRecordError(t *testing.T) {
	boom := errors.New("connection reset")
	err := Store{DB: &recordingDB{err: boom}}.CreateRecord(context.Background(), hissa.Record{IdempotencyKey: "k"})
	assert.ErrorIs(t, err, boom)
}

func TestStoreSatisfiesRecordCreator(t *testing.T) {
	var _ hissa.RecordCreator = Store{}
	var _ hissa.Pruner = Store{}
	var _ hissa.Ledger = Store{}
}
