package history

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestSaveDispatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &PostgresStore{DB: db}
	rec := Record{
		ID:             "d-1",
		Request:        "Translate this",
		Aggregate:      json.RawMessage(`{"translate":{"agent":"translator","action":"translate","translated_text":"Hello"}}`),
		FormattedText:  "Hello",
		ProcessingTime: 1500 * time.Millisecond,
		CreatedAt:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec(regexp.QuoteMeta(insertDispatchQuery)).
		WithArgs(rec.ID, rec.Request, []byte(rec.Aggregate), rec.FormattedText, int64(1500), rec.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := st.SaveDispatch(context.Background(), rec); err != nil {
		t.Fatalf("SaveDispatch: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveDispatchDefaultsCreatedAt(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &PostgresStore{DB: db}
	mock.ExpectExec(regexp.QuoteMeta(insertDispatchQuery)).
		WithArgs("d-2", "req", []byte(nil), "", int64(0), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := st.SaveDispatch(context.Background(), Record{ID: "d-2", Request: "req"}); err != nil {
		t.Fatalf("SaveDispatch: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecentDispatches(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "request", "aggregate", "formatted_text", "processing_time_ms", "created_at"}).
		AddRow("d-1", "req", []byte(`{}`), "text", int64(250), created)
	mock.ExpectQuery(regexp.QuoteMeta(recentDispatchesQuery)).
		WithArgs(10).
		WillReturnRows(rows)

	st := &PostgresStore{DB: db}
	recs, err := st.RecentDispatches(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentDispatches: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].ProcessingTime != 250*time.Millisecond {
		t.Fatalf("processing time not restored: %v", recs[0].ProcessingTime)
	}
	if !recs[0].CreatedAt.Equal(created) {
		t.Fatalf("created_at mismatch: %v", recs[0].CreatedAt)
	}
}
