package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/dropcode/dropcode/internal/domain"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "postgres")), mock
}

var recordColumns = []string{
	"id", "share_code", "file_name", "file_size", "file_type", "file_data",
	"password_hash", "has_password", "uploaded_at", "expires_at", "created_at",
	"download_count", "max_downloads",
}

func TestCreateInsertsRow(t *testing.T) {
	st, mock := newMockStore(t)
	now := time.Unix(1700000000, 0).UTC()
	rec := &domain.ShareRecord{
		ID: "id1", ShareCode: "ABC12345", FileName: "f.txt", FileSize: 5,
		FileType: "text/plain", Payload: "data:text/plain;base64,aGVsbG8=",
		UploadedAt: now, ExpiresAt: now.Add(time.Hour), MaxDownloads: 100,
	}
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO shared_files`)).
		WithArgs(rec.ID, rec.ShareCode, rec.FileName, rec.FileSize, rec.FileType, rec.Payload,
			nil, false, now, now.Add(time.Hour), now, 0, 100).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := st.Create(context.Background(), rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateDuplicateCode(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO shared_files`)).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "shared_files_share_code_key"})
	err := st.Create(context.Background(), &domain.ShareRecord{ShareCode: "DUPE1234"})
	if !errors.Is(err, domain.ErrDuplicateCode) {
		t.Fatalf("expected ErrDuplicateCode, got %v", err)
	}
}

func TestCreateNetworkFailure(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO shared_files`)).
		WillReturnError(errors.New("connection refused"))
	err := st.Create(context.Background(), &domain.ShareRecord{ShareCode: "NET12345"})
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestGetByCode(t *testing.T) {
	st, mock := newMockStore(t)
	now := time.Unix(1700000000, 0).UTC()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM shared_files WHERE share_code = $1`)).
		WithArgs("ABC12345").
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow("id1", "ABC12345", "f.txt", 5, "text/plain", "data:text/plain;base64,aGVsbG8=",
				"$2a$10$digest", true, now, now.Add(time.Hour), now, 2, 10))
	rec, err := st.GetByCode(context.Background(), "ABC12345")
	if err != nil {
		t.Fatalf("GetByCode: %v", err)
	}
	if rec.ShareCode != "ABC12345" || !rec.HasPassword || rec.PasswordDigest != "$2a$10$digest" {
		t.Fatalf("record mismatch: %+v", rec)
	}
	if rec.DownloadCount != 2 || rec.MaxDownloads != 10 {
		t.Fatalf("counter mismatch: %+v", rec)
	}
}

func TestGetByCodeNotFound(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM shared_files WHERE share_code = $1`)).
		WithArgs("NOPE1234").
		WillReturnRows(sqlmock.NewRows(recordColumns))
	if _, err := st.GetByCode(context.Background(), "NOPE1234"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestIncrementApplies(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE shared_files SET download_count = download_count + 1`)).
		WithArgs("ABC12345").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := st.IncrementDownloadCount(context.Background(), "ABC12345"); err != nil {
		t.Fatalf("IncrementDownloadCount: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestIncrementExhausted(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE shared_files SET download_count = download_count + 1`)).
		WithArgs("FULL1234").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM shared_files WHERE share_code = $1`)).
		WithArgs("FULL1234").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	if err := st.IncrementDownloadCount(context.Background(), "FULL1234"); !errors.Is(err, domain.ErrQuotaExhausted) {
		t.Fatalf("expected ErrQuotaExhausted, got %v", err)
	}
}

func TestIncrementMissing(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE shared_files SET download_count = download_count + 1`)).
		WithArgs("NOPE1234").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM shared_files WHERE share_code = $1`)).
		WithArgs("NOPE1234").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	if err := st.IncrementDownloadCount(context.Background(), "NOPE1234"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteExpiredCount(t *testing.T) {
	st, mock := newMockStore(t)
	now := time.Unix(1700000000, 0).UTC()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM shared_files WHERE expires_at <= $1`)).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))
	n, err := st.DeleteExpired(context.Background(), now)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if n != 3 {
		t.Fatalf("removed = %d, want 3", n)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM shared_files WHERE share_code = $1`)).
		WithArgs("ANY12345").
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := st.Delete(context.Background(), "ANY12345"); err != nil {
		t.Fatalf("Delete of missing code must not error: %v", err)
	}
}

func TestListAll(t *testing.T) {
	st, mock := newMockStore(t)
	now := time.Unix(1700000000, 0).UTC()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM shared_files`)).
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow("id1", "AAA11111", "a", 1, "text/plain", "data:text/plain;base64,YQ==", nil, false, now, now.Add(time.Hour), now, 0, 100).
			AddRow("id2", "BBB22222", "b", 1, "text/plain", "data:text/plain;base64,Yg==", nil, false, now, now.Add(time.Hour), now, 0, -1))
	recs, err := st.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].PasswordDigest != "" || recs[0].HasPassword {
		t.Fatalf("nullable digest should map to empty string: %+v", recs[0])
	}
	if recs[1].MaxDownloads != domain.UnlimitedDownloads {
		t.Fatalf("unlimited sentinel lost: %+v", recs[1])
	}
}
