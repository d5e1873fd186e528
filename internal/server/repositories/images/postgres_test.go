package images

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/telegraph-app/telegraph/internal/common"
	"github.com/telegraph-app/telegraph/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

// passthroughConverter lets slice arguments (text[] binds) reach the mock
// unconverted.
type passthroughConverter struct{}

func (passthroughConverter) ConvertValue(v any) (driver.Value, error) { return v, nil }

func imageColumns() []string {
	return []string{"id", "owner", "payload", "hops_left", "edit_time", "next_user", "previous_user", "storage_key", "created_at"}
}

func TestCreate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*INSERT\s+INTO\s+images\s*\(id,\s*owner,\s*payload,\s*hops_left,\s*edit_time,\s*next_user,\s*previous_user\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6,\s*\$7\)\s*$`

	mock.ExpectExec(q).
		WithArgs("img-1", "alice", []byte("png"), 3, 60, "bob", "alice").
		WillReturnResult(sqlmock.NewResult(0, 1))

	img := &models.Image{
		ID: "img-1", Owner: "alice", Payload: []byte("png"),
		HopsLeft: 3, EditTime: 60, NextUser: "bob", PreviousUser: "alice",
	}
	if err := repo.Create(context.Background(), img); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestGetByID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*SELECT\s+.+\s+FROM\s+images\s+WHERE\s+id\s*=\s*\$1\s*$`

	now := time.Now()
	rows := sqlmock.NewRows(imageColumns()).
		AddRow("img-1", "alice", []byte("png"), 2, 60, "bob", "alice", "", now)
	mock.ExpectQuery(q).WithArgs("img-1").WillReturnRows(rows)

	got, err := repo.GetByID(context.Background(), "img-1")
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if got.ID != "img-1" || got.NextUser != "bob" || got.HopsLeft != 2 {
		t.Fatalf("unexpected image: %+v", got)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).WithArgs("nope").WillReturnError(sql.ErrNoRows)

	if _, err := repo.GetByID(context.Background(), "nope"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestGetTerminal_FiltersLiveImages(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*SELECT\s+.+\s+FROM\s+images\s+WHERE\s+id\s*=\s*\$1\s+AND\s+hops_left\s*=\s*0\s*$`

	mock.ExpectQuery(q).WithArgs("live-1").WillReturnError(sql.ErrNoRows)

	if _, err := repo.GetTerminal(context.Background(), "live-1"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func advanceQuery() string {
	return `(?s)^\s*UPDATE\s+images\s+SET\s+payload\s*=\s*\$3,\s*hops_left\s*=\s*hops_left\s*-\s*1,\s*previous_user\s*=\s*\$2,\s*next_user\s*=\s*\$4\s+WHERE\s+id\s*=\s*\$1\s+AND\s+next_user\s*=\s*\$2\s+AND\s+hops_left\s*=\s*\$5\s+AND\s+hops_left\s*>\s*0\s*$`
}

func TestAdvance_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(advanceQuery()).
		WithArgs("img-1", "bob", []byte("v2"), "carol", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Advance(context.Background(), "img-1", "bob", []byte("v2"), "carol", 2); err != nil {
		t.Fatalf("Advance error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestAdvance_GuardMiss(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	// A concurrent advance already changed next_user or the hop count.
	mock.ExpectExec(advanceQuery()).
		WithArgs("img-1", "bob", []byte("v2"), "carol", 2).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Advance(context.Background(), "img-1", "bob", []byte("v2"), "carol", 2); !errors.Is(err, common.ErrVersionConflict) {
		t.Fatalf("want ErrVersionConflict, got %v", err)
	}
}

func TestAdvance_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(advanceQuery()).
		WithArgs("img-1", "bob", []byte("v2"), "carol", 2).
		WillReturnError(errors.New("db down"))

	err := repo.Advance(context.Background(), "img-1", "bob", []byte("v2"), "carol", 2)
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestListAwaiting(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*SELECT\s+.+\s+FROM\s+images\s+WHERE\s+next_user\s*=\s*\$1\s+AND\s+hops_left\s*>\s*0\s+ORDER\s+BY\s+created_at\s*$`

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "owner", "hops_left", "edit_time", "created_at"}).
		AddRow("img-1", "alice", 2, 60, now.Add(-time.Hour)).
		AddRow("img-2", "carol", 1, 30, now)
	mock.ExpectQuery(q).WithArgs("bob").WillReturnRows(rows)

	got, err := repo.ListAwaiting(context.Background(), "bob")
	if err != nil {
		t.Fatalf("ListAwaiting error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "img-1" || got[1].ID != "img-2" {
		t.Fatalf("unexpected summaries: %+v", got)
	}
	for _, item := range got {
		if item.Status != models.StatusAwaitingEdit {
			t.Fatalf("wrong status: %q", item.Status)
		}
	}
}

func TestSummariesForTerminal(t *testing.T) {
	db, mock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp),
		sqlmock.ValueConverterOption(passthroughConverter{}),
	)
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	defer db.Close()
	repo := NewPostgresRepository(db)

	q := `(?s)^\s*SELECT\s+.+\s+FROM\s+images\s+WHERE\s+hops_left\s*=\s*0\s+AND\s+id\s*=\s*ANY\(\$1\)\s+ORDER\s+BY\s+created_at\s*$`

	rows := sqlmock.NewRows([]string{"id", "owner", "hops_left", "edit_time", "created_at"}).
		AddRow("img-9", "alice", 0, 60, time.Now())
	mock.ExpectQuery(q).WillReturnRows(rows)

	got, err := repo.SummariesForTerminal(context.Background(), []string{"img-9", "img-10"})
	if err != nil {
		t.Fatalf("SummariesForTerminal error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "img-9" || got[0].Status != models.StatusCompleted {
		t.Fatalf("unexpected summaries: %+v", got)
	}
}

func TestSummariesForTerminal_EmptyInput(t *testing.T) {
	repo, _, db := newRepoWithMock(t)
	defer db.Close()

	got, err := repo.SummariesForTerminal(context.Background(), nil)
	if err != nil || got != nil {
		t.Fatalf("empty input: got (%v, %v)", got, err)
	}
}

func TestSetStorageKey(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*UPDATE\s+images\s+SET\s+storage_key\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$1\s+AND\s+hops_left\s*=\s*0\s*$`

	mock.ExpectExec(q).
		WithArgs("img-1", "images/2026/1/2/abc").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SetStorageKey(context.Background(), "img-1", "images/2026/1/2/abc"); err != nil {
		t.Fatalf("SetStorageKey error: %v", err)
	}

	// Live image: the guard filters it out.
	mock.ExpectExec(q).
		WithArgs("live-1", "k").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.SetStorageKey(context.Background(), "live-1", "k"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}
