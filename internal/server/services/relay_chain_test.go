package services

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"testing"

	"github.com/telegraph-app/telegraph/internal/common"
	"github.com/telegraph-app/telegraph/internal/dbx"
	"github.com/telegraph-app/telegraph/internal/server/models"
	friendsrepo "github.com/telegraph-app/telegraph/internal/server/repositories/friends"
	historyrepo "github.com/telegraph-app/telegraph/internal/server/repositories/history"
	imagesrepo "github.com/telegraph-app/telegraph/internal/server/repositories/images"
	refreshtokensrepo "github.com/telegraph-app/telegraph/internal/server/repositories/refreshtokens"
	usersrepo "github.com/telegraph-app/telegraph/internal/server/repositories/users"
)

// Map-backed repositories that keep real state across calls, so a whole
// chain can be driven through the service layer in one test.

type memUsersRepo struct {
	known map[string]bool
}

func (m *memUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	return u, nil
}
func (m *memUsersRepo) GetUserByLogin(ctx context.Context, userName string) (*models.User, error) {
	return nil, common.ErrorNotFound
}
func (m *memUsersRepo) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return nil, common.ErrorNotFound
}
func (m *memUsersRepo) Exists(ctx context.Context, userName string) (bool, error) {
	return m.known[userName], nil
}

type memImagesRepo struct {
	rows map[string]*models.Image
}

func (m *memImagesRepo) Create(ctx context.Context, image *models.Image) error {
	cp := *image
	m.rows[image.ID] = &cp
	return nil
}

func (m *memImagesRepo) GetByID(ctx context.Context, id string) (*models.Image, error) {
	row, ok := m.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *row
	return &cp, nil
}

func (m *memImagesRepo) GetTerminal(ctx context.Context, id string) (*models.Image, error) {
	row, ok := m.rows[id]
	if !ok || row.HopsLeft > 0 {
		return nil, common.ErrorNotFound
	}
	cp := *row
	return &cp, nil
}

// Advance mirrors the conditional update: all guards must still hold at
// write time or no row changes.
func (m *memImagesRepo) Advance(ctx context.Context, id, caller string, payload []byte, nextUser string, expectedHops int) error {
	row, ok := m.rows[id]
	if !ok || row.NextUser != caller || row.HopsLeft != expectedHops || row.HopsLeft <= 0 {
		return common.ErrVersionConflict
	}
	row.Payload = payload
	row.HopsLeft--
	row.PreviousUser = caller
	row.NextUser = nextUser
	return nil
}

func (m *memImagesRepo) ListAwaiting(ctx context.Context, userName string) ([]*models.ImageSummary, error) {
	var out []*models.ImageSummary
	for _, row := range m.rows {
		if row.HopsLeft > 0 && row.NextUser == userName {
			out = append(out, &models.ImageSummary{
				ID:       row.ID,
				Owner:    row.Owner,
				HopsLeft: row.HopsLeft,
				EditTime: row.EditTime,
				Status:   models.StatusAwaitingEdit,
			})
		}
	}
	return out, nil
}

func (m *memImagesRepo) SummariesForTerminal(ctx context.Context, ids []string) ([]*models.ImageSummary, error) {
	var out []*models.ImageSummary
	for _, id := range ids {
		row, ok := m.rows[id]
		if !ok || row.HopsLeft > 0 {
			continue
		}
		out = append(out, &models.ImageSummary{
			ID:       row.ID,
			Owner:    row.Owner,
			HopsLeft: row.HopsLeft,
			EditTime: row.EditTime,
			Status:   models.StatusCompleted,
		})
	}
	return out, nil
}

func (m *memImagesRepo) SetStorageKey(ctx context.Context, id, key string) error {
	row, ok := m.rows[id]
	if !ok {
		return common.ErrorNotFound
	}
	row.StorageKey = key
	return nil
}

type memHistoryRepo struct {
	// image id -> user -> acknowledged
	touched map[string]map[string]bool
}

func (m *memHistoryRepo) RegisterTouch(ctx context.Context, imageID, userName string) error {
	users, ok := m.touched[imageID]
	if !ok {
		users = make(map[string]bool)
		m.touched[imageID] = users
	}
	// Insert-if-absent: a repeat touch never resets an acknowledgement.
	if _, ok := users[userName]; !ok {
		users[userName] = false
	}
	return nil
}

func (m *memHistoryRepo) Acknowledge(ctx context.Context, imageID, userName string) error {
	if users, ok := m.touched[imageID]; ok {
		if _, ok := users[userName]; ok {
			users[userName] = true
		}
	}
	return nil
}

func (m *memHistoryRepo) PendingForUser(ctx context.Context, userName string) ([]string, error) {
	var ids []string
	for imageID, users := range m.touched {
		if acked, ok := users[userName]; ok && !acked {
			ids = append(ids, imageID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

type memRepoManager struct {
	u *memUsersRepo
	i *memImagesRepo
	h *memHistoryRepo
}

func (m *memRepoManager) RunMigrations(context.Context, *sql.DB) error           { return nil }
func (m *memRepoManager) Users(db dbx.DBTX) usersrepo.Repository                 { return m.u }
func (m *memRepoManager) RefreshTokens(db dbx.DBTX) refreshtokensrepo.Repository { return nil }
func (m *memRepoManager) Images(db dbx.DBTX) imagesrepo.Repository               { return m.i }
func (m *memRepoManager) History(db dbx.DBTX) historyrepo.Repository             { return m.h }
func (m *memRepoManager) Friends(db dbx.DBTX) friendsrepo.Repository             { return nil }

func actionableByStatus(t *testing.T, s *RelayService, user string) (awaiting, completed []string) {
	t.Helper()
	items, err := s.QueryActionable(context.Background(), user)
	if err != nil {
		t.Fatalf("QueryActionable(%s) error: %v", user, err)
	}
	for _, it := range items {
		switch it.Status {
		case models.StatusAwaitingEdit:
			awaiting = append(awaiting, it.ID)
		case models.StatusCompleted:
			completed = append(completed, it.ID)
		default:
			t.Fatalf("unexpected status %q", it.Status)
		}
	}
	return awaiting, completed
}

// Drives a full two-hop chain through the service layer: alice draws for
// bob, bob hands off to carol, carol's edit completes the chain, and the
// finished result is dealt with per contributor.
func TestRelay_TwoHopChain(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	// One transaction per write: create plus two hand-offs.
	for i := 0; i < 3; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}

	rm := &memRepoManager{
		u: &memUsersRepo{known: map[string]bool{"alice": true, "bob": true, "carol": true}},
		i: &memImagesRepo{rows: make(map[string]*models.Image)},
		h: &memHistoryRepo{touched: make(map[string]map[string]bool)},
	}
	vs := NewVisibilityService(db, rm)
	s := NewRelayService(db, rm, vs, nil, newTestLogger())
	ctx := context.Background()

	id, err := s.CreateImage(ctx, "alice", []byte("v0"), 60, 2, "bob")
	if err != nil {
		t.Fatalf("CreateImage error: %v", err)
	}

	// Mid-chain: only bob has work, and nobody sees a finished result yet.
	awaiting, completed := actionableByStatus(t, s, "bob")
	if len(awaiting) != 1 || awaiting[0] != id || len(completed) != 0 {
		t.Fatalf("bob mid-chain: awaiting=%v completed=%v", awaiting, completed)
	}
	if aw, cp := actionableByStatus(t, s, "alice"); len(aw) != 0 || len(cp) != 0 {
		t.Fatalf("alice mid-chain: awaiting=%v completed=%v", aw, cp)
	}
	if aw, cp := actionableByStatus(t, s, "carol"); len(aw) != 0 || len(cp) != 0 {
		t.Fatalf("carol mid-chain: awaiting=%v completed=%v", aw, cp)
	}

	hops, err := s.AdvanceImage(ctx, "bob", id, []byte("v1"), "carol")
	if err != nil || hops != 1 {
		t.Fatalf("bob's hand-off: hops=%d err=%v", hops, err)
	}

	hops, err = s.AdvanceImage(ctx, "carol", id, []byte("v2"), "alice")
	if err != nil || hops != 0 {
		t.Fatalf("carol's hand-off: hops=%d err=%v", hops, err)
	}

	// Terminal: read-only for everyone, including the recorded next user.
	if _, err := s.AdvanceImage(ctx, "alice", id, []byte("v3"), "bob"); !errors.Is(err, common.ErrorNotAuthorized) {
		t.Fatalf("terminal advance: want ErrorNotAuthorized, got %v", err)
	}

	// Every contributor now has the finished image pending, and nobody has
	// an edit outstanding.
	for _, user := range []string{"alice", "bob", "carol"} {
		awaiting, completed := actionableByStatus(t, s, user)
		if len(awaiting) != 0 {
			t.Fatalf("%s: unexpected awaiting %v", user, awaiting)
		}
		if len(completed) != 1 || completed[0] != id {
			t.Fatalf("%s: want completed [%s], got %v", user, id, completed)
		}
	}

	payload, err := s.FetchPayload(ctx, "carol", id)
	if err != nil || string(payload) != "v2" {
		t.Fatalf("FetchPayload: payload=%q err=%v", payload, err)
	}

	// Acknowledgement is per contributor: carol's does not clear the others.
	if err := vs.Acknowledge(ctx, id, "carol"); err != nil {
		t.Fatalf("Acknowledge error: %v", err)
	}
	if _, completed := actionableByStatus(t, s, "carol"); len(completed) != 0 {
		t.Fatalf("carol after ack: still sees %v", completed)
	}
	for _, user := range []string{"alice", "bob"} {
		if _, completed := actionableByStatus(t, s, user); len(completed) != 1 || completed[0] != id {
			t.Fatalf("%s after carol's ack: completed=%v", user, completed)
		}
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}
