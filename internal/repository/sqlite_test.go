package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/xiaot623/treeleaf/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func seedSession(t *testing.T, store *SQLiteStore, id string, userID int64) *domain.Session {
	t.Helper()
	ctx := context.Background()

	p := &domain.Product{Name: "Watch", Price: 19900, IsActive: true}
	if err := store.UpsertProduct(ctx, p); err != nil {
		t.Fatalf("UpsertProduct failed: %v", err)
	}
	if err := store.EnsureUser(ctx, userID); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	ts := time.Now().UTC()
	gs := &domain.Session{
		ID:                id,
		UserID:            userID,
		ProductID:         p.ID,
		PackageType:       domain.PackageMulti,
		TotalAttempts:     4,
		AmountPaid:        5970,
		Status:            domain.SessionStatusActive,
		CommittedOutcomes: domain.Commitments{domain.FaceAWins, domain.NeitherWins, domain.FaceBWins, domain.NeitherWins},
		CreatedAt:         ts,
		UpdatedAt:         ts,
	}
	if err := store.CreateSession(ctx, gs); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	return gs
}

func TestWithDefaults(t *testing.T) {
	cases := []struct {
		dsn    string
		memory bool
		want   string
	}{
		{dsn: ":memory:", memory: true, want: "file::memory:?_foreign_keys=on"},
		{dsn: "file:game.db", want: "file:game.db?_foreign_keys=on&_txlock=immediate&_busy_timeout=5000"},
		{dsn: "game.db?_txlock=deferred", want: "game.db?_txlock=deferred&_foreign_keys=on&_busy_timeout=5000"},
	}
	for _, tc := range cases {
		if got := withDefaults(tc.dsn, tc.memory); got != tc.want {
			t.Fatalf("withDefaults(%q) = %q, want %q", tc.dsn, got, tc.want)
		}
	}
}

func TestSQLiteStoreSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	seedSession(t, store, "gs_1", 7)

	got, err := store.GetSession(ctx, "gs_1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got == nil {
		t.Fatalf("expected session")
	}
	if got.CommittedOutcomes.Encode() != "ANBN" {
		t.Fatalf("unexpected commitments: %s", got.CommittedOutcomes.Encode())
	}
	if got.Status != domain.SessionStatusActive || got.PrizeCode != nil {
		t.Fatalf("unexpected session: %+v", got)
	}

	missing, err := store.GetSession(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil session, got %+v, %v", missing, err)
	}

	active, err := store.GetActiveSession(ctx, 7, got.ProductID)
	if err != nil || active == nil || active.ID != "gs_1" {
		t.Fatalf("GetActiveSession: %+v, %v", active, err)
	}
}

func TestSQLiteStoreOneActiveSessionPerProduct(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	first := seedSession(t, store, "gs_1", 7)

	dup := *first
	dup.ID = "gs_2"
	err := store.CreateSession(ctx, &dup)
	if err == nil || !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}

	// Once the first session is terminal a new one may start.
	first.AttemptsUsed = 1
	first.Status = domain.SessionStatusLost
	ok, err := store.AdvanceSession(ctx, first, 0)
	if err != nil || !ok {
		t.Fatalf("AdvanceSession: %v, %v", ok, err)
	}
	if err := store.CreateSession(ctx, &dup); err != nil {
		t.Fatalf("CreateSession after terminal failed: %v", err)
	}
}

func TestSQLiteStoreAdvanceSessionIsConditional(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	gs := seedSession(t, store, "gs_1", 7)

	gs.AttemptsUsed = 1
	gs.Wins = 1
	ok, err := store.AdvanceSession(ctx, gs, 0)
	if err != nil || !ok {
		t.Fatalf("first advance: %v, %v", ok, err)
	}

	// A writer that read attempts_used=0 must lose.
	stale := *gs
	stale.AttemptsUsed = 1
	ok, err = store.AdvanceSession(ctx, &stale, 0)
	if err != nil {
		t.Fatalf("stale advance: %v", err)
	}
	if ok {
		t.Fatalf("expected stale advance to be rejected")
	}

	got, _ := store.GetSession(ctx, "gs_1")
	if got.AttemptsUsed != 1 || got.Wins != 1 {
		t.Fatalf("unexpected counters: %+v", got)
	}
}

func TestSQLiteStoreRoundsAreUniquePerIndex(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	gs := seedSession(t, store, "gs_1", 7)
	r := &domain.Round{
		ID: "r1", SessionID: gs.ID, UserID: 7, ProductID: gs.ProductID,
		SequenceIndex: 0, Choice: domain.FaceA, ShownOutcome: domain.FaceA, IsWin: true, CreatedAt: time.Now().UTC(),
	}
	if err := store.InsertRound(ctx, r); err != nil {
		t.Fatalf("InsertRound failed: %v", err)
	}
	dup := *r
	dup.ID = "r2"
	if err := store.InsertRound(ctx, &dup); !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}

	rounds, err := store.ListRounds(ctx, gs.ID)
	if err != nil {
		t.Fatalf("ListRounds failed: %v", err)
	}
	if len(rounds) != 1 || !rounds[0].IsWin || rounds[0].Choice != domain.FaceA {
		t.Fatalf("unexpected rounds: %+v", rounds)
	}
	wins, err := store.CountWinningRounds(ctx, gs.ID)
	if err != nil || wins != 1 {
		t.Fatalf("CountWinningRounds: %d, %v", wins, err)
	}
}

func TestSQLiteStoreWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	gs := seedSession(t, store, "gs_1", 7)
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx *Tx) error {
		gs.AttemptsUsed = 1
		if ok, err := tx.AdvanceSession(ctx, gs, 0); err != nil || !ok {
			t.Fatalf("advance in tx: %v, %v", ok, err)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	got, _ := store.GetSession(ctx, "gs_1")
	if got.AttemptsUsed != 0 {
		t.Fatalf("expected rollback, attempts_used=%d", got.AttemptsUsed)
	}
}

func TestSQLiteStorePrizeCodeRedeemOnce(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	gs := seedSession(t, store, "gs_1", 7)
	pc := &domain.PrizeCode{
		Code: "ABCDEFGHJKLM", SessionID: gs.ID, UserID: 7, ProductID: gs.ProductID,
		Status: domain.PrizeCodeStatusActive, CreatedAt: time.Now().UTC(),
	}
	if err := store.CreatePrizeCode(ctx, pc); err != nil {
		t.Fatalf("CreatePrizeCode failed: %v", err)
	}
	exists, err := store.PrizeCodeExists(ctx, pc.Code)
	if err != nil || !exists {
		t.Fatalf("PrizeCodeExists: %v, %v", exists, err)
	}

	// A session owns at most one code.
	second := *pc
	second.Code = "ZZZZZZZZZZZZ"
	if err := store.CreatePrizeCode(ctx, &second); !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}

	ok, err := store.RedeemPrizeCode(ctx, pc.Code, time.Now().UTC())
	if err != nil || !ok {
		t.Fatalf("first redeem: %v, %v", ok, err)
	}
	ok, err = store.RedeemPrizeCode(ctx, pc.Code, time.Now().UTC())
	if err != nil || ok {
		t.Fatalf("second redeem should not apply: %v, %v", ok, err)
	}

	details, err := store.GetPrizeCodeDetails(ctx, pc.Code)
	if err != nil || details == nil {
		t.Fatalf("GetPrizeCodeDetails: %+v, %v", details, err)
	}
	if details.PrizeCode.Status != domain.PrizeCodeStatusRedeemed || details.PrizeCode.RedeemedAt == nil {
		t.Fatalf("unexpected prize code: %+v", details.PrizeCode)
	}
	if details.Product.Name != "Watch" || details.User.ID != 7 {
		t.Fatalf("unexpected join: %+v", details)
	}
}

func TestSQLiteStoreExpirySweepQueries(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	gs := seedSession(t, store, "gs_1", 7)
	idle, err := store.ListIdleSessions(ctx, time.Now().UTC().Add(time.Minute), 10)
	if err != nil || len(idle) != 1 {
		t.Fatalf("ListIdleSessions: %d, %v", len(idle), err)
	}
	idle, err = store.ListIdleSessions(ctx, time.Now().UTC().Add(-time.Hour), 10)
	if err != nil || len(idle) != 0 {
		t.Fatalf("ListIdleSessions before creation: %d, %v", len(idle), err)
	}

	// A round played since the sweep read makes the expire a no-op.
	if ok, _ := store.ExpireSessionIfIdle(ctx, gs.ID, 1); ok {
		t.Fatalf("expected conditional expire to miss")
	}
	if ok, err := store.ExpireSessionIfIdle(ctx, gs.ID, 0); err != nil || !ok {
		t.Fatalf("ExpireSessionIfIdle: %v, %v", ok, err)
	}

	past := time.Now().UTC().Add(-time.Minute)
	pc := &domain.PrizeCode{
		Code: "PQRSTUVWXYZ2", SessionID: gs.ID, UserID: 7, ProductID: gs.ProductID,
		Status: domain.PrizeCodeStatusActive, ExpiresAt: &past, CreatedAt: time.Now().UTC(),
	}
	if err := store.CreatePrizeCode(ctx, pc); err != nil {
		t.Fatalf("CreatePrizeCode failed: %v", err)
	}
	expired, err := store.ListExpiredPrizeCodes(ctx, time.Now().UTC(), 10)
	if err != nil || len(expired) != 1 {
		t.Fatalf("ListExpiredPrizeCodes: %d, %v", len(expired), err)
	}
	if ok, err := store.ExpirePrizeCodeIfActive(ctx, pc.Code); err != nil || !ok {
		t.Fatalf("ExpirePrizeCodeIfActive: %v, %v", ok, err)
	}
	if ok, _ := store.RedeemPrizeCode(ctx, pc.Code, time.Now().UTC()); ok {
		t.Fatalf("expired code must not redeem")
	}
}

func TestSQLiteStoreCatalogAndEvents(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	if err := store.SeedProducts(ctx); err != nil {
		t.Fatalf("SeedProducts failed: %v", err)
	}
	products, err := store.ListProducts(ctx)
	if err != nil || len(products) == 0 {
		t.Fatalf("ListProducts: %d, %v", len(products), err)
	}

	p := products[0]
	p.Price = 100
	p.IsActive = false
	if err := store.UpsertProduct(ctx, &p); err != nil {
		t.Fatalf("UpsertProduct failed: %v", err)
	}
	got, err := store.GetProduct(ctx, p.ID)
	if err != nil || got.Price != 100 || got.IsActive {
		t.Fatalf("unexpected product: %+v, %v", got, err)
	}

	u, err := store.GetOrCreateUser(ctx, 9, "alice", domain.RoleAdmin)
	if err != nil || u.Name != "alice" || u.Role != domain.RoleAdmin {
		t.Fatalf("GetOrCreateUser: %+v, %v", u, err)
	}
	u, err = store.GetOrCreateUser(ctx, 9, "", domain.RoleUser)
	if err != nil || u.Name != "alice" || u.Role != domain.RoleUser {
		t.Fatalf("GetOrCreateUser keeps name: %+v, %v", u, err)
	}

	ev := &domain.Event{ID: "e1", SessionID: "gs_x", Ts: 1, Type: domain.EventTypeRoundPlayed, Payload: json.RawMessage(`{"i":0}`)}
	if err := store.CreateEvent(ctx, ev); err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}
	events, err := store.ListEvents(ctx, "gs_x")
	if err != nil || len(events) != 1 || string(events[0].Payload) != `{"i":0}` {
		t.Fatalf("ListEvents: %+v, %v", events, err)
	}
}
