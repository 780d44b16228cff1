// Package memory is an in-memory repository.Store for tests.
// Units of work are serialized by one mutex and roll back by restoring a snapshot.
package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/model"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/repository"
)

// Store implements repository.Store in memory.
type Store struct {
	mu sync.Mutex
	st *state
	// now is overridable so tests can pin timestamps.
	now func() time.Time
}

// New creates an empty in-memory store.
func New() *Store {
	s := &Store{now: time.Now}
	s.st = newState(s)
	return s
}

// WithTx runs fn under the store mutex and restores the previous state if fn
// fails. Like a database driver it refuses to start once ctx is done.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(s.st); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// View runs fn under the store mutex.
func (s *Store) View(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// CorruptBalance overwrites a cached balance without a ledger entry.
// Tests use it to simulate an out-of-band write.
func (s *Store) CorruptBalance(userID, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.st.users[userID]; ok {
		u.Balance = balance
	}
}

type gameTypeKey struct {
	marketID int64
	gameType model.GameType
}

type state struct {
	store *Store

	seq int64

	users     map[int64]*model.User
	markets   map[int64]*model.Market
	gameTypes map[gameTypeKey]*model.GameTypeConfig
	options   map[int64]*model.OptionGame
	wagers    map[int64]*model.Wager
	entries   map[int64]*model.LedgerEntry
}

func newState(s *Store) *state {
	return &state{
		store:     s,
		users:     make(map[int64]*model.User),
		markets:   make(map[int64]*model.Market),
		gameTypes: make(map[gameTypeKey]*model.GameTypeConfig),
		options:   make(map[int64]*model.OptionGame),
		wagers:    make(map[int64]*model.Wager),
		entries:   make(map[int64]*model.LedgerEntry),
	}
}

func (st *state) clone() *state {
	c := &state{
		store:     st.store,
		seq:       st.seq,
		users:     make(map[int64]*model.User, len(st.users)),
		markets:   make(map[int64]*model.Market, len(st.markets)),
		gameTypes: make(map[gameTypeKey]*model.GameTypeConfig, len(st.gameTypes)),
		options:   make(map[int64]*model.OptionGame, len(st.options)),
		wagers:    make(map[int64]*model.Wager, len(st.wagers)),
		entries:   make(map[int64]*model.LedgerEntry, len(st.entries)),
	}
	for k, v := range st.users {
		cp := *v
		c.users[k] = &cp
	}
	for k, v := range st.markets {
		cp := *v
		c.markets[k] = &cp
	}
	for k, v := range st.gameTypes {
		cp := *v
		c.gameTypes[k] = &cp
	}
	for k, v := range st.options {
		cp := *v
		c.options[k] = &cp
	}
	for k, v := range st.wagers {
		cp := *v
		c.wagers[k] = &cp
	}
	for k, v := range st.entries {
		cp := *v
		c.entries[k] = &cp
	}
	return c
}

func (st *state) nextID() int64 {
	st.seq++
	return st.seq
}

func (st *state) now() time.Time {
	return st.store.now()
}

// copyOf returns a detached copy so callers never alias stored rows.
func copyOf[T any](v *T) *T {
	cp := *v
	return &cp
}

func sortedValues[K comparable, V any](m map[K]*V, less func(a, b *V) bool) []*V {
	out := make([]*V, 0, len(m))
	for v := range maps.Values(m) {
		out = append(out, copyOf(v))
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// ============================================================================
// Users
// ============================================================================

func (st *state) CreateUser(ctx context.Context, u *model.User) (*model.User, error) {
	for _, existing := range st.users {
		if existing.Username == u.Username {
			return nil, repository.ErrConflict
		}
	}
	row := copyOf(u)
	row.ID = st.nextID()
	if row.Status == "" {
		row.Status = model.UserActive
	}
	row.CreatedAt = st.now()
	row.UpdatedAt = row.CreatedAt
	st.users[row.ID] = row
	return copyOf(row), nil
}

func (st *state) GetUser(ctx context.Context, id int64) (*model.User, error) {
	u, ok := st.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyOf(u), nil
}

func (st *state) GetUserForUpdate(ctx context.Context, id int64) (*model.User, error) {
	return st.GetUser(ctx, id)
}

func (st *state) ListUsersByOwner(ctx context.Context, ownerID int64) ([]*model.User, error) {
	owned := make(map[int64]*model.User)
	for id, u := range st.users {
		if u.OwnedBy(ownerID) {
			owned[id] = u
		}
	}
	return sortedValues(owned, func(a, b *model.User) bool { return a.ID < b.ID }), nil
}

func (st *state) SetUserStatus(ctx context.Context, id int64, status model.UserStatus) error {
	u, ok := st.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.Status = status
	u.UpdatedAt = st.now()
	return nil
}

func (st *state) AddBalance(ctx context.Context, id int64, delta int64) (int64, error) {
	u, ok := st.users[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	if u.Balance+delta < 0 {
		return 0, repository.ErrNegativeBalance
	}
	u.Balance += delta
	u.UpdatedAt = st.now()
	return u.Balance, nil
}

func (st *state) SetBalance(ctx context.Context, id int64, balance int64) error {
	u, ok := st.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	if balance < 0 {
		return repository.ErrNegativeBalance
	}
	u.Balance = balance
	u.UpdatedAt = st.now()
	return nil
}

func (st *state) SetQuarantined(ctx context.Context, id int64, quarantined bool) error {
	u, ok := st.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.Quarantined = quarantined
	u.UpdatedAt = st.now()
	return nil
}

func (st *state) ListQuarantined(ctx context.Context) ([]int64, error) {
	var ids []int64
	for id, u := range st.users {
		if u.Quarantined {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// ============================================================================
// Markets
// ============================================================================

func (st *state) CreateMarket(ctx context.Context, m *model.Market) (*model.Market, error) {
	row := copyOf(m)
	row.ID = st.nextID()
	row.Status = model.StatusUpcoming
	row.ResultStatus = model.ResultPending
	row.ResultValue = nil
	row.CreatedAt = st.now()
	st.markets[row.ID] = row
	return copyOf(row), nil
}

func (st *state) GetMarket(ctx context.Context, id int64) (*model.Market, error) {
	m, ok := st.markets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyOf(m), nil
}

func (st *state) GetMarketForShare(ctx context.Context, id int64) (*model.Market, error) {
	return st.GetMarket(ctx, id)
}

func (st *state) ListMarkets(ctx context.Context) ([]*model.Market, error) {
	return sortedValues(st.markets, func(a, b *model.Market) bool { return a.ID < b.ID }), nil
}

func (st *state) TransitionMarket(ctx context.Context, id int64, from, to model.EntityStatus) (bool, error) {
	m, ok := st.markets[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if m.Status != from {
		return false, nil
	}
	m.Status = to
	return true, nil
}

func (st *state) DeclareMarketResult(ctx context.Context, id int64, result string) (bool, error) {
	m, ok := st.markets[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if m.Status != model.StatusClosed || m.ResultStatus != model.ResultPending {
		return false, nil
	}
	now := st.now()
	m.ResultStatus = model.ResultDeclared
	m.ResultValue = &result
	m.DeclaredAt = &now
	return true, nil
}

func (st *state) UpsertGameTypeConfig(ctx context.Context, cfg *model.GameTypeConfig) error {
	if _, ok := st.markets[cfg.MarketID]; !ok {
		return repository.ErrNotFound
	}
	st.gameTypes[gameTypeKey{cfg.MarketID, cfg.GameType}] = copyOf(cfg)
	return nil
}

func (st *state) GetGameTypeConfig(ctx context.Context, marketID int64, gameType model.GameType) (*model.GameTypeConfig, error) {
	cfg, ok := st.gameTypes[gameTypeKey{marketID, gameType}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyOf(cfg), nil
}

func (st *state) ListGameTypeConfigs(ctx context.Context, marketID int64) ([]*model.GameTypeConfig, error) {
	rows := make(map[gameTypeKey]*model.GameTypeConfig)
	for k, v := range st.gameTypes {
		if k.marketID == marketID {
			rows[k] = v
		}
	}
	return sortedValues(rows, func(a, b *model.GameTypeConfig) bool { return a.GameType < b.GameType }), nil
}

// ============================================================================
// Option games
// ============================================================================

func (st *state) CreateOptionGame(ctx context.Context, g *model.OptionGame) (*model.OptionGame, error) {
	row := copyOf(g)
	row.ID = st.nextID()
	row.Status = model.StatusUpcoming
	row.ResultStatus = model.ResultPending
	row.WinningTeam = nil
	row.CreatedAt = st.now()
	st.options[row.ID] = row
	return copyOf(row), nil
}

func (st *state) GetOptionGame(ctx context.Context, id int64) (*model.OptionGame, error) {
	g, ok := st.options[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyOf(g), nil
}

func (st *state) GetOptionGameForShare(ctx context.Context, id int64) (*model.OptionGame, error) {
	return st.GetOptionGame(ctx, id)
}

func (st *state) ListOptionGames(ctx context.Context) ([]*model.OptionGame, error) {
	return sortedValues(st.options, func(a, b *model.OptionGame) bool { return a.ID < b.ID }), nil
}

func (st *state) TransitionOptionGame(ctx context.Context, id int64, from, to model.EntityStatus) (bool, error) {
	g, ok := st.options[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if g.Status != from {
		return false, nil
	}
	g.Status = to
	return true, nil
}

func (st *state) DeclareOptionGameResult(ctx context.Context, id int64, winner model.Team) (bool, error) {
	g, ok := st.options[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if g.Status != model.StatusClosed || g.ResultStatus != model.ResultPending {
		return false, nil
	}
	now := st.now()
	g.ResultStatus = model.ResultDeclared
	g.WinningTeam = &winner
	g.DeclaredAt = &now
	return true, nil
}

func (st *state) SetOptionGameOdds(ctx context.Context, g *model.OptionGame) error {
	row, ok := st.options[g.ID]
	if !ok {
		return repository.ErrNotFound
	}
	row.Odds = g.Odds
	return nil
}

// ============================================================================
// Wagers
// ============================================================================

func (st *state) CreateWager(ctx context.Context, w *model.Wager) (*model.Wager, error) {
	row := copyOf(w)
	row.ID = st.nextID()
	row.Status = model.WagerPending
	row.CreatedAt = st.now()
	st.wagers[row.ID] = row
	return copyOf(row), nil
}

func (st *state) GetWager(ctx context.Context, id int64) (*model.Wager, error) {
	w, ok := st.wagers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyOf(w), nil
}

func (st *state) ListWagersByUser(ctx context.Context, userID int64, limit int) ([]*model.Wager, error) {
	rows := make(map[int64]*model.Wager)
	for id, w := range st.wagers {
		if w.UserID == userID {
			rows[id] = w
		}
	}
	out := sortedValues(rows, func(a, b *model.Wager) bool { return a.ID > b.ID })
	return truncate(out, limit), nil
}

func (st *state) ListWagersByTarget(ctx context.Context, kind model.TargetKind, targetID int64, status model.WagerStatus) ([]*model.Wager, error) {
	rows := make(map[int64]*model.Wager)
	for id, w := range st.wagers {
		if w.TargetKind == kind && w.TargetID == targetID && w.Status == status {
			rows[id] = w
		}
	}
	return sortedValues(rows, func(a, b *model.Wager) bool { return a.ID < b.ID }), nil
}

func (st *state) SettleWager(ctx context.Context, id int64, status model.WagerStatus) (bool, error) {
	w, ok := st.wagers[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if w.Status != model.WagerPending {
		return false, nil
	}
	now := st.now()
	w.Status = status
	w.SettledAt = &now
	return true, nil
}

// ============================================================================
// Ledger
// ============================================================================

func (st *state) CreateEntry(ctx context.Context, e *model.LedgerEntry) (*model.LedgerEntry, error) {
	if _, ok := st.users[e.UserID]; !ok {
		return nil, repository.ErrNotFound
	}
	row := copyOf(e)
	row.ID = st.nextID()
	row.CreatedAt = st.now()
	if row.Status != model.EntryPending {
		resolved := row.CreatedAt
		row.ResolvedAt = &resolved
	}
	st.entries[row.ID] = row
	return copyOf(row), nil
}

func (st *state) GetEntry(ctx context.Context, id int64) (*model.LedgerEntry, error) {
	e, ok := st.entries[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyOf(e), nil
}

func (st *state) GetEntryForUpdate(ctx context.Context, id int64) (*model.LedgerEntry, error) {
	return st.GetEntry(ctx, id)
}

func (st *state) ListEntriesByUser(ctx context.Context, userID int64, limit int) ([]*model.LedgerEntry, error) {
	rows := make(map[int64]*model.LedgerEntry)
	for id, e := range st.entries {
		if e.UserID == userID {
			rows[id] = e
		}
	}
	out := sortedValues(rows, func(a, b *model.LedgerEntry) bool { return a.ID > b.ID })
	return truncate(out, limit), nil
}

func (st *state) ListPendingEntries(ctx context.Context, limit int) ([]*model.LedgerEntry, error) {
	rows := make(map[int64]*model.LedgerEntry)
	for id, e := range st.entries {
		if e.Status == model.EntryPending {
			rows[id] = e
		}
	}
	out := sortedValues(rows, func(a, b *model.LedgerEntry) bool { return a.ID < b.ID })
	return truncate(out, limit), nil
}

func (st *state) ResolveEntry(ctx context.Context, id int64, status model.EntryStatus, actorID int64) (bool, error) {
	e, ok := st.entries[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if e.Status != model.EntryPending {
		return false, nil
	}
	now := st.now()
	e.Status = status
	e.ResolvedBy = &actorID
	e.ResolvedAt = &now
	return true, nil
}

func (st *state) SumApplied(ctx context.Context, userID int64) (int64, error) {
	var sum int64
	for _, e := range st.entries {
		if e.UserID == userID && e.Applied() {
			sum += e.Amount
		}
	}
	return sum, nil
}

func (st *state) SumPending(ctx context.Context, userID int64) (int64, int64, error) {
	var deposits, withdrawals int64
	for _, e := range st.entries {
		if e.UserID != userID || e.Status != model.EntryPending {
			continue
		}
		switch e.Kind {
		case model.EntryDeposit:
			deposits += e.Amount
		case model.EntryWithdrawal:
			withdrawals += -e.Amount
		}
	}
	return deposits, withdrawals, nil
}

func truncate[T any](rows []T, limit int) []T {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}

var _ repository.Store = (*Store)(nil)
var _ repository.Tx = (*state)(nil)
