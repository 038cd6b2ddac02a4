package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"cspacehr/internal/config"
	"cspacehr/internal/model"
	"cspacehr/internal/rbac"
	"cspacehr/internal/repository"
	"cspacehr/internal/security"
	"cspacehr/internal/token"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ── In-memory credential store ────────────────────────────────────────────────

type fakeDB struct {
	mu          sync.Mutex
	users       map[uuid.UUID]*model.User
	employees   map[uuid.UUID]*model.Employee
	branches    map[string]*model.Branch
	grants      map[uuid.UUID]*model.BranchAccessGrant
	logs        []model.OperatorSwitchLog
	rosterCalls int
	// logErr makes switch-log inserts fail.
	logErr error
	// err makes every query fail (store outage).
	err error
	// rosterErr makes only the operator roster query fail.
	rosterErr error
	// beforeRoster runs before each roster query, outside the lock.
	beforeRoster func()
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		users:     map[uuid.UUID]*model.User{},
		employees: map[uuid.UUID]*model.Employee{},
		branches:  map[string]*model.Branch{},
		grants:    map[uuid.UUID]*model.BranchAccessGrant{},
	}
}

type fakeUsers struct{ db *fakeDB }
type fakeEmployees struct{ db *fakeDB }
type fakeBranches struct{ db *fakeDB }
type fakeGrants struct{ db *fakeDB }
type fakeSwitchLogs struct{ db *fakeDB }

func (f fakeUsers) Create(_ context.Context, u *model.User) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.err != nil {
		return f.db.err
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	cp := *u
	f.db.users[u.ID] = &cp
	return nil
}

func (f fakeUsers) FindByEmail(_ context.Context, email string) (*model.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.err != nil {
		return nil, f.db.err
	}
	for _, u := range f.db.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f fakeUsers) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.err != nil {
		return nil, f.db.err
	}
	u, ok := f.db.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (f fakeUsers) List(_ context.Context, includeInactive bool) ([]model.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []model.User
	for _, u := range f.db.users {
		if includeInactive || u.Active {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f fakeUsers) Update(_ context.Context, u *model.User) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	cp := *u
	f.db.users[u.ID] = &cp
	return nil
}

func (f fakeUsers) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	u, ok := f.db.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.Active = active
	return nil
}

func (f fakeEmployees) FindByID(_ context.Context, id uuid.UUID) (*model.Employee, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	e, ok := f.db.employees[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *e
	return &cp, nil
}

func (f fakeEmployees) ListOperatorCandidates(_ context.Context, branchID string, at time.Time) ([]repository.OperatorCandidate, error) {
	if f.db.beforeRoster != nil {
		f.db.beforeRoster()
	}
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	f.db.rosterCalls++
	if f.db.err != nil {
		return nil, f.db.err
	}
	if f.db.rosterErr != nil {
		return nil, f.db.rosterErr
	}
	var home, cross []model.Employee
	for _, e := range f.db.employees {
		if e.BranchID == branchID && e.Active && e.HasPIN() {
			home = append(home, *e)
		}
	}
	seen := map[uuid.UUID]bool{}
	for _, u := range f.db.users {
		if !u.Active || u.EmployeeID == nil {
			continue
		}
		for _, g := range f.db.grants {
			if g.UserID != u.ID || g.BranchID != branchID || !g.ActiveAt(at) {
				continue
			}
			e, ok := f.db.employees[*u.EmployeeID]
			if ok && !seen[e.ID] && e.BranchID != branchID && e.Active && e.HasPIN() {
				seen[e.ID] = true
				cross = append(cross, *e)
			}
		}
	}
	byName := func(s []model.Employee) {
		sort.Slice(s, func(i, j int) bool { return s[i].FullName < s[j].FullName })
	}
	byName(home)
	byName(cross)
	out := make([]repository.OperatorCandidate, 0, len(home)+len(cross))
	for _, e := range home {
		out = append(out, repository.OperatorCandidate{Employee: e})
	}
	for _, e := range cross {
		out = append(out, repository.OperatorCandidate{Employee: e, CrossBranch: true})
	}
	return out, nil
}

func (f fakeEmployees) ListActive(_ context.Context, branchID *string) ([]model.Employee, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []model.Employee
	for _, e := range f.db.employees {
		if e.Active && (branchID == nil || e.BranchID == *branchID) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BranchID != out[j].BranchID {
			return out[i].BranchID < out[j].BranchID
		}
		return out[i].FullName < out[j].FullName
	})
	return out, nil
}

func (f fakeEmployees) SetPINHashes(_ context.Context, hashes map[uuid.UUID]string) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.err != nil {
		return f.db.err
	}
	for id := range hashes {
		if _, ok := f.db.employees[id]; !ok {
			return gorm.ErrRecordNotFound
		}
	}
	for id, h := range hashes {
		f.db.employees[id].PINHash = h
	}
	return nil
}

func (f fakeBranches) FindByID(_ context.Context, id string) (*model.Branch, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.err != nil {
		return nil, f.db.err
	}
	b, ok := f.db.branches[id]
	if !ok || !b.Active {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *b
	return &cp, nil
}

func (f fakeBranches) List(_ context.Context) ([]model.Branch, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []model.Branch
	for _, b := range f.db.branches {
		out = append(out, *b)
	}
	return out, nil
}

func (f fakeBranches) Upsert(_ context.Context, b *model.Branch) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	cp := *b
	f.db.branches[b.ID] = &cp
	return nil
}

func (f fakeGrants) Create(_ context.Context, g *model.BranchAccessGrant) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	cp := *g
	f.db.grants[g.ID] = &cp
	return nil
}

func (f fakeGrants) FindByID(_ context.Context, id uuid.UUID) (*model.BranchAccessGrant, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	g, ok := f.db.grants[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *g
	return &cp, nil
}

func (f fakeGrants) Delete(_ context.Context, id uuid.UUID) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.grants[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(f.db.grants, id)
	return nil
}

func (f fakeGrants) List(_ context.Context, flt repository.GrantFilter, at time.Time) ([]model.BranchAccessGrant, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []model.BranchAccessGrant
	for _, g := range f.db.grants {
		if flt.UserID != nil && g.UserID != *flt.UserID {
			continue
		}
		if flt.BranchID != nil && g.BranchID != *flt.BranchID {
			continue
		}
		if !flt.IncludeExpired && !g.ActiveAt(at) {
			continue
		}
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GrantedAt.After(out[j].GrantedAt) })
	return out, nil
}

func (f fakeGrants) FindActive(_ context.Context, userID uuid.UUID, branchID string, at time.Time) (*model.BranchAccessGrant, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.err != nil {
		return nil, f.db.err
	}
	for _, g := range f.db.grants {
		if g.UserID == userID && g.BranchID == branchID && g.ActiveAt(at) {
			cp := *g
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f fakeGrants) ActiveBranchIDs(_ context.Context, userID uuid.UUID, at time.Time) ([]string, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	set := map[string]bool{}
	for _, g := range f.db.grants {
		if g.UserID == userID && g.ActiveAt(at) {
			set[g.BranchID] = true
		}
	}
	var out []string
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (f fakeSwitchLogs) Create(_ context.Context, entry *model.OperatorSwitchLog) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.logErr != nil {
		return f.db.logErr
	}
	f.db.logs = append(f.db.logs, *entry)
	return nil
}

func (f fakeSwitchLogs) ListByBranch(_ context.Context, branchID string, limit int) ([]model.OperatorSwitchLog, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []model.OperatorSwitchLog
	for i := len(f.db.logs) - 1; i >= 0 && len(out) < limit; i-- {
		if f.db.logs[i].BranchID == branchID {
			out = append(out, f.db.logs[i])
		}
	}
	return out, nil
}

type fakeAuditQueue struct {
	mu      sync.Mutex
	entries []model.OperatorSwitchLog
	err     error
}

func (q *fakeAuditQueue) EnqueueSwitchLog(_ context.Context, entry model.OperatorSwitchLog) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.entries = append(q.entries, entry)
	return nil
}

// ── Fixtures ──────────────────────────────────────────────────────────────────

const testSecret = "test_jwt_secret_32_chars_minimum!"

var testHasher = security.NewHasher(bcrypt.MinCost)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestCfg() *config.Config {
	return &config.Config{
		JWTSecret:               testSecret,
		SessionTTLMinutes:       15,
		RefreshTTLHours:         168,
		PINMaxAttempts:          5,
		PINLockoutMinutes:       15,
		PINFailureWindowMinutes: 15,
		StateBackend:            config.StateBackendMemory,
	}
}

func hashOf(t *testing.T, secret string) string {
	t.Helper()
	h, err := testHasher.Hash(secret)
	require.NoError(t, err)
	return h
}

func (db *fakeDB) addBranch(t *testing.T, id, kioskPassword string) *model.Branch {
	t.Helper()
	b := &model.Branch{ID: id, Name: strings.ToUpper(id[:1]) + id[1:], Active: true}
	if kioskPassword != "" {
		b.KioskPasswordHash = hashOf(t, kioskPassword)
	}
	db.branches[id] = b
	return b
}

func (db *fakeDB) addEmployee(t *testing.T, name, branchID, pin string) *model.Employee {
	t.Helper()
	e := &model.Employee{ID: uuid.New(), FullName: name, BranchID: branchID, Active: true}
	if pin != "" {
		e.PINHash = hashOf(t, pin)
	}
	db.employees[e.ID] = e
	return e
}

func (db *fakeDB) addUser(t *testing.T, email, password string, role rbac.Role, branchID *string, employeeID *uuid.UUID) *model.User {
	t.Helper()
	u := &model.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         strings.Split(email, "@")[0],
		PasswordHash: hashOf(t, password),
		Role:         string(role),
		BranchID:     branchID,
		EmployeeID:   employeeID,
		Active:       true,
	}
	db.users[u.ID] = u
	return u
}

func (db *fakeDB) addGrant(userID uuid.UUID, branchID string, grantedAt time.Time, expiresAt *time.Time) *model.BranchAccessGrant {
	g := &model.BranchAccessGrant{
		ID:        uuid.New(),
		UserID:    userID,
		BranchID:  branchID,
		GrantedBy: uuid.New(),
		GrantedAt: grantedAt,
		ExpiresAt: expiresAt,
	}
	db.grants[g.ID] = g
	return g
}

func strPtr(s string) *string { return &s }

func principal(u *model.User) token.Principal {
	return principalFor(u, uuid.NewString())
}

func actorWithRole(role rbac.Role, branchID *string) token.Principal {
	return token.Principal{ID: uuid.NewString(), Name: "actor", Role: role, BranchID: branchID, SessionID: uuid.NewString()}
}
