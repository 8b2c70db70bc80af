package service

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/metavr/access-service/internal/model"
	"github.com/metavr/access-service/internal/queue"
	"github.com/metavr/access-service/internal/repository"
	"github.com/metavr/access-service/internal/utils"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func clonePrincipal(p model.Principal) model.Principal {
	p.AssignedApplications = slices.Clone(p.AssignedApplications)
	p.AccessCodes = maps.Clone(p.AccessCodes)
	if p.AccessCodes == nil {
		p.AccessCodes = map[string]model.AccessCodeEntry{}
	}
	p.Access = maps.Clone(p.Access)
	if p.Access == nil {
		p.Access = map[string]model.AppAccess{}
	}
	return p
}

type fakePrincipals struct {
	mu           sync.Mutex
	rows         map[string]model.Principal
	order        []string
	codeLookups  int
	conflictNext int
	requests     *fakeRequests
}

func newFakePrincipals(ps ...model.Principal) *fakePrincipals {
	f := &fakePrincipals{rows: map[string]model.Principal{}}
	for _, p := range ps {
		f.put(p)
	}
	return f
}

func (f *fakePrincipals) put(p model.Principal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[p.ID]; !ok {
		f.order = append(f.order, p.ID)
	}
	f.rows[p.ID] = clonePrincipal(p)
}

func (f *fakePrincipals) get(id string) model.Principal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return clonePrincipal(f.rows[id])
}

func (f *fakePrincipals) Create(_ context.Context, p model.Principal) error {
	f.put(p)
	return nil
}

func (f *fakePrincipals) GetByID(_ context.Context, id string) (model.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok {
		return model.Principal{}, repository.ErrNotFound
	}
	return clonePrincipal(p), nil
}

func (f *fakePrincipals) FindByEmail(_ context.Context, email string, role model.Role) (model.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.order {
		p := f.rows[id]
		if p.Email == email && (role == "" || p.Role == role) {
			return clonePrincipal(p), nil
		}
	}
	return model.Principal{}, repository.ErrNotFound
}

func (f *fakePrincipals) FindByAccessCode(_ context.Context, role model.Role, appKey, code string) (model.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codeLookups++
	for _, id := range f.order {
		p := f.rows[id]
		if p.Role == role && p.AccessCodes[appKey].Code == code {
			return clonePrincipal(p), nil
		}
	}
	return model.Principal{}, repository.ErrNotFound
}

func (f *fakePrincipals) ListByRole(_ context.Context, role model.Role) ([]model.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Principal
	for _, id := range f.order {
		if p := f.rows[id]; p.Role == role {
			out = append(out, clonePrincipal(p))
		}
	}
	return out, nil
}

func (f *fakePrincipals) RecordLogin(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.rows[id]
	p.LastLoginAt = &at
	f.rows[id] = p
	return nil
}

func (f *fakePrincipals) Mutate(_ context.Context, id string, fn func(p *model.Principal) error) (model.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conflictNext > 0 {
		f.conflictNext--
		return model.Principal{}, repository.ErrConflict
	}
	cur, ok := f.rows[id]
	if !ok {
		return model.Principal{}, repository.ErrNotFound
	}
	p := clonePrincipal(cur)
	if err := fn(&p); err != nil {
		return model.Principal{}, err
	}
	f.rows[id] = clonePrincipal(p)
	return clonePrincipal(p), nil
}

// MutateReviewed behaves like the MySQL transaction: a conflict or an
// error from fn leaves both the request and the principal untouched.
func (f *fakePrincipals) MutateReviewed(_ context.Context, id string, rv model.RequestReview, fn func(p *model.Principal) error) (model.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conflictNext > 0 {
		f.conflictNext--
		return model.Principal{}, repository.ErrConflict
	}
	f.requests.mu.Lock()
	defer f.requests.mu.Unlock()
	req, ok := f.requests.rows[rv.RequestID]
	if !ok || req.Status != model.RequestPending {
		return model.Principal{}, repository.ErrNotPending
	}
	cur, ok := f.rows[id]
	if !ok {
		return model.Principal{}, repository.ErrNotFound
	}
	p := clonePrincipal(cur)
	if err := fn(&p); err != nil {
		return model.Principal{}, err
	}
	f.requests.apply(rv)
	f.rows[id] = clonePrincipal(p)
	return clonePrincipal(p), nil
}

type fakeSessions struct {
	mu   sync.Mutex
	rows map[string]model.SessionRecord
}

func newFakeSessions() *fakeSessions { return &fakeSessions{rows: map[string]model.SessionRecord{}} }

func (f *fakeSessions) Create(_ context.Context, s model.SessionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[s.ID] = s
	return nil
}

func (f *fakeSessions) Get(_ context.Context, id string) (model.SessionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.rows[id]
	if !ok {
		return model.SessionRecord{}, repository.ErrNotFound
	}
	return s, nil
}

func (f *fakeSessions) Touch(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.rows[id]
	if ok && !s.Revoked && s.LastAccessAt.Before(at) {
		s.LastAccessAt = at
		f.rows[id] = s
	}
	return nil
}

func (f *fakeSessions) Revoke(_ context.Context, id, reason string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.rows[id]
	if !ok || s.Revoked {
		return false, nil
	}
	s.Revoked = true
	s.RevokedAt = &at
	s.RevocationReason = reason
	f.rows[id] = s
	return true, nil
}

func (f *fakeSessions) only(t *testing.T) model.SessionRecord {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.rows, 1)
	for _, s := range f.rows {
		return s
	}
	return model.SessionRecord{}
}

type fakeHandshakes struct {
	mu   sync.Mutex
	rows map[string]model.HandshakeRecord
}

func newFakeHandshakes() *fakeHandshakes { return &fakeHandshakes{rows: map[string]model.HandshakeRecord{}} }

func (f *fakeHandshakes) Create(_ context.Context, h model.HandshakeRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[h.ID] = h
	return nil
}

func (f *fakeHandshakes) Get(_ context.Context, id string) (model.HandshakeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.rows[id]
	if !ok {
		return model.HandshakeRecord{}, repository.ErrNotFound
	}
	return h, nil
}

func (f *fakeHandshakes) MarkUsed(_ context.Context, id string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.rows[id]
	if !ok || h.Used {
		return false, nil
	}
	h.Used = true
	h.UsedAt = &at
	f.rows[id] = h
	return true, nil
}

type fakeApps struct {
	mu      sync.Mutex
	rows    []model.Application
	lookups int
}

func (f *fakeApps) find(match func(model.Application) bool) (model.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	for _, a := range f.rows {
		if match(a) {
			return a, nil
		}
	}
	return model.Application{}, repository.ErrNotFound
}

func (f *fakeApps) GetByID(_ context.Context, id string) (model.Application, error) {
	return f.find(func(a model.Application) bool { return a.ID == id })
}

func (f *fakeApps) FindByPath(_ context.Context, path string) (model.Application, error) {
	return f.find(func(a model.Application) bool { return a.Path == path })
}

func (f *fakeApps) FindByAppKey(_ context.Context, key string) (model.Application, error) {
	return f.find(func(a model.Application) bool { return a.AppKey != "" && a.AppKey == key })
}

func (f *fakeApps) List(context.Context) ([]model.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	return slices.Clone(f.rows), nil
}

type fakeRequests struct {
	mu         sync.Mutex
	rows       map[string]model.AccessRequest
	lastRecent int
}

func newFakeRequests(reqs ...model.AccessRequest) *fakeRequests {
	f := &fakeRequests{rows: map[string]model.AccessRequest{}}
	for _, r := range reqs {
		f.rows[r.ID] = r
	}
	return f
}

func (f *fakeRequests) sorted(desc bool) []model.AccessRequest {
	out := slices.Collect(maps.Values(f.rows))
	sort.Slice(out, func(i, j int) bool {
		if desc {
			return out[i].RequestedAt.After(out[j].RequestedAt)
		}
		return out[i].RequestedAt.Before(out[j].RequestedAt)
	})
	return out
}

func (f *fakeRequests) Create(_ context.Context, r model.AccessRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[r.ID] = r
	return nil
}

func (f *fakeRequests) GetByID(_ context.Context, id string) (model.AccessRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return model.AccessRequest{}, repository.ErrNotFound
	}
	return r, nil
}

func (f *fakeRequests) HasPending(_ context.Context, email, appID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.Email == email && r.AppID == appID && r.Status == model.RequestPending {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRequests) ListPending(context.Context) ([]model.AccessRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.AccessRequest
	for _, r := range f.sorted(false) {
		if r.Status == model.RequestPending {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRequests) ListRecent(_ context.Context, limit int) ([]model.AccessRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastRecent = limit
	out := f.sorted(true)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRequests) LatestApprovedReviewer(_ context.Context, email, appKey string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var (
		best string
		at   time.Time
	)
	for _, r := range f.rows {
		if r.Email == email && r.AppKey == appKey && r.Status == model.RequestApproved && r.ReviewedAt != nil && r.ReviewedAt.After(at) {
			best, at = r.ReviewedBy, *r.ReviewedAt
		}
	}
	return best, nil
}

func (f *fakeRequests) Review(_ context.Context, id string, status model.RequestStatus, reviewer, reason string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.apply(model.RequestReview{RequestID: id, Status: status, Reviewer: reviewer, Reason: reason, At: at}), nil
}

// apply expects f.mu to be held.
func (f *fakeRequests) apply(rv model.RequestReview) bool {
	r, ok := f.rows[rv.RequestID]
	if !ok || r.Status != model.RequestPending {
		return false
	}
	at := rv.At
	r.Status = rv.Status
	r.ReviewedAt = &at
	r.ReviewedBy = rv.Reviewer
	r.RejectionReason = rv.Reason
	f.rows[rv.RequestID] = r
	return true
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []queue.Notification
	err  error
}

func (f *fakeNotifier) Notify(_ context.Context, n queue.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeNotifier) last(t *testing.T) queue.Notification {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

type fakeSender struct {
	fakeNotifier
}

func (f *fakeSender) Send(ctx context.Context, n queue.Notification) error { return f.Notify(ctx, n) }

type recordedEvent struct {
	event string
	attrs []any
}

type fakeSecurityLog struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeSecurityLog) Event(_ context.Context, event string, attrs ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{event: event, attrs: attrs})
}

func (f *fakeSecurityLog) has(event string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e.event == event {
			return true
		}
	}
	return false
}

// env wires every service against the in-memory fakes.
type env struct {
	clock      *fakeClock
	principals *fakePrincipals
	sessions   *fakeSessions
	handshakes *fakeHandshakes
	apps       *fakeApps
	requests   *fakeRequests
	notifier   *fakeNotifier
	sender     *fakeSender
	security   *fakeSecurityLog

	auth   *AuthService
	access *AccessService
	users  *UserAccessService
}

func newEnv(t *testing.T, cfg AuthConfig) *env {
	t.Helper()
	e := &env{
		clock:      newClock(),
		principals: newFakePrincipals(),
		sessions:   newFakeSessions(),
		handshakes: newFakeHandshakes(),
		apps:       &fakeApps{},
		requests:   newFakeRequests(),
		notifier:   &fakeNotifier{},
		sender:     &fakeSender{},
		security:   &fakeSecurityLog{},
	}
	e.principals.requests = e.requests
	codec := utils.NewTokenCodec(utils.TokenConfig{Secret: "test-secret", Now: e.clock.Now})
	opts := []Option{WithClock(e.clock.Now), WithSecurityLog(e.security), WithNotifier(e.notifier), WithSender(e.sender)}
	e.auth = NewAuthService(codec, e.principals, e.sessions, e.handshakes, cfg, opts...)
	e.access = NewAccessService(e.auth, e.principals, e.apps, e.requests, opts...)
	e.users = NewUserAccessService(e.principals, e.apps, e.requests, opts...)
	return e
}

func hash(t *testing.T, pw string) string {
	t.Helper()
	h, err := utils.HashPassword(pw, bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

// login signs in and exchanges the handshake, returning the session token.
func (e *env) login(t *testing.T, email, pw string) string {
	t.Helper()
	ctx := context.Background()
	lr, err := e.auth.Login(ctx, email, pw, false)
	require.NoError(t, err)
	xr, err := e.auth.ExchangeHandshake(ctx, lr.HandshakeToken)
	require.NoError(t, err)
	return xr.SessionToken
}
