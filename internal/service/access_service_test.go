package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metavr/access-service/internal/model"
	"github.com/metavr/access-service/internal/queue"
)

func TestCheckAppAccessAdminSkipsLookups(t *testing.T) {
	e := newEnv(t, AuthConfig{})
	seedStaff(t, e)
	token := e.login(t, "boss@metavr.test", "boss-pw")

	for _, path := range []string{"apps/anything", "whatever", ""} {
		res := e.access.CheckAppAccess(context.Background(), token, path)
		assert.True(t, res.Allowed, path)
		assert.Equal(t, model.RoleAdmin, res.Role)
		assert.Equal(t, "adm-2", res.UserID)
	}
	assert.Zero(t, e.apps.lookups)
}

func TestCheckAppAccessSupervisorMatching(t *testing.T) {
	e := newEnv(t, AuthConfig{})
	e.principals.put(model.Principal{
		ID: "sup-1", Email: "sup@metavr.test", Role: model.RoleSupervisor, Status: model.StatusActive,
		PasswordHash: hash(t, "pw"), AssignedApplications: []string{"card_matching", "app-42"},
	})
	e.apps.rows = []model.Application{{ID: "app-42", Name: "IQ", Path: "apps/iq-questions"}}
	token := e.login(t, "sup@metavr.test", "pw")
	ctx := context.Background()

	cases := map[string]bool{
		"apps/card_matching":  true,
		"card_matching":       true,
		"apps/card_matching/": false,
		"Apps/Card_Matching":  false,
		"apps/iq-questions":   true,
		"apps/unknown":        false,
	}
	for path, want := range cases {
		res := e.access.CheckAppAccess(ctx, token, path)
		assert.Equal(t, want, res.Allowed, path)
		if want {
			assert.Equal(t, model.RoleSupervisor, res.Role)
			assert.Equal(t, "sup-1", res.UserID)
		} else {
			assert.Empty(t, res.UserID)
		}
	}
}

func TestCheckAppAccessDeniesInvalidSessions(t *testing.T) {
	e := newEnv(t, AuthConfig{})
	e.principals.put(model.Principal{ID: "u-1", Email: "u@metavr.test", Role: model.RoleUser, Status: model.StatusActive, PasswordHash: hash(t, "pw")})
	ctx := context.Background()

	assert.False(t, e.access.CheckAppAccess(ctx, "bogus", "apps/x").Allowed)
	assert.True(t, e.security.has("app_access_validation_failed"))

	token := e.login(t, "u@metavr.test", "pw")
	assert.False(t, e.access.CheckAppAccess(ctx, token, "apps/x").Allowed)
}

func TestMatchesAssignment(t *testing.T) {
	assert.True(t, MatchesAssignment([]string{"apps/foo"}, "foo"))
	assert.True(t, MatchesAssignment([]string{"apps/foo"}, "apps/foo"))
	assert.True(t, MatchesAssignment([]string{"foo"}, "x/y/foo"))
	assert.False(t, MatchesAssignment(nil, "apps/foo"))
	assert.False(t, MatchesAssignment([]string{"apps/foo"}, "apps/foo/"))
}

func codeHolders(t *testing.T, e *env) {
	t.Helper()
	now := e.clock.Now()
	e.principals.put(model.Principal{
		ID: "sup-1", Email: "sup@metavr.test", Role: model.RoleSupervisor, Status: model.StatusActive,
		AccessCodes: map[string]model.AccessCodeEntry{
			"card_matching": {Code: "123456789", AppID: "app-1", AppKey: "card_matching", AppName: "Card Matching", CreatedAt: now, UpdatedAt: now},
		},
	})
	e.principals.put(model.Principal{
		ID: "u-pending", Email: "pending@metavr.test", Role: model.RoleUser, Status: model.StatusActive,
		AccessCodes: map[string]model.AccessCodeEntry{
			"card_matching": {Code: "222222222", AppID: "app-1", AppKey: "card_matching"},
		},
	})
	e.principals.put(model.Principal{
		ID: "u-ok", Email: "ok@metavr.test", Role: model.RoleUser, Status: model.StatusActive,
		AccessCodes: map[string]model.AccessCodeEntry{
			"card_matching": {Code: "333333333", AppID: "app-1", AppKey: "card_matching", AppName: "Card Matching"},
		},
		Access: map[string]model.AppAccess{"card_matching": {Approved: true, Enabled: true, SupervisorID: "sup-1"}},
	})
	e.principals.put(model.Principal{
		ID: "u-off", Email: "off@metavr.test", Role: model.RoleUser, Status: model.StatusActive,
		AccessCodes: map[string]model.AccessCodeEntry{
			"card_matching": {Code: "444444444", AppID: "app-1", AppKey: "card_matching"},
		},
		Access: map[string]model.AppAccess{"card_matching": {Approved: true, Enabled: false}},
	})
}

func TestVerifyAccessCode(t *testing.T) {
	e := newEnv(t, AuthConfig{})
	codeHolders(t, e)
	ctx := context.Background()

	assert.False(t, e.access.VerifyAccessCode(ctx, "card_matching", "999999999").Valid)

	res := e.access.VerifyAccessCode(ctx, "  Card_Matching ", "123-456-789")
	require.True(t, res.Valid)
	assert.Equal(t, model.RoleSupervisor, res.Role)
	assert.Equal(t, "app-1", res.AppID)
	assert.Equal(t, "Card Matching", res.AppName)
	assert.Equal(t, "sup-1", res.SupervisorID)
	assert.Equal(t, "sup@metavr.test", res.SupervisorEmail)

	assert.False(t, e.access.VerifyAccessCode(ctx, "card_matching", "222222222").Valid)
	assert.False(t, e.access.VerifyAccessCode(ctx, "card_matching", "444444444").Valid)

	res = e.access.VerifyAccessCode(ctx, "card_matching", "333333333")
	require.True(t, res.Valid)
	assert.Equal(t, model.RoleUser, res.Role)
	assert.Equal(t, "u-ok", res.UserID)
	assert.Equal(t, "ok@metavr.test", res.UserEmail)
	assert.Equal(t, "sup-1", res.SupervisorID)
}

func TestVerifyAccessCodeRejectsMalformedWithoutLookup(t *testing.T) {
	e := newEnv(t, AuthConfig{})
	codeHolders(t, e)
	ctx := context.Background()

	assert.False(t, e.access.VerifyAccessCode(ctx, "card_matching", "12345").Valid)
	assert.False(t, e.access.VerifyAccessCode(ctx, "card_matching", "1234567890").Valid)
	assert.False(t, e.access.VerifyAccessCode(ctx, "---", "123456789").Valid)
	assert.Zero(t, e.principals.codeLookups)
}

func TestVerifyAccessCodeLegacySupervisorFallback(t *testing.T) {
	e := newEnv(t, AuthConfig{})
	e.principals.put(model.Principal{
		ID: "u-legacy", Email: "legacy@metavr.test", Role: model.RoleUser, Status: model.StatusActive,
		AccessCodes: map[string]model.AccessCodeEntry{"iq": {Code: "555555555", AppID: "app-2", AppKey: "iq"}},
		Access:      map[string]model.AppAccess{"iq": {Approved: true, Enabled: true}},
	})
	reviewed := e.clock.Now().Add(-time.Hour)
	e.requests = newFakeRequests(model.AccessRequest{
		ID: "r-1", Email: "legacy@metavr.test", AppKey: "iq", Status: model.RequestApproved,
		ReviewedAt: &reviewed, ReviewedBy: "sup-9",
	})
	e.access.requests = e.requests

	res := e.access.VerifyAccessCode(context.Background(), "iq", "555555555")
	require.True(t, res.Valid)
	assert.Equal(t, "sup-9", res.SupervisorID)
	assert.Equal(t, "iq", res.AppName)
	assert.Equal(t, "sup-9", e.principals.get("u-legacy").Access["iq"].SupervisorID)
}

func TestSyncSupervisorCodes(t *testing.T) {
	e := newEnv(t, AuthConfig{})
	created := e.clock.Now()
	e.principals.put(model.Principal{
		ID: "sup-1", Email: "sup@metavr.test", Role: model.RoleSupervisor, Status: model.StatusActive,
		AccessCodes: map[string]model.AccessCodeEntry{
			"iq":  {Code: "111111111", AppID: "old", AppKey: "iq", AppName: "IQ Old", AppPath: "apps/iq", CreatedAt: created, UpdatedAt: created},
			"old": {Code: "999999999", AppKey: "old"},
		},
	})
	e.clock.Advance(time.Hour)

	codes, err := e.access.SyncSupervisorCodes(context.Background(), "sup-1", []AppAssignment{
		{AppID: "app-1", AppKey: "IQ"},
		{AppID: "app-3", AppKey: "Card Matching", AppName: "first"},
		{AppID: "app-3", AppKey: "card matching", AppName: "Card Matching"},
		{AppID: "app-x", AppKey: "  "},
	})
	require.NoError(t, err)
	require.Len(t, codes, 2)

	iq := codes["iq"]
	assert.Equal(t, "111111111", iq.Code)
	assert.Equal(t, "app-1", iq.AppID)
	assert.Equal(t, "IQ Old", iq.AppName)
	assert.Equal(t, "apps/iq", iq.AppPath)
	assert.Equal(t, created, iq.CreatedAt)
	assert.Equal(t, e.clock.Now(), iq.UpdatedAt)

	cm := codes["card-matching"]
	assert.Len(t, cm.Code, 9)
	assert.Equal(t, "Card Matching", cm.AppName)
	assert.Equal(t, "app-3", cm.AppID)
	assert.Equal(t, e.clock.Now(), cm.CreatedAt)

	assert.NotContains(t, e.principals.get("sup-1").AccessCodes, "old")
}

func TestSyncSupervisorCodesRetriesConflict(t *testing.T) {
	e := newEnv(t, AuthConfig{})
	e.principals.put(model.Principal{ID: "sup-1", Role: model.RoleSupervisor})
	e.principals.conflictNext = 1

	codes, err := e.access.SyncSupervisorCodes(context.Background(), "sup-1", []AppAssignment{{AppID: "a", AppKey: "a"}})
	require.NoError(t, err)
	assert.Contains(t, codes, "a")
}

func TestSyncSupervisorCodesMissingSupervisor(t *testing.T) {
	e := newEnv(t, AuthConfig{})
	_, err := e.access.SyncSupervisorCodes(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestSyncThenRegenerateChangesOnlyCode(t *testing.T) {
	e := newEnv(t, AuthConfig{})
	e.principals.put(model.Principal{ID: "sup-1", Email: "sup@metavr.test", Role: model.RoleSupervisor})
	ctx := context.Background()

	codes, err := e.access.SyncSupervisorCodes(ctx, "sup-1", []AppAssignment{
		{AppID: "app-1", AppKey: "card_matching", AppName: "Card Matching", AppPath: "apps/card_matching"},
	})
	require.NoError(t, err)
	before := codes["card_matching"]

	e.clock.Advance(time.Minute)
	after, err := e.access.RegenerateSupervisorCode(ctx, "sup-1", "Card_Matching")
	require.NoError(t, err)

	assert.NotEqual(t, before.Code, after.Code)
	assert.Equal(t, e.clock.Now(), after.UpdatedAt)
	after.Code, after.UpdatedAt = before.Code, before.UpdatedAt
	assert.Equal(t, before, after)

	n := e.notifier.last(t)
	assert.Equal(t, queue.KindSupervisorCodeUpdated, n.Kind)
	assert.Equal(t, "sup@metavr.test", n.To)
	assert.Equal(t, "Supervisor", n.Name)
	assert.Equal(t, "Card Matching", n.AppName)
	assert.Equal(t, e.principals.get("sup-1").AccessCodes["card_matching"].Code, n.Code)
}

func TestRegenerateSupervisorCodeErrors(t *testing.T) {
	e := newEnv(t, AuthConfig{})
	e.principals.put(model.Principal{ID: "sup-1", Role: model.RoleSupervisor})
	ctx := context.Background()

	_, err := e.access.RegenerateSupervisorCode(ctx, "sup-1", "!!!")
	assert.ErrorIs(t, err, ErrBadRequest)
	_, err = e.access.RegenerateSupervisorCode(ctx, "missing", "iq")
	assert.ErrorIs(t, err, ErrBadRequest)
	_, err = e.access.RegenerateSupervisorCode(ctx, "sup-1", "iq")
	assert.ErrorIs(t, err, ErrBadRequest)
	assert.Empty(t, e.notifier.sent)
}

func TestSendSupervisorWelcome(t *testing.T) {
	e := newEnv(t, AuthConfig{})
	e.principals.put(model.Principal{
		ID: "sup-1", Email: "sup@metavr.test", Name: "Sam", Role: model.RoleSupervisor,
		AccessCodes: map[string]model.AccessCodeEntry{
			"iq":   {Code: "111111111", AppKey: "iq"},
			"card": {Code: "222222222", AppKey: "card", AppName: "Card Matching"},
		},
	})
	e.principals.put(model.Principal{ID: "sup-2", Role: model.RoleSupervisor})
	ctx := context.Background()

	require.NoError(t, e.access.SendSupervisorWelcome(ctx, "sup-1", "temp-pass"))
	assert.Empty(t, e.notifier.sent, "welcome mail must not go through the broker")
	n := e.sender.last(t)
	assert.Equal(t, queue.KindSupervisorWelcome, n.Kind)
	assert.Equal(t, "Sam", n.Name)
	assert.Equal(t, "temp-pass", n.Password)
	assert.Equal(t, []queue.AppCode{
		{AppName: "Card Matching", AppKey: "card", AccessCode: "222222222"},
		{AppName: "iq", AppKey: "iq", AccessCode: "111111111"},
	}, n.Apps)

	assert.ErrorIs(t, e.access.SendSupervisorWelcome(ctx, "nope", "x"), ErrNotFound)
	assert.ErrorIs(t, e.access.SendSupervisorWelcome(ctx, "sup-2", "x"), ErrBadRequest)

	e.sender.err = errors.New("smtp down")
	assert.ErrorContains(t, e.access.SendSupervisorWelcome(ctx, "sup-1", "temp-pass"), "smtp down")
}
