package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/metavr/access-service/internal/model"
	"github.com/metavr/access-service/internal/queue"
	"github.com/metavr/access-service/internal/repository"
	"github.com/metavr/access-service/internal/utils"
)

// AppAccessResult is the outcome of CheckAppAccess. Role and UserID are
// only set when Allowed is true.
type AppAccessResult struct {
	Allowed bool
	Role    model.Role
	UserID  string
}

// AccessCodeResult is the outcome of VerifyAccessCode. Everything but
// Valid is empty when the code was rejected.
type AccessCodeResult struct {
	Valid           bool       `json:"valid"`
	Role            model.Role `json:"role,omitempty"`
	AppID           string     `json:"appId,omitempty"`
	AppName         string     `json:"appName,omitempty"`
	SupervisorID    string     `json:"supervisorId,omitempty"`
	UserID          string     `json:"userId,omitempty"`
	SupervisorEmail string     `json:"supervisorEmail,omitempty"`
	UserEmail       string     `json:"userEmail,omitempty"`
}

// AppAssignment is one application handed to SyncSupervisorCodes. Empty
// AppName or AppPath keep whatever the existing entry has.
type AppAssignment struct {
	AppID   string `json:"appId"`
	AppKey  string `json:"appKey"`
	AppName string `json:"appName,omitempty"`
	AppPath string `json:"appPath,omitempty"`
}

// AccessService resolves application access for sessions and numeric
// codes, and issues supervisor access codes.
type AccessService struct {
	auth       *AuthService
	principals PrincipalStore
	apps       ApplicationStore
	requests   AccessRequestStore
	opt        options
}

func NewAccessService(auth *AuthService, principals PrincipalStore, apps ApplicationStore, requests AccessRequestStore, opts ...Option) *AccessService {
	return &AccessService{auth: auth, principals: principals, apps: apps, requests: requests, opt: buildOptions(opts)}
}

// CheckAppAccess decides whether the session behind token may open appPath.
// It never fails: every error, including an invalid session, is a denial.
func (s *AccessService) CheckAppAccess(ctx context.Context, token, appPath string) AppAccessResult {
	res, err := s.checkAppAccess(ctx, token, appPath)
	if err != nil {
		s.opt.security.Event(ctx, "app_access_validation_failed", "app_path", appPath, "error", err.Error())
		return AppAccessResult{}
	}
	return res
}

func (s *AccessService) checkAppAccess(ctx context.Context, token, appPath string) (AppAccessResult, error) {
	claims, err := s.auth.ValidateSession(ctx, token)
	if err != nil {
		return AppAccessResult{}, err
	}
	granted := AppAccessResult{Allowed: true, Role: model.Role(claims.Role), UserID: claims.UserID}

	switch model.Role(claims.Role) {
	case model.RoleAdmin:
		return granted, nil
	case model.RoleSupervisor:
		sup, err := s.principals.GetByID(ctx, claims.UserID)
		if err != nil {
			return AppAccessResult{}, fmt.Errorf("load supervisor: %w", err)
		}
		if MatchesAssignment(sup.AssignedApplications, appPath) {
			return granted, nil
		}
		app, err := s.apps.FindByPath(ctx, appPath)
		if errors.Is(err, repository.ErrNotFound) {
			return AppAccessResult{}, nil
		}
		if err != nil {
			return AppAccessResult{}, fmt.Errorf("lookup application: %w", err)
		}
		if slices.Contains(sup.AssignedApplications, app.ID) {
			return granted, nil
		}
		return AppAccessResult{}, nil
	default:
		return AppAccessResult{}, nil
	}
}

// MatchesAssignment reports whether assigned contains appPath itself,
// "apps/<slug>" or the bare slug of appPath. Comparison is exact, so case
// and trailing slashes matter. Two applications sharing a slug cannot be
// told apart here.
func MatchesAssignment(assigned []string, appPath string) bool {
	slug := model.PathSlug(appPath)
	for _, a := range assigned {
		if a == appPath || a == "apps/"+slug || a == slug {
			return true
		}
	}
	return false
}

// VerifyAccessCode checks a nine-digit code for appKey against supervisor
// codes first and user codes second. Any failure yields Valid=false.
func (s *AccessService) VerifyAccessCode(ctx context.Context, appKey, code string) AccessCodeResult {
	key := utils.NormalizeAppKey(appKey)
	clean := utils.SanitizeAccessCode(code)
	if key == "" || clean == "" {
		return AccessCodeResult{}
	}
	res, err := s.verifyAccessCode(ctx, key, clean)
	if err != nil {
		s.opt.security.Event(ctx, "access_code_verification_failed", "app_key", key, "error", err.Error())
		return AccessCodeResult{}
	}
	if !res.Valid {
		s.opt.security.Event(ctx, "access_code_rejected", "app_key", key)
	}
	return res
}

func (s *AccessService) verifyAccessCode(ctx context.Context, key, code string) (AccessCodeResult, error) {
	sup, err := s.principals.FindByAccessCode(ctx, model.RoleSupervisor, key, code)
	switch {
	case err == nil:
		if entry, ok := sup.AccessCodes[key]; ok {
			return AccessCodeResult{
				Valid:           true,
				Role:            model.RoleSupervisor,
				AppID:           entry.AppID,
				AppName:         entry.DisplayName(),
				SupervisorID:    sup.ID,
				SupervisorEmail: sup.Email,
			}, nil
		}
	case !errors.Is(err, repository.ErrNotFound):
		return AccessCodeResult{}, err
	}

	user, err := s.principals.FindByAccessCode(ctx, model.RoleUser, key, code)
	if errors.Is(err, repository.ErrNotFound) {
		return AccessCodeResult{}, nil
	}
	if err != nil {
		return AccessCodeResult{}, err
	}
	entry, ok := user.AccessCodes[key]
	if !ok || !user.Access[key].Usable() {
		return AccessCodeResult{}, nil
	}

	supervisorID := user.Access[key].SupervisorID
	if supervisorID == "" {
		supervisorID = s.legacySupervisor(ctx, user, key)
	}
	appName := entry.AppName
	if appName == "" {
		appName = key
	}
	return AccessCodeResult{
		Valid:        true,
		Role:         model.RoleUser,
		AppID:        entry.AppID,
		AppName:      appName,
		SupervisorID: supervisorID,
		UserID:       user.ID,
		UserEmail:    user.Email,
	}, nil
}

// legacySupervisor recovers the reviewer of grants made before the
// supervisor id was stored on the grant, and stores it for next time.
// Failures only cost the supervisor id.
func (s *AccessService) legacySupervisor(ctx context.Context, user model.Principal, key string) string {
	if user.Email == "" {
		return ""
	}
	reviewer, err := s.requests.LatestApprovedReviewer(ctx, user.Email, key)
	if err != nil {
		s.opt.log.WarnContext(ctx, "legacy supervisor lookup failed", "user_id", user.ID, "app_key", key, "error", err)
		return ""
	}
	if reviewer == "" {
		return ""
	}
	_, err = s.principals.Mutate(ctx, user.ID, func(p *model.Principal) error {
		a := p.Access[key]
		if a.SupervisorID == "" {
			a.SupervisorID = reviewer
			p.Access[key] = a
		}
		return nil
	})
	if err != nil {
		s.opt.log.WarnContext(ctx, "caching legacy supervisor failed", "user_id", user.ID, "app_key", key, "error", err)
	}
	return reviewer
}

// SyncSupervisorCodes replaces the supervisor's code map with one entry per
// assignment. Existing codes survive with refreshed metadata, new apps get
// a fresh code and apps no longer assigned are dropped.
func (s *AccessService) SyncSupervisorCodes(ctx context.Context, supervisorID string, assignments []AppAssignment) (map[string]model.AccessCodeEntry, error) {
	normalized := normalizeAssignments(assignments)
	var out map[string]model.AccessCodeEntry

	err := repository.RetryOnConflict(ctx, func(ctx context.Context) error {
		now := s.opt.now().UTC()
		p, err := s.principals.Mutate(ctx, supervisorID, func(p *model.Principal) error {
			next := make(map[string]model.AccessCodeEntry, len(normalized))
			for _, a := range normalized {
				if cur, ok := p.AccessCodes[a.AppKey]; ok {
					cur.AppID = a.AppID
					cur.AppKey = a.AppKey
					cur.AppName = firstNonEmpty(a.AppName, cur.AppName, a.AppKey)
					cur.AppPath = firstNonEmpty(a.AppPath, cur.AppPath)
					cur.UpdatedAt = now
					next[a.AppKey] = cur
					continue
				}
				code, err := utils.GenerateAccessCode()
				if err != nil {
					return err
				}
				next[a.AppKey] = model.AccessCodeEntry{
					Code:      code,
					AppID:     a.AppID,
					AppKey:    a.AppKey,
					AppName:   firstNonEmpty(a.AppName, a.AppKey),
					AppPath:   a.AppPath,
					CreatedAt: now,
					UpdatedAt: now,
				}
			}
			p.AccessCodes = next
			p.UpdatedAt = now
			return nil
		})
		if err != nil {
			return err
		}
		out = p.AccessCodes
		return nil
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: supervisor not found", ErrBadRequest)
	}
	if err != nil {
		return nil, fmt.Errorf("sync supervisor codes: %w", err)
	}
	s.opt.log.InfoContext(ctx, "supervisor access codes synced", "supervisor_id", supervisorID, "assignments", len(normalized))
	return out, nil
}

// normalizeAssignments normalizes app keys, drops empty ones and keeps the
// last assignment for each key, in first-seen order.
func normalizeAssignments(in []AppAssignment) []AppAssignment {
	index := map[string]int{}
	var out []AppAssignment
	for _, a := range in {
		key := utils.NormalizeAppKey(a.AppKey)
		if key == "" {
			continue
		}
		a.AppKey = key
		if i, ok := index[key]; ok {
			out[i] = a
			continue
		}
		index[key] = len(out)
		out = append(out, a)
	}
	return out
}

// RegenerateSupervisorCode replaces the code of one existing entry and
// mails the supervisor the new code once the change is committed.
func (s *AccessService) RegenerateSupervisorCode(ctx context.Context, supervisorID, appKey string) (model.AccessCodeEntry, error) {
	key := utils.NormalizeAppKey(appKey)
	if key == "" {
		return model.AccessCodeEntry{}, fmt.Errorf("%w: invalid app key", ErrBadRequest)
	}

	var entry model.AccessCodeEntry
	errNoEntry := fmt.Errorf("%w: supervisor does not have an access code for this application", ErrBadRequest)
	p, err := s.principals.Mutate(ctx, supervisorID, func(p *model.Principal) error {
		cur, ok := p.AccessCodes[key]
		if !ok {
			return errNoEntry
		}
		code, err := utils.GenerateAccessCode()
		if err != nil {
			return err
		}
		now := s.opt.now().UTC()
		cur.Code = code
		cur.AppKey = key
		cur.UpdatedAt = now
		p.AccessCodes[key] = cur
		p.UpdatedAt = now
		entry = cur
		return nil
	})
	if errors.Is(err, repository.ErrNotFound) {
		return model.AccessCodeEntry{}, fmt.Errorf("%w: supervisor not found", ErrBadRequest)
	}
	if err != nil {
		return model.AccessCodeEntry{}, err
	}

	s.opt.log.InfoContext(ctx, "supervisor access code regenerated", "supervisor_id", supervisorID, "app_key", key)
	if p.Email != "" {
		s.notify(ctx, queue.Notification{
			Kind:    queue.KindSupervisorCodeUpdated,
			To:      p.Email,
			Name:    p.DisplayName("Supervisor"),
			AppName: entry.DisplayName(),
			Code:    entry.Code,
		})
	}
	return entry, nil
}

// SendSupervisorWelcome mails a supervisor their temporary password and
// every access code they currently hold. The mail goes out through the
// direct Sender so the password never reaches the broker.
func (s *AccessService) SendSupervisorWelcome(ctx context.Context, supervisorID, password string) error {
	p, err := s.principals.GetByID(ctx, supervisorID)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: supervisor not found", ErrNotFound)
	}
	if err != nil {
		return err
	}
	if p.Email == "" {
		return fmt.Errorf("%w: supervisor does not have an email address", ErrBadRequest)
	}

	apps := make([]queue.AppCode, 0, len(p.AccessCodes))
	for _, key := range slices.Sorted(maps.Keys(p.AccessCodes)) {
		e := p.AccessCodes[key]
		apps = append(apps, queue.AppCode{AppName: e.DisplayName(), AppKey: e.AppKey, AccessCode: e.Code})
	}
	n := queue.Notification{
		Kind:     queue.KindSupervisorWelcome,
		To:       p.Email,
		Name:     p.DisplayName("Supervisor"),
		Password: password,
		Apps:     apps,
	}
	if err := s.opt.sender.Send(ctx, n); err != nil {
		return fmt.Errorf("send welcome email: %w", err)
	}
	s.opt.log.InfoContext(ctx, "supervisor welcome email sent", "supervisor_id", supervisorID, "apps", len(apps))
	return nil
}

// notify publishes n. Delivery problems never undo a committed change, so
// they are only logged.
func (s *AccessService) notify(ctx context.Context, n queue.Notification) {
	if err := s.opt.notifier.Notify(ctx, n); err != nil {
		s.opt.log.ErrorContext(ctx, "notification publish failed", "kind", n.Kind, "to", n.To, "error", err)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
