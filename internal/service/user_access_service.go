package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/metavr/access-service/internal/model"
	"github.com/metavr/access-service/internal/queue"
	"github.com/metavr/access-service/internal/repository"
	"github.com/metavr/access-service/internal/utils"
)

// History limits for ListRequestHistory.
const (
	DefaultHistoryLimit = 200
	MinHistoryLimit     = 25
	MaxHistoryLimit     = 500
)

// SubmitAccessInput is a public request for access to one or more apps.
// AppIDs may hold store ids, paths, app keys or slugs.
type SubmitAccessInput struct {
	Email  string
	AppIDs []string
	Name   string
	Phone  string
}

// AppRef names an application in responses.
type AppRef struct {
	AppID   string `json:"appId"`
	AppKey  string `json:"appKey"`
	AppName string `json:"appName"`
}

// SubmitResult summarises SubmitAccessRequest.
type SubmitResult struct {
	Message          string   `json:"message"`
	CreatedRequests  int      `json:"createdRequests"`
	AlreadyHasAccess []AppRef `json:"alreadyHasAccess"`
}

// ExistingApp is an application a requesting user already holds a code for.
type ExistingApp struct {
	AppKey    string    `json:"appKey"`
	AppName   string    `json:"appName"`
	Enabled   bool      `json:"enabled"`
	GrantedAt time.Time `json:"grantedAt"`
}

// PendingRequest is a pending request enriched with the requesting user.
type PendingRequest struct {
	model.AccessRequest
	UserID       string        `json:"userId,omitempty"`
	ExistingApps []ExistingApp `json:"existingApps"`
}

// UserApp is one approved application in ListUsersWithAccess.
type UserApp struct {
	AppKey     string `json:"appKey"`
	AppName    string `json:"appName"`
	AppID      string `json:"appId"`
	Enabled    bool   `json:"enabled"`
	AccessCode string `json:"accessCode"`
}

// UserWithAccess is a user holding at least one approved app the
// supervisor manages.
type UserWithAccess struct {
	UserID string    `json:"userId"`
	Email  string    `json:"email"`
	Name   string    `json:"name"`
	Phone  string    `json:"phone"`
	Apps   []UserApp `json:"apps"`
}

// UserAccessService runs the user access request workflow: public
// submission, supervisor review and management of the resulting codes.
type UserAccessService struct {
	principals PrincipalStore
	apps       ApplicationStore
	requests   AccessRequestStore
	opt        options
}

func NewUserAccessService(principals PrincipalStore, apps ApplicationStore, requests AccessRequestStore, opts ...Option) *UserAccessService {
	return &UserAccessService{principals: principals, apps: apps, requests: requests, opt: buildOptions(opts)}
}

// CoversApplication reports whether a supervisor assignment list covers
// the application identified by id, appKey and appPath.
func CoversApplication(assigned []string, appID, appKey, appPath string) bool {
	slug := model.PathSlug(appPath)
	for _, a := range assigned {
		if a == "" {
			continue
		}
		if a == appID || a == appKey || a == appPath {
			return true
		}
		if slug != "" && (a == slug || a == "apps/"+slug) {
			return true
		}
	}
	return false
}

// SubmitAccessRequest records a pending request per resolvable app the
// user does not already hold or already have pending. First-time users must
// give a name and phone.
func (s *UserAccessService) SubmitAccessRequest(ctx context.Context, in SubmitAccessInput) (SubmitResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	name := strings.TrimSpace(in.Name)
	phone := strings.TrimSpace(in.Phone)
	if email == "" {
		return SubmitResult{}, fmt.Errorf("%w: email is required", ErrBadRequest)
	}
	if len(in.AppIDs) == 0 {
		return SubmitResult{}, fmt.Errorf("%w: at least one application is required", ErrBadRequest)
	}

	user, err := s.upsertUser(ctx, email, name, phone)
	if err != nil {
		return SubmitResult{}, err
	}

	apps := s.resolveApplications(ctx, in.AppIDs)
	if len(apps) == 0 {
		return SubmitResult{}, fmt.Errorf("%w: no valid applications found", ErrBadRequest)
	}

	res := SubmitResult{AlreadyHasAccess: []AppRef{}}
	for _, app := range apps {
		key := utils.NormalizeAppKey(firstNonEmpty(app.AppKey, app.Slug(), app.ID))
		appName := firstNonEmpty(app.Name, "Unknown App")

		if user.Access[key].Approved || user.AccessCodes[key].Code != "" {
			res.AlreadyHasAccess = append(res.AlreadyHasAccess, AppRef{AppID: app.ID, AppKey: key, AppName: appName})
			continue
		}
		pending, err := s.requests.HasPending(ctx, email, app.ID)
		if err != nil {
			return SubmitResult{}, fmt.Errorf("check pending request: %w", err)
		}
		if pending {
			s.opt.log.InfoContext(ctx, "access request already pending", "email", email, "app_id", app.ID)
			continue
		}

		req := model.AccessRequest{
			ID:          uuid.NewString(),
			Email:       email,
			Name:        firstNonEmpty(name, user.Name),
			Phone:       firstNonEmpty(phone, user.Phone),
			AppID:       app.ID,
			AppKey:      key,
			AppPath:     firstNonEmpty(app.Path, "apps/"+firstNonEmpty(app.AppKey, app.ID)),
			AppName:     appName,
			Status:      model.RequestPending,
			RequestedAt: s.opt.now().UTC(),
		}
		if err := s.requests.Create(ctx, req); err != nil {
			return SubmitResult{}, fmt.Errorf("create access request: %w", err)
		}
		res.CreatedRequests++
		s.opt.log.InfoContext(ctx, "access request created", "email", email, "app_id", app.ID, "app_key", key)
	}

	switch {
	case res.CreatedRequests > 0:
		res.Message = fmt.Sprintf("Access request(s) submitted successfully for %d app(s)", res.CreatedRequests)
	case len(res.AlreadyHasAccess) > 0:
		res.Message = "You already have access to the selected application(s)"
	default:
		res.Message = "No access requests were created"
	}
	return res, nil
}

func (s *UserAccessService) upsertUser(ctx context.Context, email, name, phone string) (model.Principal, error) {
	user, err := s.principals.FindByEmail(ctx, email, model.RoleUser)
	if err == nil {
		if name == "" && phone == "" {
			return user, nil
		}
		return s.principals.Mutate(ctx, user.ID, func(p *model.Principal) error {
			if name != "" {
				p.Name = name
			}
			if phone != "" {
				p.Phone = phone
			}
			p.UpdatedAt = s.opt.now().UTC()
			return nil
		})
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.Principal{}, fmt.Errorf("lookup user: %w", err)
	}
	if name == "" || phone == "" {
		return model.Principal{}, fmt.Errorf("%w: name and phone are required for first-time users", ErrBadRequest)
	}

	now := s.opt.now().UTC()
	user = model.Principal{
		ID:          uuid.NewString(),
		Email:       email,
		Name:        name,
		Phone:       phone,
		Role:        model.RoleUser,
		Status:      model.StatusActive,
		AccessCodes: map[string]model.AccessCodeEntry{},
		Access:      map[string]model.AppAccess{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.principals.Create(ctx, user); err != nil {
		return model.Principal{}, fmt.Errorf("create user: %w", err)
	}
	s.opt.log.InfoContext(ctx, "user created", "user_id", user.ID, "email", email)
	return user, nil
}

// resolveApplications looks each identifier up by id, then path, then app
// key, then slug. Identifiers that resolve to nothing are skipped.
func (s *UserAccessService) resolveApplications(ctx context.Context, ids []string) []model.Application {
	var (
		out     []model.Application
		catalog []model.Application
		loaded  bool
	)
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		app, err := s.resolveApplication(ctx, id, func() ([]model.Application, error) {
			if loaded {
				return catalog, nil
			}
			all, err := s.apps.List(ctx)
			if err != nil {
				return nil, err
			}
			catalog, loaded = all, true
			return catalog, nil
		})
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				s.opt.log.ErrorContext(ctx, "application lookup failed", "app_id", id, "error", err)
			} else {
				s.opt.log.InfoContext(ctx, "application not found", "app_id", id)
			}
			continue
		}
		if app.AppKey == "" {
			app.AppKey = firstNonEmpty(app.Slug(), id)
		}
		out = append(out, app)
	}
	return out
}

func (s *UserAccessService) resolveApplication(ctx context.Context, id string, all func() ([]model.Application, error)) (model.Application, error) {
	app, err := s.apps.GetByID(ctx, id)
	if !errors.Is(err, repository.ErrNotFound) {
		return app, err
	}
	path := id
	if !strings.HasPrefix(path, "apps/") {
		path = "apps/" + id
	}
	app, err = s.apps.FindByPath(ctx, path)
	if !errors.Is(err, repository.ErrNotFound) {
		return app, err
	}
	app, err = s.apps.FindByAppKey(ctx, utils.NormalizeAppKey(id))
	if !errors.Is(err, repository.ErrNotFound) {
		return app, err
	}

	apps, err := all()
	if err != nil {
		return model.Application{}, err
	}
	slug := model.PathSlug(id)
	for _, a := range apps {
		ps := a.Slug()
		if ps == slug || a.AppKey == slug || utils.NormalizeAppKey(ps) == utils.NormalizeAppKey(slug) {
			return a, nil
		}
	}
	return model.Application{}, repository.ErrNotFound
}

func (s *UserAccessService) supervisor(ctx context.Context, id string) (model.Principal, error) {
	sup, err := s.principals.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Principal{}, fmt.Errorf("%w: supervisor not found", ErrNotFound)
	}
	if err != nil {
		return model.Principal{}, err
	}
	return sup, nil
}

// ListPendingRequests returns the pending requests the supervisor may
// review, grouped by app key.
func (s *UserAccessService) ListPendingRequests(ctx context.Context, supervisorID string) (map[string][]PendingRequest, error) {
	sup, err := s.supervisor(ctx, supervisorID)
	if err != nil {
		return nil, err
	}
	pending, err := s.requests.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}

	users := map[string]*model.Principal{}
	grouped := map[string][]PendingRequest{}
	for _, req := range pending {
		if !CoversApplication(sup.AssignedApplications, req.AppID, req.AppKey, req.AppPath) {
			continue
		}
		user, ok := users[req.Email]
		if !ok {
			u, err := s.principals.FindByEmail(ctx, req.Email, model.RoleUser)
			switch {
			case err == nil:
				user = &u
			case !errors.Is(err, repository.ErrNotFound):
				return nil, fmt.Errorf("lookup user: %w", err)
			}
			users[req.Email] = user
		}

		item := PendingRequest{AccessRequest: req, ExistingApps: []ExistingApp{}}
		if user != nil {
			item.UserID = user.ID
			item.Name = firstNonEmpty(req.Name, user.Name)
			item.Phone = firstNonEmpty(req.Phone, user.Phone)
			for _, key := range slices.Sorted(maps.Keys(user.AccessCodes)) {
				code := user.AccessCodes[key]
				a, granted := user.Access[key]
				grantedAt := code.UpdatedAt
				if grantedAt.IsZero() {
					grantedAt = code.CreatedAt
				}
				item.ExistingApps = append(item.ExistingApps, ExistingApp{
					AppKey:    key,
					AppName:   firstNonEmpty(code.AppName, key),
					Enabled:   !granted || a.Enabled,
					GrantedAt: grantedAt,
				})
			}
		}
		grouped[req.AppKey] = append(grouped[req.AppKey], item)
	}
	return grouped, nil
}

// ListRequestHistory returns the most recent requests, of any status, for
// the supervisor's applications. limit is clamped to [25, 500]; zero means
// the default of 200.
func (s *UserAccessService) ListRequestHistory(ctx context.Context, supervisorID string, limit int) ([]model.AccessRequest, error) {
	if limit == 0 {
		limit = DefaultHistoryLimit
	}
	limit = min(max(limit, MinHistoryLimit), MaxHistoryLimit)

	sup, err := s.supervisor(ctx, supervisorID)
	if err != nil {
		return nil, err
	}
	out := []model.AccessRequest{}
	if len(sup.AssignedApplications) == 0 {
		return out, nil
	}

	recent, err := s.requests.ListRecent(ctx, limit*3)
	if err != nil {
		return nil, fmt.Errorf("list recent requests: %w", err)
	}
	for _, req := range recent {
		if !CoversApplication(sup.AssignedApplications, req.AppID, req.AppKey, req.AppPath) {
			continue
		}
		out = append(out, req)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// reviewable loads a pending request the supervisor is allowed to review.
func (s *UserAccessService) reviewable(ctx context.Context, supervisorID, requestID string) (model.AccessRequest, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.AccessRequest{}, fmt.Errorf("%w: access request not found", ErrNotFound)
	}
	if err != nil {
		return model.AccessRequest{}, err
	}
	if req.Status != model.RequestPending {
		return model.AccessRequest{}, fmt.Errorf("%w: request is not pending", ErrBadRequest)
	}
	sup, err := s.supervisor(ctx, supervisorID)
	if err != nil {
		return model.AccessRequest{}, err
	}
	if !CoversApplication(sup.AssignedApplications, req.AppID, req.AppKey, req.AppPath) {
		s.opt.security.Event(ctx, "review_forbidden", "supervisor_id", supervisorID, "request_id", requestID, "app_key", req.AppKey)
		return model.AccessRequest{}, fmt.Errorf("%w: supervisor does not manage this application", ErrForbidden)
	}
	return req, nil
}

// ApproveAccessRequest approves a pending request, mints a fresh code for
// the user and mails it. It returns the user's id.
func (s *UserAccessService) ApproveAccessRequest(ctx context.Context, supervisorID, requestID string) (string, error) {
	req, err := s.reviewable(ctx, supervisorID, requestID)
	if err != nil {
		return "", err
	}
	user, err := s.principals.FindByEmail(ctx, req.Email, model.RoleUser)
	if errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("%w: user not found", ErrNotFound)
	}
	if err != nil {
		return "", err
	}

	now := s.opt.now().UTC()
	rv := model.RequestReview{RequestID: req.ID, Status: model.RequestApproved, Reviewer: supervisorID, At: now}
	var code string
	err = repository.RetryOnConflict(ctx, func(ctx context.Context) error {
		_, err := s.principals.MutateReviewed(ctx, user.ID, rv, func(p *model.Principal) error {
			return grant(p, req, supervisorID, now, &code)
		})
		return err
	})
	if errors.Is(err, repository.ErrNotPending) {
		return "", fmt.Errorf("%w: request is not pending", ErrBadRequest)
	}
	if err != nil {
		return "", fmt.Errorf("approve request: %w", err)
	}

	s.notify(ctx, queue.Notification{Kind: queue.KindAccessCode, To: req.Email, Name: req.Name, AppName: req.AppName, Code: code})
	s.opt.log.InfoContext(ctx, "access request approved", "request_id", req.ID, "email", req.Email, "app_key", req.AppKey)
	return user.ID, nil
}

// grant mints a fresh code for the request's app and marks it approved by
// supervisorID. An existing entry keeps its creation time.
func grant(p *model.Principal, req model.AccessRequest, supervisorID string, now time.Time, code *string) error {
	c, err := utils.GenerateAccessCode()
	if err != nil {
		return err
	}
	created := now
	if cur, ok := p.AccessCodes[req.AppKey]; ok && !cur.CreatedAt.IsZero() {
		created = cur.CreatedAt
	}
	p.AccessCodes[req.AppKey] = model.AccessCodeEntry{
		Code:      c,
		AppID:     req.AppID,
		AppKey:    req.AppKey,
		AppName:   req.AppName,
		AppPath:   req.AppPath,
		CreatedAt: created,
		UpdatedAt: now,
	}
	p.Access[req.AppKey] = model.AppAccess{Approved: true, Enabled: true, SupervisorID: supervisorID}
	p.UpdatedAt = now
	*code = c
	return nil
}

// RejectAccessRequest rejects a pending request and mails the user. A
// known user loses the approval for the app in the same write.
func (s *UserAccessService) RejectAccessRequest(ctx context.Context, supervisorID, requestID, reason string) error {
	req, err := s.reviewable(ctx, supervisorID, requestID)
	if err != nil {
		return err
	}
	now := s.opt.now().UTC()
	rv := model.RequestReview{
		RequestID: req.ID,
		Status:    model.RequestRejected,
		Reviewer:  supervisorID,
		Reason:    strings.TrimSpace(reason),
		At:        now,
	}

	user, err := s.principals.FindByEmail(ctx, req.Email, model.RoleUser)
	switch {
	case err == nil:
		err = repository.RetryOnConflict(ctx, func(ctx context.Context) error {
			_, err := s.principals.MutateReviewed(ctx, user.ID, rv, func(p *model.Principal) error {
				a := p.Access[req.AppKey]
				a.Approved = false
				p.Access[req.AppKey] = a
				p.UpdatedAt = now
				return nil
			})
			return err
		})
	case errors.Is(err, repository.ErrNotFound):
		var ok bool
		ok, err = s.requests.Review(ctx, rv.RequestID, rv.Status, rv.Reviewer, rv.Reason, rv.At)
		if err == nil && !ok {
			err = repository.ErrNotPending
		}
	}
	if errors.Is(err, repository.ErrNotPending) {
		return fmt.Errorf("%w: request is not pending", ErrBadRequest)
	}
	if err != nil {
		return fmt.Errorf("reject request: %w", err)
	}

	s.notify(ctx, queue.Notification{Kind: queue.KindAccessRejected, To: req.Email, Name: req.Name, AppName: req.AppName})
	s.opt.log.InfoContext(ctx, "access request rejected", "request_id", req.ID, "email", req.Email, "app_key", req.AppKey)
	return nil
}

// managedUserCode loads a user and its code for appKey, checking the
// supervisor manages that application.
func (s *UserAccessService) managedUserCode(ctx context.Context, supervisorID, userID, key string) (model.Principal, model.AccessCodeEntry, error) {
	if key == "" {
		return model.Principal{}, model.AccessCodeEntry{}, fmt.Errorf("%w: invalid app key", ErrBadRequest)
	}
	user, err := s.principals.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Principal{}, model.AccessCodeEntry{}, fmt.Errorf("%w: user not found", ErrNotFound)
	}
	if err != nil {
		return model.Principal{}, model.AccessCodeEntry{}, err
	}
	if user.Role != model.RoleUser {
		return model.Principal{}, model.AccessCodeEntry{}, fmt.Errorf("%w: user is not a regular user", ErrBadRequest)
	}
	entry, ok := user.AccessCodes[key]
	if !ok {
		return model.Principal{}, model.AccessCodeEntry{}, fmt.Errorf("%w: user does not have an access code for this application", ErrBadRequest)
	}
	sup, err := s.supervisor(ctx, supervisorID)
	if err != nil {
		return model.Principal{}, model.AccessCodeEntry{}, err
	}
	if !CoversApplication(sup.AssignedApplications, entry.AppID, key, entry.AppPath) {
		s.opt.security.Event(ctx, "manage_forbidden", "supervisor_id", supervisorID, "user_id", userID, "app_key", key)
		return model.Principal{}, model.AccessCodeEntry{}, fmt.Errorf("%w: supervisor does not manage this application", ErrForbidden)
	}
	return user, entry, nil
}

// RegenerateUserAccessCode replaces a user's code for appKey and mails the
// new one. It returns the new code.
func (s *UserAccessService) RegenerateUserAccessCode(ctx context.Context, supervisorID, userID, appKey string) (string, error) {
	key := utils.NormalizeAppKey(appKey)
	user, entry, err := s.managedUserCode(ctx, supervisorID, userID, key)
	if err != nil {
		return "", err
	}

	var code string
	_, err = s.principals.Mutate(ctx, user.ID, func(p *model.Principal) error {
		cur, ok := p.AccessCodes[key]
		if !ok {
			return fmt.Errorf("%w: user does not have an access code for this application", ErrBadRequest)
		}
		c, err := utils.GenerateAccessCode()
		if err != nil {
			return err
		}
		now := s.opt.now().UTC()
		cur.Code = c
		cur.UpdatedAt = now
		p.AccessCodes[key] = cur
		p.UpdatedAt = now
		code = c
		return nil
	})
	if err != nil {
		return "", err
	}

	s.notify(ctx, queue.Notification{Kind: queue.KindAccessCode, To: user.Email, Name: user.DisplayName("User"), AppName: entry.AppName, Code: code})
	s.opt.log.InfoContext(ctx, "user access code regenerated", "user_id", user.ID, "app_key", key, "supervisor_id", supervisorID)
	return code, nil
}

// ToggleUserAppAccess pauses or resumes a user's approved grant without
// touching the code.
func (s *UserAccessService) ToggleUserAppAccess(ctx context.Context, supervisorID, userID, appKey string, enabled bool) error {
	key := utils.NormalizeAppKey(appKey)
	user, _, err := s.managedUserCode(ctx, supervisorID, userID, key)
	if err != nil {
		return err
	}
	_, err = s.principals.Mutate(ctx, user.ID, func(p *model.Principal) error {
		a := p.Access[key]
		a.Enabled = enabled
		p.Access[key] = a
		p.UpdatedAt = s.opt.now().UTC()
		return nil
	})
	if err != nil {
		return err
	}
	s.opt.log.InfoContext(ctx, "user app access toggled", "user_id", user.ID, "app_key", key, "enabled", enabled, "supervisor_id", supervisorID)
	return nil
}

// ResendAccessCode mails a user their existing approved code again.
func (s *UserAccessService) ResendAccessCode(ctx context.Context, email, appKey string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	key := utils.NormalizeAppKey(appKey)
	if email == "" || key == "" {
		return fmt.Errorf("%w: email and appKey are required", ErrBadRequest)
	}
	user, err := s.principals.FindByEmail(ctx, email, model.RoleUser)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: user not found with this email address", ErrNotFound)
	}
	if err != nil {
		return err
	}
	entry, ok := user.AccessCodes[key]
	if !ok {
		return fmt.Errorf("%w: no access code found for this application, please request access first", ErrBadRequest)
	}
	if !user.Access[key].Approved {
		return fmt.Errorf("%w: access to this application has not been approved yet", ErrBadRequest)
	}

	n := queue.Notification{Kind: queue.KindAccessCode, To: email, Name: user.DisplayName("User"), AppName: entry.AppName, Code: entry.Code}
	if err := s.opt.notifier.Notify(ctx, n); err != nil {
		return fmt.Errorf("publish access code: %w", err)
	}
	s.opt.log.InfoContext(ctx, "access code resent", "user_id", user.ID, "app_key", key)
	return nil
}

// ListUsersWithAccess returns users holding approved codes for apps the
// supervisor manages.
func (s *UserAccessService) ListUsersWithAccess(ctx context.Context, supervisorID string) ([]UserWithAccess, error) {
	sup, err := s.supervisor(ctx, supervisorID)
	if err != nil {
		return nil, err
	}
	users, err := s.principals.ListByRole(ctx, model.RoleUser)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	out := []UserWithAccess{}
	for _, u := range users {
		var apps []UserApp
		for _, key := range slices.Sorted(maps.Keys(u.AccessCodes)) {
			code := u.AccessCodes[key]
			a := u.Access[key]
			if !a.Approved || !CoversApplication(sup.AssignedApplications, code.AppID, key, code.AppPath) {
				continue
			}
			apps = append(apps, UserApp{
				AppKey:     key,
				AppName:    firstNonEmpty(code.AppName, key),
				AppID:      code.AppID,
				Enabled:    a.Enabled,
				AccessCode: code.Code,
			})
		}
		if len(apps) == 0 {
			continue
		}
		out = append(out, UserWithAccess{UserID: u.ID, Email: u.Email, Name: u.Name, Phone: u.Phone, Apps: apps})
	}
	return out, nil
}

func (s *UserAccessService) notify(ctx context.Context, n queue.Notification) {
	if err := s.opt.notifier.Notify(ctx, n); err != nil {
		s.opt.log.ErrorContext(ctx, "notification publish failed", "kind", n.Kind, "to", n.To, "error", err)
	}
}
