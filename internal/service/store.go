package service

import (
	"context"
	"time"

	"github.com/metavr/access-service/internal/model"
	"github.com/metavr/access-service/internal/queue"
)

// PrincipalStore is the subset of repository.PrincipalRepo the services use.
// Lookups report repository.ErrNotFound when nothing matches.
type PrincipalStore interface {
	Create(ctx context.Context, p model.Principal) error
	GetByID(ctx context.Context, id string) (model.Principal, error)
	FindByEmail(ctx context.Context, email string, role model.Role) (model.Principal, error)
	FindByAccessCode(ctx context.Context, role model.Role, appKey, code string) (model.Principal, error)
	ListByRole(ctx context.Context, role model.Role) ([]model.Principal, error)
	RecordLogin(ctx context.Context, id string, at time.Time) error
	Mutate(ctx context.Context, id string, fn func(p *model.Principal) error) (model.Principal, error)
	// MutateReviewed records rv and applies fn in one transaction. It reports
	// repository.ErrNotPending when the request was already reviewed.
	MutateReviewed(ctx context.Context, id string, rv model.RequestReview, fn func(p *model.Principal) error) (model.Principal, error)
}

// SessionStore persists session records.
type SessionStore interface {
	Create(ctx context.Context, s model.SessionRecord) error
	Get(ctx context.Context, id string) (model.SessionRecord, error)
	Touch(ctx context.Context, id string, at time.Time) error
	Revoke(ctx context.Context, id, reason string, at time.Time) (bool, error)
}

// HandshakeStore persists handshake records. MarkUsed must be a single
// conditional write that reports true to exactly one caller.
type HandshakeStore interface {
	Create(ctx context.Context, h model.HandshakeRecord) error
	Get(ctx context.Context, id string) (model.HandshakeRecord, error)
	MarkUsed(ctx context.Context, id string, at time.Time) (bool, error)
}

// ApplicationStore reads the applications lookup table.
type ApplicationStore interface {
	GetByID(ctx context.Context, id string) (model.Application, error)
	FindByPath(ctx context.Context, path string) (model.Application, error)
	FindByAppKey(ctx context.Context, appKey string) (model.Application, error)
	List(ctx context.Context) ([]model.Application, error)
}

// AccessRequestStore persists user access requests.
type AccessRequestStore interface {
	Create(ctx context.Context, req model.AccessRequest) error
	GetByID(ctx context.Context, id string) (model.AccessRequest, error)
	HasPending(ctx context.Context, email, appID string) (bool, error)
	ListPending(ctx context.Context) ([]model.AccessRequest, error)
	ListRecent(ctx context.Context, limit int) ([]model.AccessRequest, error)
	LatestApprovedReviewer(ctx context.Context, email, appKey string) (string, error)
	Review(ctx context.Context, id string, status model.RequestStatus, reviewer, reason string, at time.Time) (bool, error)
}

// Notifier hands a notification to the delivery pipeline.
type Notifier interface {
	Notify(ctx context.Context, n queue.Notification) error
}

// Sender delivers a notification right away, without the broker. It carries
// messages holding secrets that must not be persisted in a queue.
type Sender interface {
	Send(ctx context.Context, n queue.Notification) error
}

// SecurityLog records the specific reason behind a generic denial.
type SecurityLog interface {
	Event(ctx context.Context, event string, attrs ...any)
}

type nopSecurityLog struct{}

func (nopSecurityLog) Event(context.Context, string, ...any) {}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, queue.Notification) error { return nil }

type nopSender struct{}

func (nopSender) Send(context.Context, queue.Notification) error { return nil }
