package model

import "time"

// Role identifies the kind of actor a principal is. It never changes after
// the principal has been created.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSupervisor Role = "supervisor"
	RoleUser       Role = "user"
)

// Status controls whether a principal may log in.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusInactive  Status = "inactive"
)

// Principal represents a row of the `principals` table together with its
// child rows from `access_codes` and `app_access`.
//
// Fields:
//  ID                   – uuid primary key.
//  Email                – lower-cased email, not unique across roles.
//  PasswordHash         – bcrypt hash; only admins and supervisors have one.
//  AssignedApplications – opaque identifiers (id, path or slug); supervisors only.
//  AccessCodes          – per-application numeric codes keyed by appKey.
//  Access               – per-application grant state keyed by appKey (users only).
type Principal struct {
	ID                   string
	Email                string
	Name                 string
	Phone                string
	Role                 Role
	Status               Status
	PasswordHash         string
	AssignedApplications []string
	AccessCodes          map[string]AccessCodeEntry
	Access               map[string]AppAccess
	LastLoginAt          *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// DisplayName returns the principal's name, or fallback when it has none.
func (p Principal) DisplayName(fallback string) string {
	if p.Name != "" {
		return p.Name
	}
	return fallback
}

// AccessCodeEntry is one row of the `access_codes` table. Code is always
// nine digits and unique only within the owning principal.
type AccessCodeEntry struct {
	Code      string    `json:"code"`
	AppID     string    `json:"appId"`
	AppKey    string    `json:"appKey"`
	AppName   string    `json:"appName"`
	AppPath   string    `json:"appPath,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DisplayName returns AppName, falling back to the appKey.
func (e AccessCodeEntry) DisplayName() string {
	if e.AppName != "" {
		return e.AppName
	}
	return e.AppKey
}

// AppAccess is one row of the `app_access` table. Approved is set by a
// supervisor reviewing an access request; Enabled lets the supervisor pause
// an approved grant without discarding the code. SupervisorID is the
// reviewer responsible for the grant and may be empty for legacy rows.
type AppAccess struct {
	Approved     bool   `json:"approved"`
	Enabled      bool   `json:"enabled"`
	SupervisorID string `json:"supervisorId,omitempty"`
}

// Usable reports whether a code backed by this grant may be used to enter
// the application.
func (a AppAccess) Usable() bool { return a.Approved && a.Enabled }
