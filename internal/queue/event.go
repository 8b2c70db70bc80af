// Package queue carries notification events from the request path to the
// mail sender over RabbitMQ.
package queue

import "time"

// NotificationsQueue is the durable queue every notification travels on.
const NotificationsQueue = "access.notifications"

// NotificationKind selects the email template.
type NotificationKind string

const (
	KindAccessCode            NotificationKind = "access_code"
	KindAccessRejected        NotificationKind = "access_rejected"
	KindSupervisorCodeUpdated NotificationKind = "supervisor_code_updated"
	KindSupervisorWelcome     NotificationKind = "supervisor_welcome"
)

// AppCode is one line of the supervisor welcome email.
type AppCode struct {
	AppName    string `json:"app_name"`
	AppKey     string `json:"app_key"`
	AccessCode string `json:"access_code"`
}

// Notification is published after the state change it reports has been
// committed. Consumers render it into an email addressed to To.
type Notification struct {
	Kind      NotificationKind `json:"kind"`
	To        string           `json:"to"`
	Name      string           `json:"name"`
	AppName   string           `json:"app_name,omitempty"`
	Code      string           `json:"code,omitempty"`
	Password  string           `json:"password,omitempty"`
	Apps      []AppCode        `json:"apps,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
