package queue

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"time"
)

// SMTPConfig describes the outgoing mail relay.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Pass     string
	From     string
	FromName string
}

// Mailer renders notifications into HTML email and hands them to an SMTP
// relay. With no Host configured it only logs what it would have sent.
type Mailer struct {
	cfg  SMTPConfig
	log  *slog.Logger
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewMailer returns a Mailer using net/smtp.
func NewMailer(cfg SMTPConfig, log *slog.Logger) *Mailer {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &Mailer{cfg: cfg, log: log, send: smtp.SendMail}
}

// Send renders n and delivers it.
func (m *Mailer) Send(ctx context.Context, n Notification) error {
	subject, body, err := Render(n)
	if err != nil {
		return err
	}
	if m.cfg.Host == "" {
		m.log.InfoContext(ctx, "smtp not configured, skipping email", "kind", n.Kind, "to", n.To, "subject", subject)
		return nil
	}
	msg, err := m.compose(n.To, subject, body)
	if err != nil {
		return err
	}
	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Pass, m.cfg.Host)
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	return m.send(addr, auth, m.sender(), []string{n.To}, msg)
}

func (m *Mailer) sender() string {
	if m.cfg.From != "" {
		return m.cfg.From
	}
	return m.cfg.User
}

func (m *Mailer) compose(to, subject, body string) ([]byte, error) {
	if _, err := mail.ParseAddress(to); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	from := (&mail.Address{Name: m.cfg.FromName, Address: m.sender()}).String()
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(body)
	return b.Bytes(), nil
}

var templates = template.Must(template.New("mail").Parse(`
{{define "access_code"}}<html><body>
<h1>MetaVR Access Code</h1>
<p>Hi {{.Name}},</p>
<p>Your request to access <strong>{{.AppName}}</strong> has been approved.</p>
<p>Your access code:</p>
<p style="font-size:28px;letter-spacing:4px;"><strong>{{.Code}}</strong></p>
<p>You can now use this code to access the application.</p>
<p>If you have any questions, please contact your supervisor.</p>
<p>Best regards,<br>MetaVR Team</p>
</body></html>{{end}}
{{define "access_rejected"}}<html><body>
<h1>Access Request Update</h1>
<p>Hi {{.Name}},</p>
<p>Unfortunately, your request to access <strong>{{.AppName}}</strong> has been rejected.</p>
<p>If you have any questions, please contact your supervisor.</p>
<p>Best regards,<br>MetaVR Team</p>
</body></html>{{end}}
{{define "supervisor_code_updated"}}<html><body>
<h1>Hi {{.Name}},</h1>
<p>Your access code for <strong>{{.AppName}}</strong> has been updated. Use the new code below:</p>
<p style="font-size:28px;letter-spacing:4px;"><strong>{{.Code}}</strong></p>
<p>Please keep this code secure.</p>
</body></html>{{end}}
{{define "supervisor_welcome"}}<html><body>
<h1>Welcome, {{.Name}}!</h1>
<p>Your MetaVR Supervisor account has been created.</p>
<p>Use the credentials below to sign in to the supervisor portal:</p>
<p><strong>Email:</strong> {{.To}}</p>
<p><strong>Temporary Password:</strong> {{.Password}}</p>
<p>Please change your password after signing in for the first time.</p>
{{if .Apps}}<p>Your initial access codes:</p>
<table>{{range .Apps}}<tr><td>{{.AppName}}</td><td><strong>{{.AccessCode}}</strong></td></tr>{{end}}</table>
{{else}}<p>No applications have been assigned yet.</p>{{end}}
<p>If you have any questions, please contact your administrator.</p>
</body></html>{{end}}
`))

// Render returns the subject and HTML body for n.
func Render(n Notification) (string, string, error) {
	var subject string
	switch n.Kind {
	case KindAccessCode:
		subject = "Your Access Code for " + n.AppName
	case KindAccessRejected:
		subject = "Access Request for " + n.AppName
	case KindSupervisorCodeUpdated:
		subject = "Access Code Updated - " + n.AppName
	case KindSupervisorWelcome:
		subject = "Welcome to MetaVR Supervisor Portal"
	default:
		return "", "", fmt.Errorf("unknown notification kind %q", n.Kind)
	}
	var b bytes.Buffer
	if err := templates.ExecuteTemplate(&b, string(n.Kind), n); err != nil {
		return "", "", fmt.Errorf("render %s: %w", n.Kind, err)
	}
	return subject, b.String(), nil
}
