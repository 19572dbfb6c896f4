// Package mailer renders and delivers the transactional emails that carry
// account-action tokens: the activation email sent on registration and the
// password-reset email. Delivery is dispatched fire-and-forget; a failed
// send is logged and never propagated to the request that triggered it.
package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"time"

	"github.com/vibast-solutions/ms-go-accounts/config"

	"github.com/sirupsen/logrus"
)

type Kind string

const (
	KindNewAccount    Kind = "new-account"
	KindResetPassword Kind = "reset-password"
)

// Dispatcher is the fire-and-forget surface the account service calls.
type Dispatcher interface {
	Dispatch(kind Kind, email, token string)
}

// Sender performs a single blocking delivery.
type Sender interface {
	Send(kind Kind, email, token string) error
}

//go:embed templates/*.html.tmpl
var templateFS embed.FS

type emailData struct {
	Subject string
	HTML    string
}

// SMTPMailer renders the embedded templates and delivers over SMTP with
// optional PLAIN auth. With no SMTP host or from-address configured it only
// logs what it would have sent.
type SMTPMailer struct {
	smtp          config.SMTPConfig
	appName       string
	activationURL string
	resetURL      string
	tokenTTL      time.Duration
	templates     *template.Template
}

func NewSMTPMailer(cfg *config.Config) *SMTPMailer {
	return &SMTPMailer{
		smtp:          cfg.SMTP,
		appName:       cfg.AppName,
		activationURL: cfg.AccountActivationURL,
		resetURL:      cfg.PasswordResetURL,
		tokenTTL:      cfg.ActionTokenTTL,
		templates:     template.Must(template.ParseFS(templateFS, "templates/*.html.tmpl")),
	}
}

func (m *SMTPMailer) Send(kind Kind, email, token string) error {
	data, err := m.render(kind, email, token)
	if err != nil {
		return err
	}

	if !m.smtp.Enabled() {
		logrus.WithFields(logrus.Fields{
			"kind":    kind,
			"email":   email,
			"subject": data.Subject,
		}).Info("email delivery disabled, skipping send")
		return nil
	}

	var auth smtp.Auth
	if m.smtp.User != "" {
		auth = smtp.PlainAuth("", m.smtp.User, m.smtp.Password, m.smtp.Host)
	}

	addr := net.JoinHostPort(m.smtp.Host, fmt.Sprintf("%d", m.smtp.Port))
	msg := buildMessage(m.smtp.FromName, m.smtp.FromEmail, email, data)

	if err := smtp.SendMail(addr, auth, m.smtp.FromEmail, []string{email}, msg); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"kind":  kind,
		"email": email,
	}).Info("email sent")
	return nil
}

func (m *SMTPMailer) render(kind Kind, email, token string) (*emailData, error) {
	switch kind {
	case KindNewAccount:
		html, err := m.execute("new_account.html.tmpl", map[string]any{
			"AppName":  m.appName,
			"Username": email,
			"Link":     m.activationURL + "?token=" + token,
		})
		if err != nil {
			return nil, err
		}
		return &emailData{
			Subject: fmt.Sprintf("%s - Please confirm your email", m.appName),
			HTML:    html,
		}, nil
	case KindResetPassword:
		html, err := m.execute("reset_password.html.tmpl", map[string]any{
			"AppName":    m.appName,
			"Username":   email,
			"Link":       m.resetURL + "?token=" + token,
			"ValidHours": int(m.tokenTTL.Hours()),
		})
		if err != nil {
			return nil, err
		}
		return &emailData{
			Subject: fmt.Sprintf("%s - Password recovery for %s", m.appName, email),
			HTML:    html,
		}, nil
	default:
		return nil, fmt.Errorf("unknown email kind %q", kind)
	}
}

func (m *SMTPMailer) execute(name string, data map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := m.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func buildMessage(fromName, fromEmail, to string, data *emailData) []byte {
	var buf bytes.Buffer
	if fromName != "" {
		fmt.Fprintf(&buf, "From: %s <%s>\r\n", fromName, fromEmail)
	} else {
		fmt.Fprintf(&buf, "From: %s\r\n", fromEmail)
	}
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", data.Subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(data.HTML)
	return buf.Bytes()
}
