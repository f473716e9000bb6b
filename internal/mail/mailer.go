package mail

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"
)

// Mailer sends verification and password reset links over plain-auth SMTP.
// With no host configured it only logs, matching a dev setup without a
// mail relay.
type Mailer struct {
	enabled  bool
	host     string
	port     int
	user     string
	password string
	from     string
	baseURL  string
}

func NewMailer(enabled bool, host string, port int, user, password, from, baseURL string) *Mailer {
	return &Mailer{
		enabled:  enabled && host != "",
		host:     host,
		port:     port,
		user:     user,
		password: password,
		from:     from,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

func (m *Mailer) SendVerification(to, token string) error {
	link := fmt.Sprintf("%s/verify?token=%s", m.baseURL, token)
	body := "Welcome! Verify your email by opening:\r\n\r\n" + link + "\r\n"
	return m.send(to, "Verify your email", body)
}

func (m *Mailer) SendPasswordReset(to, token string) error {
	link := fmt.Sprintf("%s/reset?token=%s", m.baseURL, token)
	body := "A password reset was requested for your account.\r\n\r\n" + link +
		"\r\n\r\nIgnore this mail if you did not request it.\r\n"
	return m.send(to, "Reset your password", body)
}

func (m *Mailer) send(to, subject, body string) error {
	if !m.enabled {
		log.Printf("mail disabled, skipping %q to %s", subject, to)
		return nil
	}

	msg := strings.Join([]string{
		"From: " + m.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.password, m.host)
	}
	if err := smtp.SendMail(addr, auth, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail failed: %w", err)
	}
	return nil
}
