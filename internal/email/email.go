// Package email provides email sending functionality
package email

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"html/template"
	"log"
	"net/smtp"
	"strings"
)

// Config holds email configuration
type Config struct {
	Host        string
	Port        int
	User        string
	Password    string
	From        string
	FromName    string
	UseTLS      bool
	WebVaultURL string
}

// Service handles email sending
type Service struct {
	config    *Config
	templates map[string]*template.Template
}

// NewService creates a new email service
func NewService(config *Config) *Service {
	s := &Service{
		config:    config,
		templates: make(map[string]*template.Template),
	}
	s.loadTemplates()
	return s
}

// Email represents an email message
type Email struct {
	To       []string
	Subject  string
	Body     string
	HTMLBody string
}

// InviteEmailData holds data for organization invite emails
type InviteEmailData struct {
	OrgName     string
	WebVaultURL string
}

// loadTemplates loads all email templates
func (s *Service) loadTemplates() {

	// Organization Invite Template
	s.templates["org_invite"] = template.Must(template.New("org_invite").Parse(`
<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: #175ddc; color: white; padding: 24px; border-radius: 8px 8px 0 0; }
        .content { background: #f9fafb; padding: 24px; border-radius: 0 0 8px 8px; }
        .btn { display: inline-block; background: #175ddc; color: white; padding: 12px 20px; text-decoration: none; border-radius: 6px; margin-top: 16px; }
        .footer { margin-top: 24px; font-size: 12px; color: #6b7280; text-align: center; }
    </style>
</head>
<body>
<div class="container">
    <div class="header">
        <h2>You've Been Invited</h2>
    </div>
    <div class="content">
        <p>Hello,</p>
        <p>You have been invited to join the organization <strong>{{.OrgName}}</strong>.</p>
        <p>Register with this email address to accept the invitation.</p>

        <a href="{{.WebVaultURL}}" class="btn">Open Web Vault</a>

        <p style="margin-top: 16px; font-size: 14px; color: #6b7280;">
            If you were not expecting this email, you can ignore it.
        </p>
    </div>
    <div class="footer">
        KeyHaven • Secure Credential Sync
    </div>
</div>
</body>
</html>
`))

	// Membership Confirmed Template
	s.templates["org_confirmed"] = template.Must(template.New("org_confirmed").Parse(`
<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: #10b981; color: white; padding: 24px; border-radius: 8px 8px 0 0; }
        .content { background: #f9fafb; padding: 24px; border-radius: 0 0 8px 8px; }
        .btn { display: inline-block; background: #10b981; color: white; padding: 12px 20px; text-decoration: none; border-radius: 6px; margin-top: 16px; }
        .footer { margin-top: 24px; font-size: 12px; color: #6b7280; text-align: center; }
    </style>
</head>
<body>
<div class="container">
    <div class="header">
        <h2>Membership Confirmed</h2>
    </div>
    <div class="content">
        <p>Hello,</p>
        <p>Your membership in <strong>{{.OrgName}}</strong> has been confirmed.</p>
        <p>Sync your vault to get access to the organization's shared items.</p>

        <a href="{{.WebVaultURL}}" class="btn">Open Web Vault</a>
    </div>
    <div class="footer">
        KeyHaven • Secure Credential Sync
    </div>
</div>
</body>
</html>
`))
}

// SendInvite sends an organization invite email
func (s *Service) SendInvite(to string, orgName string) error {
	data := InviteEmailData{
		OrgName:     orgName,
		WebVaultURL: s.config.WebVaultURL,
	}
	return s.SendWithTemplate(
		[]string{to},
		fmt.Sprintf("Invitation to join %s", orgName),
		"org_invite",
		data,
	)
}

// SendConfirmed sends a membership confirmed email
func (s *Service) SendConfirmed(to string, orgName string) error {
	data := InviteEmailData{
		OrgName:     orgName,
		WebVaultURL: s.config.WebVaultURL,
	}
	return s.SendWithTemplate(
		[]string{to},
		fmt.Sprintf("Membership in %s confirmed", orgName),
		"org_confirmed",
		data,
	)
}

// Send sends an email
func (s *Service) Send(email *Email) error {
	if s.config.Host == "" {
		log.Println("Email not configured, skipping send")
		return nil
	}

	// Build message
	var msg bytes.Buffer

	// Headers
	msg.WriteString(fmt.Sprintf("From: %s <%s>\r\n", s.config.FromName, s.config.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(email.To, ", ")))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", email.Subject))
	msg.WriteString("MIME-Version: 1.0\r\n")

	if email.HTMLBody != "" {
		msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
		msg.WriteString("\r\n")
		msg.WriteString(email.HTMLBody)
	} else {
		msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
		msg.WriteString("\r\n")
		msg.WriteString(email.Body)
	}

	// Create auth
	auth := smtp.PlainAuth("", s.config.User, s.config.Password, s.config.Host)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	if s.config.UseTLS {
		// TLS connection
		tlsConfig := &tls.Config{
			ServerName: s.config.Host,
		}

		conn, err := tls.Dial("tcp", addr, tlsConfig)
		if err != nil {
			return fmt.Errorf("TLS dial error: %w", err)
		}
		defer conn.Close()

		client, err := smtp.NewClient(conn, s.config.Host)
		if err != nil {
			return fmt.Errorf("SMTP client error: %w", err)
		}
		defer client.Close()

		if err = client.Auth(auth); err != nil {
			return fmt.Errorf("auth error: %w", err)
		}

		if err = client.Mail(s.config.From); err != nil {
			return fmt.Errorf("mail error: %w", err)
		}

		for _, rcpt := range email.To {
			if err = client.Rcpt(rcpt); err != nil {
				return fmt.Errorf("rcpt error: %w", err)
			}
		}

		w, err := client.Data()
		if err != nil {
			return fmt.Errorf("data error: %w", err)
		}

		_, err = w.Write(msg.Bytes())
		if err != nil {
			return fmt.Errorf("write error: %w", err)
		}

		err = w.Close()
		if err != nil {
			return fmt.Errorf("close error: %w", err)
		}

		return client.Quit()
	}

	// Non-TLS
	return smtp.SendMail(addr, auth, s.config.From, email.To, msg.Bytes())
}

// SendWithTemplate sends an email using a template
func (s *Service) SendWithTemplate(to []string, subject, templateName string, data interface{}) error {
	tmpl, ok := s.templates[templateName]
	if !ok {
		return fmt.Errorf("template not found: %s", templateName)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("template execution error: %w", err)
	}

	return s.Send(&Email{
		To:       to,
		Subject:  subject,
		HTMLBody: body.String(),
	})
}
