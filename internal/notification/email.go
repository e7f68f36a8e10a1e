// internal/notification/email.go

package notification

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"gopkg.in/gomail.v2"
)

// EmailMessage is one outbound email
type EmailMessage struct {
	To      string
	ReplyTo string
	Subject string
	Body    string
	HTML    string
}

// EmailSender delivers a single email
type EmailSender interface {
	SendEmail(ctx context.Context, msg *EmailMessage) error
}

// SMTPEmailSender implements EmailSender over SMTP
type SMTPEmailSender struct {
	from     string
	fromName string
	dialer   *gomail.Dialer
}

// NewSMTPEmailSender creates a new SMTP sender
func NewSMTPEmailSender(host string, port int, username, password, from, fromName string) (*SMTPEmailSender, error) {
	if host == "" || username == "" || password == "" || from == "" {
		return nil, fmt.Errorf("incomplete SMTP configuration")
	}

	dialer := gomail.NewDialer(host, port, username, password)
	dialer.TLSConfig = &tls.Config{ServerName: host}

	return &SMTPEmailSender{
		from:     from,
		fromName: fromName,
		dialer:   dialer,
	}, nil
}

// SendEmail sends a single email
func (s *SMTPEmailSender) SendEmail(ctx context.Context, msg *EmailMessage) error {
	m := gomail.NewMessage()

	m.SetHeader("From", m.FormatAddress(s.from, s.fromName))
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	if msg.ReplyTo != "" {
		m.SetHeader("Reply-To", msg.ReplyTo)
	}

	if msg.HTML != "" {
		m.SetBody("text/html", msg.HTML)
		if msg.Body != "" {
			m.AddAlternative("text/plain", msg.Body)
		}
	} else {
		m.SetBody("text/plain", msg.Body)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		log.Printf("Failed to send email to %s: %v", msg.To, err)
		return err
	}

	return nil
}

// SendGridEmailSender implements EmailSender using SendGrid
type SendGridEmailSender struct {
	apiKey   string
	from     string
	fromName string
}

// NewSendGridEmailSender creates a new SendGrid sender
func NewSendGridEmailSender(apiKey, from, fromName string) (*SendGridEmailSender, error) {
	if apiKey == "" || from == "" {
		return nil, fmt.Errorf("incomplete SendGrid configuration")
	}

	return &SendGridEmailSender{apiKey: apiKey, from: from, fromName: fromName}, nil
}

// SendEmail sends a single email via SendGrid
func (s *SendGridEmailSender) SendEmail(ctx context.Context, msg *EmailMessage) error {
	from := mail.NewEmail(s.fromName, s.from)
	to := mail.NewEmail("", msg.To)

	message := mail.NewSingleEmail(from, msg.Subject, to, msg.Body, msg.HTML)
	if msg.ReplyTo != "" {
		message.SetReplyTo(mail.NewEmail("", msg.ReplyTo))
	}

	client := sendgrid.NewSendClient(s.apiKey)
	response, err := client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send email via SendGrid: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("SendGrid returned error status: %d", response.StatusCode)
	}

	return nil
}

// MockEmailSender records emails for testing and development
type MockEmailSender struct {
	SentEmails []*EmailMessage
}

func NewMockEmailSender() *MockEmailSender {
	return &MockEmailSender{SentEmails: make([]*EmailMessage, 0)}
}

func (m *MockEmailSender) SendEmail(ctx context.Context, msg *EmailMessage) error {
	m.SentEmails = append(m.SentEmails, msg)
	log.Printf("Mock: sending email to %s: %s", msg.To, msg.Subject)
	return nil
}
