package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formhive/formhive-backend/internal/forms"
	"github.com/formhive/formhive-backend/internal/validation"
)

func testForm(cfg forms.EmailConfig) *forms.Form {
	return &forms.Form{
		ID:     1,
		Title:  "Contact",
		Active: true,
		Config: forms.FormConfig{Email: cfg},
	}
}

func testMeta() []validation.FieldMeta {
	return []validation.FieldMeta{
		{Name: "name", Label: "Name", Value: "Ada Lovelace", Type: forms.FieldText},
		{Name: "message", Label: "Message", Value: "line one\nline two", Type: forms.FieldTextarea},
	}
}

func TestDispatchSubmissionSendsToRecipients(t *testing.T) {
	sender := NewMockEmailSender()
	s := NewService(sender)

	form := testForm(forms.EmailConfig{
		Enabled: true,
		To:      []string{"a@example.com", "b@example.com"},
	})

	result := s.DispatchSubmission(context.Background(), form, nil, testMeta(), "ada@example.com")
	require.True(t, result.Sent)
	require.Len(t, sender.SentEmails, 2)

	msg := sender.SentEmails[0]
	assert.Equal(t, "a@example.com", msg.To)
	assert.Equal(t, "ada@example.com", msg.ReplyTo)
	assert.Equal(t, "New submission: Contact", msg.Subject)
	assert.Contains(t, msg.Body, "Name: Ada Lovelace")
	assert.Contains(t, msg.HTML, "<td>Ada Lovelace</td>")
	assert.Contains(t, msg.HTML, "line one<br>line two")
}

func TestDispatchSubmissionCustomSubject(t *testing.T) {
	sender := NewMockEmailSender()
	s := NewService(sender)

	form := testForm(forms.EmailConfig{
		Enabled: true,
		To:      []string{"a@example.com"},
		Subject: "You have mail",
	})

	s.DispatchSubmission(context.Background(), form, nil, testMeta(), "")
	require.Len(t, sender.SentEmails, 1)
	assert.Equal(t, "You have mail", sender.SentEmails[0].Subject)
}

func TestDispatchSubmissionEscapesHTML(t *testing.T) {
	sender := NewMockEmailSender()
	s := NewService(sender)

	form := testForm(forms.EmailConfig{Enabled: true, To: []string{"a@example.com"}})
	meta := []validation.FieldMeta{
		{Name: "name", Label: "Name", Value: `<script>alert("x")</script>`, Type: forms.FieldText},
	}

	s.DispatchSubmission(context.Background(), form, nil, meta, "")
	require.Len(t, sender.SentEmails, 1)
	assert.NotContains(t, sender.SentEmails[0].HTML, "<script>")
	assert.Contains(t, sender.SentEmails[0].HTML, "&lt;script&gt;")
}

func TestDispatchSubmissionDisabled(t *testing.T) {
	sender := NewMockEmailSender()
	s := NewService(sender)

	result := s.DispatchSubmission(context.Background(), testForm(forms.EmailConfig{}), nil, testMeta(), "")
	assert.False(t, result.Sent)
	assert.Empty(t, sender.SentEmails)

	// Enabled but no recipients behaves the same
	result = s.DispatchSubmission(context.Background(), testForm(forms.EmailConfig{Enabled: true}), nil, testMeta(), "")
	assert.False(t, result.Sent)
	assert.Empty(t, sender.SentEmails)
}

func TestDispatchSubmissionAutorespond(t *testing.T) {
	sender := NewMockEmailSender()
	s := NewService(sender)

	form := testForm(forms.EmailConfig{
		Enabled:     true,
		To:          []string{"owner@example.com"},
		Autorespond: true,
	})

	s.DispatchSubmission(context.Background(), form, nil, testMeta(), "ada@example.com")
	require.Len(t, sender.SentEmails, 2)
	assert.Equal(t, "ada@example.com", sender.SentEmails[1].To)
	assert.Contains(t, sender.SentEmails[1].Subject, "We received your submission")

	// No reply address means no autoresponse
	sender.SentEmails = nil
	s.DispatchSubmission(context.Background(), form, nil, testMeta(), "")
	assert.Len(t, sender.SentEmails, 1)
}

type failingSender struct {
	failTo string
	sent   []*EmailMessage
}

func (f *failingSender) SendEmail(_ context.Context, msg *EmailMessage) error {
	if msg.To == f.failTo {
		return errors.New("connection refused")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func TestDispatchSubmissionRecordsSenderError(t *testing.T) {
	sender := &failingSender{failTo: "a@example.com"}
	s := NewService(sender)

	form := testForm(forms.EmailConfig{
		Enabled: true,
		To:      []string{"a@example.com", "b@example.com"},
	})

	result := s.DispatchSubmission(context.Background(), form, nil, testMeta(), "")
	assert.False(t, result.Sent)
	assert.Equal(t, "connection refused", result.Error)

	// The second recipient is still attempted.
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "b@example.com", sender.sent[0].To)
}

func TestDispatchSubmissionJoinsMultiValues(t *testing.T) {
	sender := NewMockEmailSender()
	s := NewService(sender)

	form := testForm(forms.EmailConfig{Enabled: true, To: []string{"a@example.com"}})
	meta := []validation.FieldMeta{
		{Name: "tags", Label: "Tags", Value: []string{"red", "blue"}, Type: forms.FieldSelect},
	}

	s.DispatchSubmission(context.Background(), form, nil, meta, "")
	require.Len(t, sender.SentEmails, 1)
	assert.Contains(t, sender.SentEmails[0].Body, "Tags: red, blue")
}
