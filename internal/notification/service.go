// internal/notification/service.go
// Builds and sends the per-submission notification email, plus the optional
// autoresponse to the submitter. Failures are reported back to the caller
// but never abort a submission.

package notification

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"html/template"
	"log"
	"strings"

	"github.com/formhive/formhive-backend/internal/forms"
	"github.com/formhive/formhive-backend/internal/validation"
)

// DispatchResult reports the outcome of the email step
type DispatchResult struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Service dispatches submission notifications
type Service interface {
	DispatchSubmission(ctx context.Context, form *forms.Form, data map[string]interface{}, meta []validation.FieldMeta, replyTo string) *DispatchResult
}

type service struct {
	sender EmailSender
}

func NewService(sender EmailSender) Service {
	return &service{sender: sender}
}

const submissionTemplate = `
<h2>{{.Title}}</h2>
<table cellpadding="6" cellspacing="0" border="0">
{{range .Fields}}<tr>
  <td style="font-weight:bold;vertical-align:top">{{.Label}}</td>
  <td>{{.Value}}</td>
</tr>
{{end}}</table>
`

var submissionTmpl = template.Must(template.New("submission").Parse(submissionTemplate))

// DispatchSubmission sends the notification to every configured recipient
// and an autoresponse when enabled. Best effort: the first error is recorded
// in the result and remaining recipients are still attempted.
func (s *service) DispatchSubmission(ctx context.Context, form *forms.Form, data map[string]interface{}, meta []validation.FieldMeta, replyTo string) *DispatchResult {
	cfg := form.Config.Email
	if !cfg.Enabled || len(cfg.To) == 0 {
		return &DispatchResult{Sent: false, Message: "email disabled"}
	}

	subject := cfg.Subject
	if subject == "" {
		subject = fmt.Sprintf("New submission: %s", form.Title)
	}

	htmlBody, plainBody := renderSubmission(form.Title, meta)

	result := &DispatchResult{Sent: true, Message: "notification sent"}
	for _, to := range cfg.To {
		msg := &EmailMessage{
			To:      to,
			ReplyTo: replyTo,
			Subject: subject,
			Body:    plainBody,
			HTML:    htmlBody,
		}
		if err := s.sender.SendEmail(ctx, msg); err != nil {
			log.Printf("notification: failed to send submission email for form %d to %s: %v", form.ID, to, err)
			result.Sent = false
			result.Message = "notification failed"
			if result.Error == "" {
				result.Error = err.Error()
			}
		}
	}

	if cfg.Autorespond && replyTo != "" {
		msg := &EmailMessage{
			To:      replyTo,
			Subject: fmt.Sprintf("We received your submission: %s", form.Title),
			Body:    fmt.Sprintf("Thank you! Your submission to %q was received.", form.Title),
		}
		if err := s.sender.SendEmail(ctx, msg); err != nil {
			log.Printf("notification: autoresponse failed for form %d: %v", form.ID, err)
		}
	}

	return result
}

type renderedField struct {
	Label string
	Value template.HTML
}

func renderSubmission(title string, meta []validation.FieldMeta) (htmlBody, plainBody string) {
	fields := make([]renderedField, 0, len(meta))
	var plain strings.Builder
	plain.WriteString(title + "\n\n")

	for _, field := range meta {
		value := fmt.Sprintf("%v", field.Value)
		if items, ok := field.Value.([]string); ok {
			value = strings.Join(items, ", ")
		}

		plain.WriteString(fmt.Sprintf("%s: %s\n", field.Label, value))

		// User input is escaped, then newlines become <br> so textarea
		// content keeps its shape.
		escaped := html.EscapeString(value)
		escaped = strings.ReplaceAll(escaped, "\n", "<br>")
		fields = append(fields, renderedField{Label: field.Label, Value: template.HTML(escaped)})
	}

	var buf bytes.Buffer
	if err := submissionTmpl.Execute(&buf, map[string]interface{}{
		"Title":  title,
		"Fields": fields,
	}); err != nil {
		return "", plain.String()
	}

	return buf.String(), plain.String()
}
