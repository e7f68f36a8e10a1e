// internal/dispatch/sms.go

package dispatch

import (
	"context"
	"fmt"
	"log"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/formhive/formhive-backend/internal/forms"
	"github.com/formhive/formhive-backend/internal/validation"
)

// SMSDispatcher notifies a phone number of each submission via Twilio.
// Required setting: to (E.164 number of the form owner).
type SMSDispatcher struct {
	client *twilio.RestClient
	from   string
}

// NewSMSDispatcher creates the Twilio-backed dispatcher
func NewSMSDispatcher(accountSID, authToken, from string) (*SMSDispatcher, error) {
	if accountSID == "" || authToken == "" || from == "" {
		return nil, fmt.Errorf("incomplete Twilio configuration")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return &SMSDispatcher{client: client, from: from}, nil
}

func (d *SMSDispatcher) Dispatch(ctx context.Context, settings map[string]string, form *forms.Form, payload map[string]interface{}, sctx *SubmissionContext, meta []validation.FieldMeta) error {
	to := settings["to"]
	if to == "" {
		return fmt.Errorf("sms: no recipient configured for form %d", form.ID)
	}

	body := fmt.Sprintf("New submission on %q", form.Title)
	// SMS segments are 160 chars; include the first couple of fields only
	for i, field := range meta {
		if i >= 2 {
			break
		}
		body += fmt.Sprintf("\n%s: %v", field.Label, field.Value)
	}
	if len(body) > 300 {
		body = body[:300]
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(d.from)
	params.SetBody(body)

	resp, err := d.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("sms: send to %s: %w", to, err)
	}

	if resp.Sid != nil {
		log.Printf("sms: sent submission notice for form %d with SID %s", form.ID, *resp.Sid)
	}
	return nil
}
