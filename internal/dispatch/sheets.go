// internal/dispatch/sheets.go
// Google Sheets integration: each submission is appended as one row to a
// configured spreadsheet, columns following the form's field order.

package dispatch

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/formhive/formhive-backend/internal/forms"
	"github.com/formhive/formhive-backend/internal/security"
	"github.com/formhive/formhive-backend/internal/validation"
)

// SheetsDispatcher appends submissions to a Google Sheet.
// Required settings: spreadsheet_id, credentials_json (encrypted service
// account key). Optional: sheet (tab name, default "Sheet1").
type SheetsDispatcher struct {
	secrets *security.Secrets

	// newService is swappable in tests
	newService func(ctx context.Context, credentialsJSON []byte) (*sheets.Service, error)
}

func NewSheetsDispatcher(secrets *security.Secrets) *SheetsDispatcher {
	return &SheetsDispatcher{
		secrets: secrets,
		newService: func(ctx context.Context, credentialsJSON []byte) (*sheets.Service, error) {
			return sheets.NewService(ctx,
				option.WithCredentialsJSON(credentialsJSON),
				option.WithScopes(sheets.SpreadsheetsScope),
			)
		},
	}
}

func (d *SheetsDispatcher) Dispatch(ctx context.Context, settings map[string]string, form *forms.Form, payload map[string]interface{}, sctx *SubmissionContext, meta []validation.FieldMeta) error {
	spreadsheetID := settings["spreadsheet_id"]
	if spreadsheetID == "" {
		return fmt.Errorf("sheets: no spreadsheet_id configured for form %d", form.ID)
	}

	credentials := d.secrets.Decrypt(settings["credentials_json"])
	if credentials == "" {
		credentials = settings["credentials_json"]
	}
	if credentials == "" {
		return fmt.Errorf("sheets: no credentials configured for form %d", form.ID)
	}

	svc, err := d.newService(ctx, []byte(credentials))
	if err != nil {
		return fmt.Errorf("sheets: build client: %w", err)
	}

	sheet := settings["sheet"]
	if sheet == "" {
		sheet = "Sheet1"
	}

	// One row per submission: timestamp first, then values in field order
	row := make([]interface{}, 0, len(meta)+1)
	submittedAt := time.Now()
	if sctx != nil && !sctx.SubmittedAt.IsZero() {
		submittedAt = sctx.SubmittedAt
	}
	row = append(row, submittedAt.Format(time.RFC3339))
	for _, field := range meta {
		row = append(row, fmt.Sprintf("%v", field.Value))
	}

	values := &sheets.ValueRange{Values: [][]interface{}{row}}
	_, err = svc.Spreadsheets.Values.
		Append(spreadsheetID, sheet, values).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets: append row: %w", err)
	}

	return nil
}
