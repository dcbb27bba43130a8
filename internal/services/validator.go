package services

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mentorly/backend/internal/models"
)

// Request schema names.
const (
	SchemaCreateBooking     = "create_booking"
	SchemaCancelBooking     = "cancel_booking"
	SchemaRescheduleBooking = "reschedule_booking"
	SchemaOpenDispute       = "open_dispute"
	SchemaResolveDispute    = "resolve_dispute"
	SchemaRequestPayout     = "request_payout"
	SchemaApprovePayout     = "approve_payout"
	SchemaRejectPayout      = "reject_payout"
	SchemaMarkPaid          = "mark_paid"
	SchemaMarkFailed        = "mark_failed"
	SchemaRetryPayout       = "retry_payout"
	SchemaTopUp             = "topup"
	SchemaAdjustAccount     = "adjust_account"
	SchemaLogin             = "login"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Validator checks request bodies against the embedded JSON schemas before they
// reach the engines.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// NewValidator compiles every schemas/*.json file, keyed by file name without extension.
func NewValidator() (*Validator, error) {
	entries, err := fs.ReadDir(schemaFS, "schemas")
	if err != nil {
		return nil, fmt.Errorf("read schemas: %w", err)
	}
	schemas := make(map[string]*jsonschema.Schema, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		data, err := schemaFS.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", e.Name(), err)
		}
		schemas[name], err = jsonschema.CompileString("https://mentorly.dev/schemas/"+e.Name(), string(data))
		if err != nil {
			return nil, fmt.Errorf("compile schema %q: %w", name, err)
		}
	}
	return &Validator{schemas: schemas}, nil
}

// Validate rejects body unless it is valid JSON matching the named schema.
// Failures wrap models.ErrValidation.
func (v *Validator) Validate(name string, body []byte) error {
	schema, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", models.ErrValidation, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	return nil
}
