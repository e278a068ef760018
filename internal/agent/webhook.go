// internal/agent/webhook.go

// Package agent handles tool-call webhooks from the conversational
// assistant. Payloads are schema-validated before anything touches form
// state, and a status check always resolves the caller's mobile number to an
// owner identity before reading any application.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xeipuuv/gojsonschema"

	"krishi-sahayak/internal/common/errors"
	"krishi-sahayak/internal/common/logger"
	"krishi-sahayak/internal/lifecycle"
	"krishi-sahayak/internal/models"
	"krishi-sahayak/internal/reconcile"
	"krishi-sahayak/internal/schema"
	"krishi-sahayak/internal/store"
)

// Tool names the assistant may invoke.
const (
	ToolUpdateForm             = "update_form"
	ToolCheckApplicationStatus = "check_application_status"
)

const ownerCacheKeyPrefix = "owner:mobile:"
const ownerCacheTTL = 10 * time.Minute

var updateFormSchema = gojsonschema.NewStringLoader(`{
	"type": "object",
	"properties": {
		"sessionId":   {"type": "string", "minLength": 1},
		"loanType":    {"type": "string"},
		"farmerName":  {"type": "string"},
		"mobile":      {"type": "string"},
		"village":     {"type": "string"},
		"surveyNo":    {"type": "string"},
		"crop":        {"type": "string"},
		"acreage":     {"type": "string"},
		"cropSeason":  {"type": "string"},
		"equipment":   {"type": "string"},
		"dealer":      {"type": "string"},
		"price":       {"type": "string"},
		"animalType":  {"type": "string"},
		"animalCount": {"type": "string"},
		"shedArea":    {"type": "string"},
		"milkYield":   {"type": "string"}
	},
	"required": ["sessionId"],
	"additionalProperties": true
}`)

var checkStatusSchema = gojsonschema.NewStringLoader(`{
	"type": "object",
	"properties": {
		"mobileNumber": {"type": "string", "pattern": "^[6-9][0-9]{9}$"}
	},
	"required": ["mobileNumber"],
	"additionalProperties": true
}`)

// Processor executes validated tool calls against the form and lifecycle
// layers.
type Processor struct {
	users     store.UserStore
	lifecycle *lifecycle.Service
	sessions  *reconcile.SessionStore
	cache     *redis.Client
	log       logger.Logger
}

func NewProcessor(users store.UserStore, lc *lifecycle.Service, sessions *reconcile.SessionStore, cache *redis.Client, log logger.Logger) *Processor {
	if log == nil {
		log = logger.Nop()
	}
	return &Processor{users: users, lifecycle: lc, sessions: sessions, cache: cache, log: log}
}

// StatusReport is the answer to a check_application_status call.
type StatusReport struct {
	Registered   bool                `json:"registered"`
	Applications []ApplicationStatus `json:"applications"`
}

// ApplicationStatus is one application's state in a status report.
type ApplicationStatus struct {
	LoanType  models.LoanType          `json:"loanType"`
	Status    models.ApplicationStatus `json:"status"`
	UpdatedAt time.Time                `json:"updatedAt"`
}

// HandleUpdateForm validates an update_form payload and merges its fields
// into the session's form. The suggested loan type is applied before any
// field so each value lands under the right schema.
func (p *Processor) HandleUpdateForm(ctx context.Context, raw json.RawMessage) (*reconcile.FormState, error) {
	if err := validatePayload(updateFormSchema, raw); err != nil {
		return nil, err
	}

	var payload map[string]string
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errors.NewInvalidWebhookPayloadError(err.Error())
	}

	sessionID := payload["sessionId"]
	loanType := models.LoanType(payload["loanType"])
	updates := buildUpdates(payload, loanType)

	if !loanType.Valid() {
		loanType = models.LoanTypeCropInput // default starting form, overridden by any stored session
	}
	return p.sessions.ApplyUpdates(ctx, sessionID, loanType, updates, "agent")
}

// buildUpdates orders the payload's fields deterministically: the loan type
// suggestion first, then every known field in its schema's declared order,
// then anything the assistant sent that no schema declares.
func buildUpdates(payload map[string]string, suggested models.LoanType) []models.FieldUpdateEvent {
	var updates []models.FieldUpdateEvent
	if suggested.Valid() {
		updates = append(updates, models.FieldUpdateEvent{SuggestedType: suggested})
	}

	seen := map[string]bool{"sessionId": true, "loanType": true}
	for _, lt := range models.AllLoanTypes() {
		for _, name := range schema.Get(lt).FieldNames() {
			if seen[name] {
				continue
			}
			seen[name] = true
			if value, ok := payload[name]; ok && strings.TrimSpace(value) != "" {
				updates = append(updates, models.FieldUpdateEvent{Field: name, Value: value})
			}
		}
	}
	for name, value := range payload {
		if !seen[name] && strings.TrimSpace(value) != "" {
			updates = append(updates, models.FieldUpdateEvent{Field: name, Value: value})
		}
	}
	return updates
}

// HandleCheckStatus resolves the caller's mobile number to an owner and
// reports the state of each of their applications. An unknown mobile number
// is a valid answer (not registered), never an error.
func (p *Processor) HandleCheckStatus(ctx context.Context, raw json.RawMessage) (*StatusReport, error) {
	if err := validatePayload(checkStatusSchema, raw); err != nil {
		return nil, err
	}

	var payload struct {
		MobileNumber string `json:"mobileNumber"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errors.NewInvalidWebhookPayloadError(err.Error())
	}

	ownerID, err := p.resolveOwnerByMobile(ctx, payload.MobileNumber)
	if err != nil {
		return nil, err
	}
	if ownerID == "" {
		return &StatusReport{Registered: false, Applications: []ApplicationStatus{}}, nil
	}

	report := &StatusReport{Registered: true, Applications: []ApplicationStatus{}}
	for _, lt := range models.AllLoanTypes() {
		app, err := p.lifecycle.FindForOwner(ctx, ownerID, lt)
		if err != nil {
			return nil, err
		}
		if app != nil {
			report.Applications = append(report.Applications, ApplicationStatus{
				LoanType:  app.LoanType,
				Status:    app.Status,
				UpdatedAt: app.UpdatedAt,
			})
		}
	}
	return report, nil
}

// resolveOwnerByMobile maps a contact value to an owner id, consulting the
// cache before the user store. An empty return means no such user.
func (p *Processor) resolveOwnerByMobile(ctx context.Context, mobileNumber string) (string, error) {
	if p.cache != nil {
		cached, err := p.cache.Get(ctx, ownerCacheKeyPrefix+mobileNumber).Result()
		if err == nil && cached != "" {
			return cached, nil
		}
	}

	user, err := p.users.FindByMobile(ctx, mobileNumber)
	if err != nil {
		return "", errors.NewStoreUnavailableError(err)
	}
	if user == nil {
		return "", nil
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, ownerCacheKeyPrefix+mobileNumber, user.ID, ownerCacheTTL).Err(); err != nil {
			p.log.WithError(err).Warn("owner cache write failed", map[string]interface{}{"mobile": mobileNumber})
		}
	}
	return user.ID, nil
}

func validatePayload(schemaLoader gojsonschema.JSONLoader, raw json.RawMessage) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return errors.NewInvalidWebhookPayloadError(err.Error())
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return errors.NewInvalidWebhookPayloadError(fmt.Sprintf("payload rejected: %s", strings.Join(details, "; ")))
	}
	return nil
}
