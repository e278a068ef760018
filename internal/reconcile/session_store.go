// internal/reconcile/session_store.go
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"krishi-sahayak/internal/common/logger"
	"krishi-sahayak/internal/models"
)

const sessionKeyPrefix = "formstate:"

// SessionStore keeps per-session form state in Redis. Sessions are ephemeral
// working state, not the system of record; they expire on their own and the
// lifecycle engine never reads them.
type SessionStore struct {
	rdb             *redis.Client
	sessionTTL      time.Duration
	highlightWindow time.Duration
	log             logger.Logger
}

func NewSessionStore(rdb *redis.Client, sessionTTL, highlightWindow time.Duration, log logger.Logger) *SessionStore {
	if log == nil {
		log = logger.Nop()
	}
	return &SessionStore{
		rdb:             rdb,
		sessionTTL:      sessionTTL,
		highlightWindow: highlightWindow,
		log:             log,
	}
}

// Get loads the form state for a session, expiring stale highlights on the
// way out. A session with no stored state yields a fresh form of the given
// loan type.
func (s *SessionStore) Get(ctx context.Context, sessionID string, loanType models.LoanType) (*FormState, error) {
	raw, err := s.rdb.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if err == redis.Nil {
		return NewFormState(loanType), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load form state: %w", err)
	}

	var state FormState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode form state: %w", err)
	}
	if state.Values == nil {
		state.Values = map[string]string{}
	}
	if state.Extra == nil {
		state.Extra = map[string]string{}
	}
	if state.Highlighted == nil {
		state.Highlighted = map[string]time.Time{}
	}
	state.ExpireHighlights(time.Now(), s.highlightWindow)
	return &state, nil
}

// ApplyUpdates merges a batch of updates into the session's form and writes
// it back with a refreshed TTL.
func (s *SessionStore) ApplyUpdates(ctx context.Context, sessionID string, loanType models.LoanType, updates []models.FieldUpdateEvent, source string) (*FormState, error) {
	state, err := s.Get(ctx, sessionID, loanType)
	if err != nil {
		return nil, err
	}

	state.ApplyAll(updates, time.Now(), source)
	if err := s.save(ctx, sessionID, state); err != nil {
		return nil, err
	}

	s.log.Debug("field updates applied", map[string]interface{}{
		"sessionId": sessionID,
		"loanType":  state.LoanType,
		"count":     len(updates),
		"source":    source,
	})
	return state, nil
}

// MarkSubmitted freezes the session's form. Later updates become no-ops.
func (s *SessionStore) MarkSubmitted(ctx context.Context, sessionID string, loanType models.LoanType) error {
	state, err := s.Get(ctx, sessionID, loanType)
	if err != nil {
		return err
	}
	state.Submitted = true
	return s.save(ctx, sessionID, state)
}

func (s *SessionStore) save(ctx context.Context, sessionID string, state *FormState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode form state: %w", err)
	}
	if err := s.rdb.Set(ctx, sessionKeyPrefix+sessionID, raw, s.sessionTTL).Err(); err != nil {
		return fmt.Errorf("save form state: %w", err)
	}
	return nil
}
