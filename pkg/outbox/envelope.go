package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tableside-backend/pkg/enums"
)

// ActorRef identifies who produced the event. Cron jobs set System and
// leave UserID nil.
type ActorRef struct {
	UserID     *uuid.UUID      `json:"userId,omitempty"`
	BranchCode string          `json:"branchCode"`
	Role       enums.StaffRole `json:"role,omitempty"`
	System     string          `json:"system,omitempty"`
}

// PayloadEnvelope wraps every outbox payload, both in outbox_events.payload
// and in the Pub/Sub message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

var errEmptyData = errors.New("envelope data is empty")

// DecodeEnvelope parses raw and checks that it names an event id and
// carries a non-null data document.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if _, err := env.ID(); err != nil {
		return PayloadEnvelope{}, err
	}
	if data := bytes.TrimSpace(env.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return PayloadEnvelope{}, errEmptyData
	}
	return env, nil
}

// ID parses EventID.
func (e PayloadEnvelope) ID() (uuid.UUID, error) {
	id, err := uuid.Parse(e.EventID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("envelope event id %q: %w", e.EventID, err)
	}
	return id, nil
}

// BranchCode returns the producing branch, or "" for events without an
// actor.
func (e PayloadEnvelope) BranchCode() string {
	if e.Actor == nil {
		return ""
	}
	return e.Actor.BranchCode
}
