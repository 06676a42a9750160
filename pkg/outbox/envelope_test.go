package outbox

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelope(t *testing.T) {
	id := uuid.New()
	env, err := DecodeEnvelope([]byte(`{"version":1,"eventId":"` + id.String() + `","occurredAt":"2026-10-17T09:30:00Z","actor":{"branchCode":"BLR-01"},"data":{"tableNumber":"T4"}}`))
	require.NoError(t, err)

	got, err := env.ID()
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.Equal(t, "BLR-01", env.BranchCode())
	assert.JSONEq(t, `{"tableNumber":"T4"}`, string(env.Data))
}

func TestDecodeEnvelopeRejects(t *testing.T) {
	id := uuid.NewString()
	for name, raw := range map[string]string{
		"not json":    `{`,
		"bad id":      `{"eventId":"evt-1","data":{}}`,
		"null data":   `{"eventId":"` + id + `","data":null}`,
		"absent data": `{"eventId":"` + id + `"}`,
	} {
		_, err := DecodeEnvelope([]byte(raw))
		assert.Error(t, err, name)
	}
	assert.Equal(t, "", PayloadEnvelope{}.BranchCode())
}
