package database

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"property-receptionist/internal/common/config"
	"property-receptionist/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

var (
	testPlace = models.SelectedPlace{
		Name:             "Seaside Inn",
		FormattedAddress: "1 Ocean Dr, Miami, FL",
		State:            "Florida",
		Country:          "United States",
	}
	testAgent = models.AgentHandle{ID: "agent-42", PhoneNumber: "+13055550100"}
)

// ==========================
// Core Functionality Tests
// ==========================

func TestAgentRegistry_RecordAndLookup(t *testing.T) {
	mr, client := setupMiniredis(t)
	registry := NewAgentRegistry(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, registry.Record(ctx, "session-1", testPlace, testAgent))

	rec, err := registry.Lookup(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, "session-1", rec.SessionID)
	assert.Equal(t, "agent-42", rec.AgentID)
	assert.Equal(t, "+13055550100", rec.PhoneNumber)
	assert.Equal(t, "Seaside Inn", rec.BusinessName)
	assert.Equal(t, "Florida, USA", rec.LocationLabel)
	assert.False(t, rec.ProvisionedAt.IsZero())

	assert.Equal(t, time.Hour, mr.TTL("receptionist:agent:session-1"))
}

func TestAgentRegistry_RecordExpires(t *testing.T) {
	mr, client := setupMiniredis(t)
	registry := NewAgentRegistry(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, registry.Record(ctx, "session-1", testPlace, testAgent))
	mr.FastForward(2 * time.Minute)

	_, err := registry.Lookup(ctx, "session-1")
	assert.ErrorIs(t, err, ErrAgentNotFound)
}

func TestNewAgentRegistry_DefaultTTL(t *testing.T) {
	registry := NewAgentRegistry(nil, 0)
	assert.Equal(t, DefaultAgentTTL, registry.ttl)
}

// ==========================
// Error Handling Tests
// ==========================

func TestAgentRegistry_Lookup_Errors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(mock redismock.ClientMock)
		wantErr error
		errText string
	}{
		{
			name:    "missing key",
			setup:   func(mock redismock.ClientMock) { mock.ExpectGet("receptionist:agent:s").RedisNil() },
			wantErr: ErrAgentNotFound,
		},
		{
			name: "connection error",
			setup: func(mock redismock.ClientMock) {
				mock.ExpectGet("receptionist:agent:s").SetErr(errors.New("connection reset"))
			},
			errText: "load agent record",
		},
		{
			name:    "corrupt record",
			setup:   func(mock redismock.ClientMock) { mock.ExpectGet("receptionist:agent:s").SetVal("{not json") },
			errText: "decode agent record",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, mock := redismock.NewClientMock()
			tt.setup(mock)

			_, err := NewAgentRegistry(client, time.Hour).Lookup(context.Background(), "s")
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.errText != "" {
				assert.Contains(t, err.Error(), tt.errText)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAgentRegistry_Record_SetError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	mock.Regexp().ExpectSet("receptionist:agent:s", `.*`, time.Hour).SetErr(errors.New("READONLY"))

	err := NewAgentRegistry(client, time.Hour).Record(context.Background(), "s", testPlace, testAgent)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store agent record")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAgentRecord_JSONShape(t *testing.T) {
	data, err := json.Marshal(AgentRecord{SessionID: "s", AgentID: "a", PhoneNumber: "p", BusinessName: "b"})
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "p", m["phoneNumber"])
	assert.NotContains(t, m, "locationLabel")
}

func TestNewRedis(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{})
	assert.Error(t, err)

	mr, _ := setupMiniredis(t)
	c, err := NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	defer c.Close()
	assert.NoError(t, c.Ping(context.Background()))
}
