package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"property-receptionist/internal/common/database"
	"property-receptionist/internal/common/logger"
	"property-receptionist/internal/models"
)

type brokerStub struct{ err error }

func (b brokerStub) HealthCheck(context.Context) error { return b.err }

func newRegistry(t *testing.T) *database.AgentRegistry {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return database.NewAgentRegistry(rdb, time.Hour)
}

func serve(t *testing.T, mux *http.ServeMux, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestServeMux_AgentLookup(t *testing.T) {
	registry := newRegistry(t)
	require.NoError(t, registry.Record(context.Background(), "session-1",
		models.SelectedPlace{Name: "Seaside Inn", State: "Florida", Country: "United States"},
		models.AgentHandle{ID: "agent-42", PhoneNumber: "+13055550100"}))
	mux := newServeMux(brokerStub{}, registry)

	rec, body := serve(t, mux, "/agents/session-1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "+13055550100", body["phoneNumber"])
	assert.Equal(t, "Florida, USA", body["locationLabel"])

	rec, _ = serve(t, mux, "/agents/unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = serve(t, mux, "/agents/")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServeMux_AgentLookupDisabled(t *testing.T) {
	rec, body := serve(t, newServeMux(nil, nil), "/agents/session-1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "agent registry disabled", body["error"])
}

func TestServeMux_Health(t *testing.T) {
	rec, body := serve(t, newServeMux(brokerStub{}, nil), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])

	rec, body = serve(t, newServeMux(brokerStub{}, nil), "/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", body["status"])

	rec, body = serve(t, newServeMux(brokerStub{err: errors.New("broker down")}, nil), "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "broker down", body["error"])
}

func TestRetryWithBackoff(t *testing.T) {
	calls := 0
	err := retryWithBackoff(func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	}, 5, time.Millisecond, logger.NewTestLogger(t), "op")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	err = retryWithBackoff(func() error { return errors.New("never") }, 2, time.Millisecond, logger.NewTestLogger(t), "op")
	assert.ErrorContains(t, err, "op failed after 2 attempts")
}
