// internal/common/database/redis.go
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"property-receptionist/internal/common/config"
	"property-receptionist/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	agentKeyPrefix  = "receptionist:agent:"
	DefaultAgentTTL = 24 * time.Hour
)

var ErrAgentNotFound = errors.New("agent not found")

// RedisClient wraps the Redis client
type RedisClient struct {
	Client *redis.Client
}

// NewRedis creates a new Redis client
func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	return &RedisClient{Client: rdb}, nil
}

// Ping tests the Redis connection
func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}

// AgentRecord is what the call widget host needs to connect a caller to a
// provisioned receptionist.
type AgentRecord struct {
	SessionID     string    `json:"sessionId"`
	AgentID       string    `json:"agentId"`
	PhoneNumber   string    `json:"phoneNumber"`
	BusinessName  string    `json:"businessName"`
	LocationLabel string    `json:"locationLabel,omitempty"`
	ProvisionedAt time.Time `json:"provisionedAt"`
}

// AgentRegistry stores provisioned agents keyed by session id.
type AgentRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAgentRegistry(client *redis.Client, ttl time.Duration) *AgentRegistry {
	if ttl <= 0 {
		ttl = DefaultAgentTTL
	}
	return &AgentRegistry{client: client, ttl: ttl}
}

func agentKey(sessionID string) string {
	return agentKeyPrefix + sessionID
}

// Record stores the agent for sessionID, replacing any earlier record.
func (r *AgentRegistry) Record(ctx context.Context, sessionID string, place models.SelectedPlace, agent models.AgentHandle) error {
	data, err := json.Marshal(AgentRecord{
		SessionID:     sessionID,
		AgentID:       agent.ID,
		PhoneNumber:   agent.PhoneNumber,
		BusinessName:  place.Name,
		LocationLabel: place.LocationLabel(),
		ProvisionedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal agent record: %w", err)
	}
	if err := r.client.Set(ctx, agentKey(sessionID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("store agent record: %w", err)
	}
	return nil
}

// Lookup returns the agent stored for sessionID, or ErrAgentNotFound.
func (r *AgentRegistry) Lookup(ctx context.Context, sessionID string) (*AgentRecord, error) {
	data, err := r.client.Get(ctx, agentKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrAgentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load agent record: %w", err)
	}

	var rec AgentRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode agent record: %w", err)
	}
	return &rec, nil
}
