// internal/registration/markers/store.go
package markers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"registration-workflow/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "registration:marker:"

// OnBehalf is the (client, ticket) pair an admin last opened.
type OnBehalf struct {
	ClientID string
	TicketID string
}

// Store is the key to flag store behind resume markers. Values carry no
// schema beyond string equality.
type Store interface {
	TeamFill(ctx context.Context, ownerID string) (bool, error)
	SetTeamFill(ctx context.Context, ownerID string, on bool) error
	TicketTeamFill(ctx context.Context, ticketID string) (bool, error)
	SetTicketTeamFill(ctx context.Context, ticketID string, on bool) error

	EditingTicket(ctx context.Context, ownerID string) (string, error)
	SetEditingTicket(ctx context.Context, ownerID, ticketID string) error

	OnBehalf(ctx context.Context, adminID string) (*OnBehalf, error)
	SetOnBehalf(ctx context.Context, adminID string, pair OnBehalf) error
	ClearOnBehalf(ctx context.Context, adminID string) error

	PaymentReference(ctx context.Context, ownerID string) (string, error)
	SetPaymentReference(ctx context.Context, ownerID, ref string) error
	SelectedPackage(ctx context.Context, ownerID string) (string, error)
	SetSelectedPackage(ctx context.Context, ownerID, pkg string) error

	// ClearTransient drops the draft-scoped markers that only matter until
	// a successful submission.
	ClearTransient(ctx context.Context, ownerID, ticketID string) error
}

// RedisStore keeps markers in Redis with a shared TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewRedisStore(client *redis.Client, ttl time.Duration, log logger.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "markers"}),
	}
}

func teamFillKey(ownerID string) string     { return keyPrefix + "team_fill:" + ownerID }
func ticketTeamFillKey(ticket string) string { return keyPrefix + "team_fill_ticket:" + ticket }
func editingKey(ownerID string) string      { return keyPrefix + "editing_ticket:" + ownerID }
func onBehalfKey(adminID string) string     { return keyPrefix + "on_behalf:" + adminID }
func paymentKey(ownerID string) string      { return keyPrefix + "payment_ref:" + ownerID }
func packageKey(ownerID string) string      { return keyPrefix + "selected_package:" + ownerID }

func (s *RedisStore) TeamFill(ctx context.Context, ownerID string) (bool, error) {
	return s.getFlag(ctx, teamFillKey(ownerID))
}

func (s *RedisStore) SetTeamFill(ctx context.Context, ownerID string, on bool) error {
	return s.setFlag(ctx, teamFillKey(ownerID), on)
}

func (s *RedisStore) TicketTeamFill(ctx context.Context, ticketID string) (bool, error) {
	return s.getFlag(ctx, ticketTeamFillKey(ticketID))
}

func (s *RedisStore) SetTicketTeamFill(ctx context.Context, ticketID string, on bool) error {
	return s.setFlag(ctx, ticketTeamFillKey(ticketID), on)
}

func (s *RedisStore) EditingTicket(ctx context.Context, ownerID string) (string, error) {
	return s.getValue(ctx, editingKey(ownerID))
}

func (s *RedisStore) SetEditingTicket(ctx context.Context, ownerID, ticketID string) error {
	return s.setValue(ctx, editingKey(ownerID), ticketID)
}

func (s *RedisStore) OnBehalf(ctx context.Context, adminID string) (*OnBehalf, error) {
	vals, err := s.client.HGetAll(ctx, onBehalfKey(adminID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read on-behalf marker: %w", err)
	}
	if len(vals) == 0 {
		return nil, nil
	}
	return &OnBehalf{ClientID: vals["clientId"], TicketID: vals["ticketId"]}, nil
}

func (s *RedisStore) SetOnBehalf(ctx context.Context, adminID string, pair OnBehalf) error {
	key := onBehalfKey(adminID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, "clientId", pair.ClientID, "ticketId", pair.TicketID)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write on-behalf marker: %w", err)
	}
	return nil
}

func (s *RedisStore) ClearOnBehalf(ctx context.Context, adminID string) error {
	return s.del(ctx, onBehalfKey(adminID))
}

func (s *RedisStore) PaymentReference(ctx context.Context, ownerID string) (string, error) {
	return s.getValue(ctx, paymentKey(ownerID))
}

func (s *RedisStore) SetPaymentReference(ctx context.Context, ownerID, ref string) error {
	return s.setValue(ctx, paymentKey(ownerID), ref)
}

func (s *RedisStore) SelectedPackage(ctx context.Context, ownerID string) (string, error) {
	return s.getValue(ctx, packageKey(ownerID))
}

func (s *RedisStore) SetSelectedPackage(ctx context.Context, ownerID, pkg string) error {
	return s.setValue(ctx, packageKey(ownerID), pkg)
}

func (s *RedisStore) ClearTransient(ctx context.Context, ownerID, ticketID string) error {
	keys := []string{paymentKey(ownerID), packageKey(ownerID), editingKey(ownerID)}
	if err := s.del(ctx, keys...); err != nil {
		return err
	}
	s.logger.Debug("transient markers cleared", map[string]interface{}{
		"ownerId":  ownerID,
		"ticketId": ticketID,
	})
	return nil
}

func (s *RedisStore) getFlag(ctx context.Context, key string) (bool, error) {
	val, err := s.getValue(ctx, key)
	if err != nil {
		return false, err
	}
	return val == "true", nil
}

func (s *RedisStore) setFlag(ctx context.Context, key string, on bool) error {
	if !on {
		return s.del(ctx, key)
	}
	return s.setValue(ctx, key, "true")
}

func (s *RedisStore) getValue(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read marker %s: %w", strings.TrimPrefix(key, keyPrefix), err)
	}
	return val, nil
}

func (s *RedisStore) setValue(ctx context.Context, key, value string) error {
	if value == "" {
		return s.del(ctx, key)
	}
	if err := s.client.Set(ctx, key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("write marker %s: %w", strings.TrimPrefix(key, keyPrefix), err)
	}
	return nil
}

func (s *RedisStore) del(ctx context.Context, keys ...string) error {
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete markers: %w", err)
	}
	return nil
}
