// Package status publishes the outcome of every polling cycle to Redis so
// other processes can observe presence without talking to the adapter.
package status

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ystepanoff/rssilock/supervisor"
)

const DefaultKey = "rssilock:status"

type Options struct {
	Addr     string
	Password string
	DB       int
	// Key of the hash holding the latest report.
	Key string
	// TTL expires the hash when the daemon stops reporting. Zero keeps it.
	TTL time.Duration
}

type hashStore interface {
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisPublisher writes each report as a Redis hash.
type RedisPublisher struct {
	db       hashStore
	client   *redis.Client
	key      string
	ttl      time.Duration
	instance string
	log      logrus.FieldLogger
}

func NewRedisPublisher(opts Options, log logrus.FieldLogger) *RedisPublisher {
	client := redis.NewClient(&redis.Options{Addr: opts.Addr, Password: opts.Password, DB: opts.DB})
	p := newPublisher(client, opts, log)
	p.client = client
	return p
}

func newPublisher(db hashStore, opts Options, log logrus.FieldLogger) *RedisPublisher {
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	id := uuid.NewString()
	return &RedisPublisher{
		db:       db,
		key:      opts.Key,
		ttl:      opts.TTL,
		instance: id,
		log:      log.WithFields(logrus.Fields{"component": "status", "instance": id}),
	}
}

func (p *RedisPublisher) Instance() string { return p.instance }

func (p *RedisPublisher) Report(ctx context.Context, r supervisor.Report) error {
	if err := p.db.HSet(ctx, p.key, Fields(p.instance, r)).Err(); err != nil {
		return err
	}
	if p.ttl > 0 {
		if err := p.db.Expire(ctx, p.key, p.ttl).Err(); err != nil {
			return err
		}
	}
	p.log.WithField("key", p.key).Debug("report published")
	return nil
}

func (p *RedisPublisher) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}

// Fields flattens a report into hash fields.
func Fields(instance string, r supervisor.Report) map[string]interface{} {
	f := map[string]interface{}{
		"instance":   instance,
		"peer":       r.Peer.String(),
		"time":       r.Time.UTC().Format(time.RFC3339),
		"sample":     r.Sample.String(),
		"rssi":       "",
		"action":     r.Action.String(),
		"unlocked":   r.State.Unlocked,
		"borderline": r.State.Borderline,
		"error":      "",
	}
	if !r.Sample.IsFailed() && !r.Sample.IsUnreadable() {
		f["rssi"] = r.Sample.RSSI
	}
	if r.Err != nil {
		f["error"] = r.Err.Error()
	}
	return f
}
