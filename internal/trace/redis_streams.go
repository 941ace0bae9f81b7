package trace

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nilrun/statekit/internal/config"
	"github.com/nilrun/statekit/internal/logger"
)

// Sink publishes kernel trace Events to a single Redis Stream and lets
// consumer-group readers (the admin surface, or any external tailer) pick
// them back up, including ones they missed while disconnected.
type Sink struct {
	client        *redis.Client
	stream        string
	consumerGroup string
	blockTimeout  time.Duration
	claimMinIdle  time.Duration
	maxBacklog    int64
}

// NewSink connects to Redis and ensures the trace stream and its default
// consumer group exist.
func NewSink(cfg *config.RedisConfig, kernelCfg *config.KernelConfig) (*Sink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	s := &Sink{
		client:        client,
		stream:        kernelCfg.TraceStreamPrefix + ":trace",
		consumerGroup: kernelCfg.TraceConsumerGroup,
		blockTimeout:  kernelCfg.TraceBlockTimeout,
		claimMinIdle:  kernelCfg.TraceClaimMinIdle,
		maxBacklog:    kernelCfg.MaxTraceBacklog,
	}

	err := client.XGroupCreateMkStream(ctx, s.stream, s.consumerGroup, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return nil, fmt.Errorf("failed to create trace consumer group: %w", err)
	}

	return s, nil
}

// Publish appends e to the trace stream, trimming the stream to roughly
// maxBacklog entries (approximate trim, the cheap non-exact form of XADD's
// MAXLEN, since exact trimming would cost an extra O(log n) per write).
func (s *Sink) Publish(ctx context.Context, e *Event) error {
	data, err := e.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize trace event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{"data": data},
	}
	if s.maxBacklog > 0 {
		args.MaxLen = s.maxBacklog
		args.Approx = true
	}

	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to publish trace event: %w", err)
	}

	logger.Debug().Str("kind", string(e.Kind)).Msg("trace event published")
	return nil
}

// Tail starts a consumer-group reader over the trace stream and streams
// parsed Events back on the returned channel until ctx is cancelled. name
// identifies this reader within the consumer group (XREADGROUP's consumer
// name), so distinct tailers don't steal each other's deliveries.
func (s *Sink) Tail(ctx context.Context, name string) (<-chan *Event, error) {
	out := make(chan *Event, 100)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			result, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
				Group:    s.consumerGroup,
				Consumer: name,
				Streams:  []string{s.stream, ">"},
				Count:    50,
				Block:    s.blockTimeout,
			}).Result()

			if err == redis.Nil {
				continue
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Error().Err(err).Msg("trace tail read failed")
				continue
			}

			if len(result) == 0 {
				continue
			}
			for _, msg := range result[0].Messages {
				raw, ok := msg.Values["data"].(string)
				if !ok {
					s.client.XAck(ctx, s.stream, s.consumerGroup, msg.ID)
					continue
				}
				event, err := FromJSON([]byte(raw))
				if err != nil {
					s.client.XAck(ctx, s.stream, s.consumerGroup, msg.ID)
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
				s.client.XAck(ctx, s.stream, s.consumerGroup, msg.ID)
			}
		}
	}()

	return out, nil
}

// Close closes the underlying Redis connection.
func (s *Sink) Close() error {
	return s.client.Close()
}
