package target

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// ErrConnectivity marks failures to reach the target database.
var ErrConnectivity = errors.New("target unreachable")

// Commander is the write capability the load pipeline depends on. FalkorDB
// speaks the Redis protocol: graph mutations travel as GRAPH.QUERY and
// administrative work (ACL, constraints) as raw commands.
type Commander interface {
	GraphQuery(ctx context.Context, graph, cypher string) (any, error)
	Command(ctx context.Context, args ...any) (any, error)
	VerifyCredentials(ctx context.Context, username, password string) error
}

// FalkorTarget wraps one Redis connection to a FalkorDB instance.
type FalkorTarget struct {
	client *redis.Client
	addr   string
}

func NewFalkorTarget(ctx context.Context, addr, username, password string) (*FalkorTarget, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: username,
		Password: password,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnectivity, err)
	}

	slog.Info("connected to target", "addr", addr)
	return &FalkorTarget{client: client, addr: addr}, nil
}

func (t *FalkorTarget) Close() error {
	return t.client.Close()
}

func (t *FalkorTarget) GraphQuery(ctx context.Context, graph, cypher string) (any, error) {
	res, err := t.client.Do(ctx, "GRAPH.QUERY", graph, cypher, "--compact").Result()
	if err != nil {
		return nil, fmt.Errorf("graph command failed: %w", err)
	}
	return res, nil
}

func (t *FalkorTarget) Command(ctx context.Context, args ...any) (any, error) {
	res, err := t.client.Do(ctx, args...).Result()
	if err != nil {
		return nil, err
	}
	return res, nil
}

// VerifyCredentials opens a throwaway connection authenticated as the given
// user. Used to prove a provisioned identity works before the default user
// may be locked down.
func (t *FalkorTarget) VerifyCredentials(ctx context.Context, username, password string) error {
	probe := redis.NewClient(&redis.Options{
		Addr:     t.addr,
		Username: username,
		Password: password,
	})
	defer probe.Close()

	if err := probe.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("credential verification failed for %q: %w", username, err)
	}
	return nil
}
