package redis_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/tendril/pkg/adapters/redis"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSink(t *testing.T, opts ...redis.Option) (*redis.Sink, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	return redis.NewFromClient(client, opts...), mr
}

func TestRedisSink_Contract(t *testing.T) {
	sink, _ := newSink(t)
	ports.RunRecordSinkContract(t, sink)
}

func TestRedisSink_KeysAndIndex(t *testing.T) {
	sink, mr := newSink(t, redis.WithPrefix("test:"))
	ctx := context.Background()

	require.NoError(t, sink.Append(ctx, domain.Record{Seq: 1, SessionID: "1", Command: "create_driver"}))
	require.NoError(t, sink.Ping(ctx))

	items, err := mr.List("test:1")
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Contains(t, items[0], `"command":"create_driver"`)

	members, err := mr.Members("test:index")
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, members)
}

func TestRedisSink_TTLExpiration(t *testing.T) {
	sink, mr := newSink(t, redis.WithTTL(time.Second))
	ctx := context.Background()

	require.NoError(t, sink.Append(ctx, domain.Record{SessionID: "ttl", Command: "go_back"}))
	sessions, err := sink.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ttl"}, sessions)

	mr.FastForward(2 * time.Second)

	records, err := sink.Load(ctx, "ttl")
	require.NoError(t, err)
	assert.Empty(t, records)

	sessions, err = sink.Sessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

// failCommand makes every call of one Redis command fail.
type failCommand struct {
	name string
}

func (h failCommand) DialHook(next backend.DialHook) backend.DialHook { return next }

func (h failCommand) ProcessHook(next backend.ProcessHook) backend.ProcessHook {
	return func(ctx context.Context, cmd backend.Cmder) error {
		if strings.EqualFold(cmd.Name(), h.name) {
			return errors.New("injected " + h.name + " failure")
		}
		return next(ctx, cmd)
	}
}

func (h failCommand) ProcessPipelineHook(next backend.ProcessPipelineHook) backend.ProcessPipelineHook {
	return next
}

func TestRedisSink_SessionsReportsPruneFailure(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	sink := redis.NewFromClient(client, redis.WithTTL(time.Second))
	ctx := context.Background()

	require.NoError(t, sink.Append(ctx, domain.Record{SessionID: "gone", Command: "go_back"}))
	mr.FastForward(2 * time.Second)

	client.AddHook(failCommand{name: "srem"})
	_, err = sink.Sessions(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prune gone")

	members, err := mr.Members(redis.DefaultPrefix + "index")
	require.NoError(t, err)
	assert.Equal(t, []string{"gone"}, members, "index keeps the id it could not prune")
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := redis.New("not a url")
	assert.Error(t, err)
}
