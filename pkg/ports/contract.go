package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunRecordSinkContract runs a suite of tests to verify that a RecordSink
// implementation adheres to the defined interface contract.
func RunRecordSinkContract(t *testing.T, sink RecordSink) {
	ctx := context.Background()
	sessionID := "contract-" + time.Now().Format("20060102150405")

	t.Run("Append and Load", func(t *testing.T) {
		first := domain.Record{
			Seq:       1,
			SessionID: sessionID,
			Command:   "send_keys",
			Args: []domain.Arg{
				{Name: "locator_type", Value: "id"},
				{Name: "locator", Value: "x"},
				{Name: "value", Value: "hello"},
			},
			Time: time.Now(),
		}
		second := domain.Record{Seq: 2, SessionID: sessionID, Command: "go_back", Time: time.Now()}

		require.NoError(t, sink.Append(ctx, first))
		require.NoError(t, sink.Append(ctx, second))

		records, err := sink.Load(ctx, sessionID)
		require.NoError(t, err)
		require.Len(t, records, 2)

		assert.Equal(t, "send_keys", records[0].Command)
		assert.Equal(t, first.Args, records[0].Args)
		assert.Equal(t, "go_back", records[1].Command)
		assert.Empty(t, records[1].Args)
	})

	t.Run("Load Unknown Session", func(t *testing.T) {
		records, err := sink.Load(ctx, "missing-"+sessionID)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("Sessions Are Isolated", func(t *testing.T) {
		other := sessionID + "-other"
		require.NoError(t, sink.Append(ctx, domain.Record{Seq: 3, SessionID: other, Command: "click",
			Args: []domain.Arg{{Name: "locator_type", Value: "id"}, {Name: "locator", Value: "ok"}}}))

		records, err := sink.Load(ctx, other)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "click", records[0].Command)

		sessions, err := sink.Sessions(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, sessionID)
		assert.Contains(t, sessions, other)
	})
}
