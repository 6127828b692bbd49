package recorder_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/tendril/pkg/adapters/memory"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/recorder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSink struct{ *memory.RecordSink }

func (failingSink) Append(context.Context, domain.Record) error {
	return errors.New("disk full")
}

func TestRecorder_FansOutWithSequence(t *testing.T) {
	ctx := context.Background()
	a, b := memory.NewRecordSink(), memory.NewRecordSink()
	rec := recorder.New(a, b)

	require.NoError(t, rec.Record(ctx, "1", "create_driver", nil))
	require.NoError(t, rec.Record(ctx, "1", "click", []domain.Arg{{Name: "locator", Value: "ok"}}))

	for _, sink := range []*memory.RecordSink{a, b} {
		records, err := sink.Load(ctx, "1")
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, uint64(1), records[0].Seq)
		assert.Equal(t, uint64(2), records[1].Seq)
		assert.False(t, records[1].Time.IsZero())
	}
}

func TestRecorder_JoinsSinkFailures(t *testing.T) {
	ctx := context.Background()
	good := memory.NewRecordSink()
	rec := recorder.New(failingSink{memory.NewRecordSink()}, good)

	err := rec.Record(ctx, "1", "go_back", nil)
	assert.ErrorContains(t, err, "disk full")

	records, _ := good.Load(ctx, "1")
	assert.Len(t, records, 1, "healthy sinks still receive the record")
}

func TestRecorder_NoSinks(t *testing.T) {
	rec := recorder.New()
	assert.False(t, rec.Enabled())
	assert.NoError(t, rec.Record(context.Background(), "1", "click", nil))

	var nilRec *recorder.Recorder
	assert.NoError(t, nilRec.Record(context.Background(), "1", "click", nil))
}
