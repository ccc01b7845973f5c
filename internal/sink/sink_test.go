package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/pump-monitor/internal/flow"
)

type memSink struct {
	name    string
	err     error
	results []flow.Result
}

func (m *memSink) Name() string { return m.name }

func (m *memSink) Append(_ context.Context, r flow.Result) error {
	if m.err != nil {
		return m.err
	}
	m.results = append(m.results, r)
	return nil
}

func TestMultiAppendsToAll(t *testing.T) {
	a, b := &memSink{name: "a"}, &memSink{name: "b"}
	m := Multi{a, b}

	require.NoError(t, m.Append(context.Background(), testResult("PUMP_1", 1)))
	assert.Len(t, a.results, 1)
	assert.Len(t, b.results, 1)
	assert.Equal(t, "multi", m.Name())
}

func TestMultiContinuesPastFailure(t *testing.T) {
	a := &memSink{name: "csv", err: errors.New("disk full")}
	b := &memSink{name: "mqtt"}
	m := Multi{a, b}

	err := m.Append(context.Background(), testResult("PUMP_2", 1))
	require.Error(t, err)
	assert.Len(t, b.results, 1)

	var we *WriteError
	require.True(t, errors.As(err, &we))
	assert.Equal(t, "csv", we.Sink)
	assert.Equal(t, "PUMP_2", we.Channel)
	assert.EqualError(t, we, "csv: write PUMP_2: disk full")
	assert.ErrorIs(t, err, a.err)
}

func TestMultiEmpty(t *testing.T) {
	assert.NoError(t, Multi{}.Append(context.Background(), testResult("PUMP_1", 1)))
}
