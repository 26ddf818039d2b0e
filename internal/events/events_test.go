package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	subject string
	data    []byte
	err     error
}

func (c *capturePublisher) Publish(_ context.Context, subject string, data []byte) error {
	c.subject = subject
	c.data = data
	return c.err
}

func (c *capturePublisher) Close() error { return nil }

func TestEmit(t *testing.T) {
	pub := &capturePublisher{}

	err := Emit(context.Background(), pub, Event{
		Subject:        SubjectSolicitationStatusChanged,
		SolicitationID: 12,
		From:           "Solicitação",
		To:             "Requisição",
	})
	require.NoError(t, err)
	assert.Equal(t, SubjectSolicitationStatusChanged, pub.subject)

	var ev Event
	require.NoError(t, json.Unmarshal(pub.data, &ev))
	assert.Equal(t, int64(12), ev.SolicitationID)
	assert.Equal(t, "Requisição", ev.To)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestEmit_KeepsTimestamp(t *testing.T) {
	pub := &capturePublisher{}
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, Emit(context.Background(), pub, Event{Subject: SubjectSessionLogin, Timestamp: ts}))

	var ev Event
	require.NoError(t, json.Unmarshal(pub.data, &ev))
	assert.True(t, ts.Equal(ev.Timestamp))
}

func TestEmit_PropagatesError(t *testing.T) {
	pub := &capturePublisher{err: errors.New("broker down")}

	err := Emit(context.Background(), pub, Event{Subject: SubjectSessionLogout})
	assert.EqualError(t, err, "broker down")
}

func TestEmit_NilPublisher(t *testing.T) {
	assert.NoError(t, Emit(context.Background(), nil, Event{Subject: SubjectSessionLogout}))
}

func TestRecorder(t *testing.T) {
	rec := &Recorder{}
	ctx := context.Background()

	require.NoError(t, Emit(ctx, rec, Event{Subject: SubjectSessionLogin, Username: "ana"}))
	require.NoError(t, Emit(ctx, rec, Event{Subject: SubjectSessionLogout, Username: "ana"}))

	assert.Equal(t, []string{SubjectSessionLogin, SubjectSessionLogout}, rec.Subjects())
	assert.Equal(t, "ana", rec.Events()[0].Username)

	assert.Error(t, rec.Publish(ctx, "x", []byte("not json")))
}

func TestOpen_EmptyURLIsNoop(t *testing.T) {
	pub, err := Open("", nil)
	require.NoError(t, err)
	assert.IsType(t, Noop{}, pub)
	assert.NoError(t, pub.Publish(context.Background(), SubjectSessionLogin, nil))
	assert.NoError(t, pub.Close())
}

func TestConnectNATS_Unreachable(t *testing.T) {
	cfg := DefaultNATSConfig("nats://127.0.0.1:1")
	cfg.Timeout = 200 * time.Millisecond

	_, err := ConnectNATS(cfg, nil)
	assert.Error(t, err)
}

func TestConnectNATS_EmptyURL(t *testing.T) {
	_, err := ConnectNATS(NATSConfig{}, nil)
	assert.EqualError(t, err, "nats url is empty")
}
