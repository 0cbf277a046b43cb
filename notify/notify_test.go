package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/teranos/hireflow/errors"
	"github.com/teranos/hireflow/internal/httpclient"
	"github.com/teranos/hireflow/workflow"
)

func sampleEvent(action workflow.Action) workflow.Event {
	return workflow.Event{
		ID:         "evt-1",
		Action:     action,
		JobPostID:  "job-1",
		EmployerID: "emp-1",
		FromStatus: workflow.StatusPendingApproval,
		ToStatus:   workflow.StatusApproved,
		Actor:      workflow.Actor{ID: "admin-1", Role: workflow.RoleAdmin},
		OccurredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestBroadcaster(t *testing.T) {
	b := NewBroadcaster(1)

	first, cancelFirst := b.Subscribe()
	second, cancelSecond := b.Subscribe()
	assert.Equal(t, 2, b.Subscribers())

	assert.Equal(t, 2, b.Publish(sampleEvent(workflow.ActionApprove)))
	assert.Equal(t, workflow.ActionApprove, (<-first).Action)

	// second never drained, so its buffer of one is full
	assert.Equal(t, 1, b.Publish(sampleEvent(workflow.ActionPublish)))
	assert.Equal(t, int64(1), b.Dropped())
	assert.Equal(t, workflow.ActionApprove, (<-second).Action)
	assert.Equal(t, workflow.ActionPublish, (<-first).Action)

	cancelFirst()
	cancelFirst()
	_, open := <-first
	assert.False(t, open)
	assert.Equal(t, 1, b.Subscribers())

	cancelSecond()
	assert.Equal(t, 0, b.Publish(sampleEvent(workflow.ActionPause)))
	require.NoError(t, b.Emit(context.Background(), sampleEvent(workflow.ActionPause)))
}

type fakeChannel struct {
	mu         sync.Mutex
	declared   []string
	declareErr error
	published  []published
}

type published struct {
	exchange, key string
	msg           amqp.Publishing
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, _, _, _ bool, _ amqp.Table) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.declareErr != nil {
		return f.declareErr
	}
	f.declared = append(f.declared, name+":"+kind)
	return nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, published{exchange, key, msg})
	return nil
}

func TestAMQPEmitter(t *testing.T) {
	ch := &fakeChannel{}
	em, err := NewAMQPEmitter(ch, "", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultExchange + ":topic"}, ch.declared)

	event := sampleEvent(workflow.ActionApprove)
	require.NoError(t, em.Emit(context.Background(), event))
	require.Len(t, ch.published, 1)

	p := ch.published[0]
	assert.Equal(t, DefaultExchange, p.exchange)
	assert.Equal(t, "jobpost.approve", p.key)
	assert.Equal(t, amqp.Persistent, p.msg.DeliveryMode)
	assert.Equal(t, "application/json", p.msg.ContentType)
	assert.Equal(t, "evt-1", p.msg.MessageId)

	var decoded workflow.Event
	require.NoError(t, json.Unmarshal(p.msg.Body, &decoded))
	assert.Equal(t, event.JobPostID, decoded.JobPostID)
	assert.Equal(t, workflow.StatusApproved, decoded.ToStatus)

	assert.NoError(t, em.Close())

	_, err = NewAMQPEmitter(&fakeChannel{declareErr: errors.New("channel closed")}, "x", nil)
	assert.ErrorContains(t, err, "declare exchange x")
}

func TestLogEmitter(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	em := NewLogEmitter(zap.New(core).Sugar())

	require.NoError(t, em.Emit(context.Background(), sampleEvent(workflow.ActionApprove)))
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "job-1", fields["job_post_id"])
	assert.Equal(t, "approve", fields["action"])
}

func TestMulti(t *testing.T) {
	var calls []string
	record := func(name string, err error) workflow.Emitter {
		return workflow.EmitterFunc(func(context.Context, workflow.Event) error {
			calls = append(calls, name)
			return err
		})
	}

	m := Multi{
		record("a", nil),
		record("b", errors.New("broker down")),
		nil,
		record("c", errors.New("webhook 500")),
	}
	err := m.Emit(context.Background(), sampleEvent(workflow.ActionPause))
	assert.Equal(t, []string{"a", "b", "c"}, calls)
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)

	assert.NoError(t, Multi{record("ok", nil)}.Emit(context.Background(), sampleEvent(workflow.ActionPause)))
}

func TestWebhookEmitter(t *testing.T) {
	var got workflow.Event
	var header string
	var status atomic.Int32
	status.Store(http.StatusAccepted)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		header = r.Header.Get("X-Hireflow-Event")
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	em, err := NewWebhookEmitter(httpclient.New(httpclient.Options{AllowPrivate: true}), srv.URL+"/hooks")
	require.NoError(t, err)

	require.NoError(t, em.Emit(context.Background(), sampleEvent(workflow.ActionFlag)))
	assert.Equal(t, "job-1", got.JobPostID)
	assert.Equal(t, "flag", header)

	status.Store(http.StatusInternalServerError)
	assert.ErrorContains(t, em.Emit(context.Background(), sampleEvent(workflow.ActionFlag)), "responded 500")

	t.Run("private targets rejected", func(t *testing.T) {
		_, err := NewWebhookEmitter(httpclient.New(httpclient.Options{}), srv.URL)
		assert.Error(t, err)
	})
}
