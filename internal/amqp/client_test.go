package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			if got := exponentialBackoff(tt.attempt); got != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("connection refused"), true},
		{"EOF", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("broken pipe"), true},
		{"closed network connection", errors.New("use of closed network connection"), true},
		{"other error", errors.New("invalid input"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestClient_CircuitBreaker(t *testing.T) {
	client := &Client{exchangeName: "dtmoney", queueName: "dtmoney.test"}

	t.Run("initial state is closed", func(t *testing.T) {
		if client.isCircuitOpen() {
			t.Error("circuit should start closed")
		}
	})

	t.Run("failures open the circuit", func(t *testing.T) {
		for i := 0; i < maxFailures; i++ {
			client.recordFailure()
		}
		if !client.isCircuitOpen() {
			t.Error("circuit should be open after max failures")
		}
	})

	t.Run("half-open after timeout", func(t *testing.T) {
		atomic.StoreInt32(&client.state, StateOpen)
		client.lastFailure = time.Now().Add(-openTimeout - time.Second)
		if client.isCircuitOpen() {
			t.Error("circuit should allow a trial after the open timeout")
		}
		if atomic.LoadInt32(&client.state) != StateHalfOpen {
			t.Error("state should be half-open")
		}
	})

	t.Run("success closes the circuit", func(t *testing.T) {
		client.recordSuccess()
		if atomic.LoadInt64(&client.failureCount) != 0 || atomic.LoadInt32(&client.state) != StateClosed {
			t.Error("success should reset the breaker")
		}
	})
}

func TestClient_PublishGuards(t *testing.T) {
	client := &Client{exchangeName: "dtmoney", queueName: "dtmoney.test", origin: "test"}

	t.Run("open circuit refuses publish", func(t *testing.T) {
		atomic.StoreInt32(&client.state, StateOpen)
		client.lastFailure = time.Now()

		err := client.PublishTransactionCreated(context.Background(), uuid.New(), time.Now())
		if err == nil || !strings.Contains(err.Error(), "circuit breaker is open") {
			t.Fatalf("expected circuit breaker error, got %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		client.recordSuccess()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := client.PublishTransactionCreated(ctx, uuid.New(), time.Now())
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}

func TestTransactionCreatedMessage_JSON(t *testing.T) {
	id := uuid.MustParse("0b8f4a5e-4d7c-4a3e-9e39-3c8f0f2b6a11")
	created := time.Date(2024, 3, 10, 14, 30, 0, 0, time.FixedZone("BRT", -3*3600))

	msg := NewTransactionCreatedMessage(id, created, "instance-a")
	if msg.CreatedAt.Location() != time.UTC {
		t.Error("created_at should be normalized to UTC")
	}

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	for _, field := range []string{`"id"`, `"created_at"`, `"origin":"instance-a"`} {
		if !strings.Contains(string(body), field) {
			t.Errorf("JSON %s missing %s", body, field)
		}
	}

	parsed, err := TransactionCreatedMessageFromJSON(body)
	if err != nil {
		t.Fatalf("FromJSON() error = %v", err)
	}
	if parsed.ID != id || !parsed.CreatedAt.Equal(created) || parsed.Origin != "instance-a" {
		t.Errorf("parsed = %+v", parsed)
	}
}

type fakeAck struct {
	acked, nacked, requeued bool
}

func (f *fakeAck) Ack(bool) error { f.acked = true; return nil }

func (f *fakeAck) Nack(_ bool, requeue bool) error {
	f.nacked = true
	f.requeued = requeue
	return nil
}

func TestProcess(t *testing.T) {
	valid, _ := NewTransactionCreatedMessage(uuid.New(), time.Now(), "other").ToJSON()

	tests := []struct {
		name        string
		body        []byte
		redelivered bool
		handlerErr  error
		want        fakeAck
	}{
		{"handled", valid, false, nil, fakeAck{acked: true}},
		{"handler error requeues", valid, false, errors.New("refresh failed"), fakeAck{nacked: true, requeued: true}},
		{"second failure is dropped", valid, true, errors.New("refresh failed"), fakeAck{nacked: true}},
		{"redelivery handled", valid, true, nil, fakeAck{acked: true}},
		{"malformed is dropped", []byte(`{"id": 42}`), false, nil, fakeAck{nacked: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &fakeAck{}
			process(context.Background(), ack, tt.body, tt.redelivered, func(context.Context, *TransactionCreatedMessage) error {
				return tt.handlerErr
			})
			if *ack != tt.want {
				t.Errorf("ack = %+v, want %+v", *ack, tt.want)
			}
		})
	}
}
