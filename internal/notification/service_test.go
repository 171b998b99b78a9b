package notification

import (
	"context"
	"testing"
	"time"

	"github.com/doctorry/platform/internal/shared/types"
)

func testServiceConfig() ServiceConfig {
	return ServiceConfig{
		Workers:       2,
		BufferSize:    16,
		RetryAttempts: 3,
		RetryDelay:    10 * time.Millisecond,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Condition not met before timeout")
}

// TestServiceDelivery tests that enqueued notifications reach the provider
func TestServiceDelivery(t *testing.T) {
	push := NewMockPushProvider()
	sms := NewMockSMSProvider()
	email := NewMockEmailProvider()

	service := NewService(push, sms, email, nil, testServiceConfig())
	if err := service.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start service: %v", err)
	}

	notif := &Notification{
		Channel:     ChannelPush,
		RecipientID: types.NewID(),
		Endpoint:    "https://push.example.org/sub/1",
		Subject:     "Appointment reminder",
		Body:        "Your consultation is tomorrow at 10:00",
	}
	if err := service.Enqueue(notif); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}

	waitFor(t, time.Second, func() bool { return len(push.Sent()) == 1 })
	service.Stop() // drain workers before inspecting the notification

	sent := push.Sent()[0]
	if sent.Status != StatusSent {
		t.Errorf("Expected status %s, got %s", StatusSent, sent.Status)
	}
	if sent.SentAt == nil {
		t.Error("Expected SentAt to be stamped")
	}
	if sent.ID == "" {
		t.Error("Expected an ID to be assigned on enqueue")
	}
	if sent.Priority != PriorityNormal {
		t.Errorf("Expected default priority, got %s", sent.Priority)
	}
}

// TestServiceChannelRouting tests that each channel hits its own provider
func TestServiceChannelRouting(t *testing.T) {
	push := NewMockPushProvider()
	sms := NewMockSMSProvider()
	email := NewMockEmailProvider()

	service := NewService(push, sms, email, nil, testServiceConfig())
	if err := service.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start service: %v", err)
	}
	defer service.Stop()

	service.Enqueue(&Notification{Channel: ChannelSMS, Phone: "+381601234567", Body: "sms"})
	service.Enqueue(&Notification{Channel: ChannelEmail, Email: "marko@example.org", Body: "email"})
	service.Enqueue(&Notification{Channel: ChannelPush, Endpoint: "https://push.example.org/s", Body: "push"})

	waitFor(t, time.Second, func() bool {
		return len(sms.Sent()) == 1 && len(email.Sent()) == 1 && len(push.Sent()) == 1
	})
}

// TestServiceRetry tests retry with eventual success
func TestServiceRetry(t *testing.T) {
	push := NewMockPushProvider()
	push.SetFailOnSend(true)

	service := NewService(push, NewMockSMSProvider(), NewMockEmailProvider(), nil, testServiceConfig())
	if err := service.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start service: %v", err)
	}

	notif := &Notification{Channel: ChannelPush, Endpoint: "https://push.example.org/s", Body: "retry me"}
	if err := service.Enqueue(notif); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}

	// Let the first attempt fail, then recover the provider
	time.Sleep(50 * time.Millisecond)
	push.SetFailOnSend(false)

	waitFor(t, time.Second, func() bool { return len(push.Sent()) == 1 })
	service.Stop()

	if notif.Status != StatusSent {
		t.Errorf("Expected status %s after retry, got %s", StatusSent, notif.Status)
	}
	if notif.RetryCount == 0 {
		t.Error("Expected at least one failed attempt to be counted")
	}
}

// TestServiceExhaustsRetries tests permanent failure after the retry budget
func TestServiceExhaustsRetries(t *testing.T) {
	push := NewMockPushProvider()
	push.SetFailOnSend(true)

	cfg := testServiceConfig()
	cfg.RetryAttempts = 2

	service := NewService(push, NewMockSMSProvider(), NewMockEmailProvider(), nil, cfg)
	if err := service.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start service: %v", err)
	}

	notif := &Notification{Channel: ChannelPush, Endpoint: "https://push.example.org/s", Body: "doomed"}
	service.Enqueue(notif)

	// Two attempts with a 10ms retry delay finish well inside this window
	time.Sleep(200 * time.Millisecond)
	service.Stop()

	if notif.Status != StatusFailed {
		t.Errorf("Expected status %s, got %s", StatusFailed, notif.Status)
	}
	if notif.RetryCount != cfg.RetryAttempts {
		t.Errorf("Expected %d attempts, got %d", cfg.RetryAttempts, notif.RetryCount)
	}
	if notif.ErrorMessage == "" {
		t.Error("Expected error message on failed notification")
	}
	if len(push.Sent()) != 0 {
		t.Error("Expected nothing delivered")
	}
}

// TestServiceUnknownChannel tests that a bogus channel fails
func TestServiceUnknownChannel(t *testing.T) {
	cfg := testServiceConfig()
	cfg.RetryAttempts = 1

	service := NewService(NewMockPushProvider(), NewMockSMSProvider(), NewMockEmailProvider(), nil, cfg)
	if err := service.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start service: %v", err)
	}

	notif := &Notification{Channel: Channel("carrier_pigeon"), Body: "coo"}
	service.Enqueue(notif)

	time.Sleep(100 * time.Millisecond)
	service.Stop()

	if notif.Status != StatusFailed {
		t.Errorf("Expected status %s, got %s", StatusFailed, notif.Status)
	}
}

// TestServiceBufferFull tests backpressure on a full buffer
func TestServiceBufferFull(t *testing.T) {
	cfg := testServiceConfig()
	cfg.BufferSize = 1

	// Never started, so the single buffer slot fills immediately.
	service := NewService(NewMockPushProvider(), NewMockSMSProvider(), NewMockEmailProvider(), nil, cfg)

	if err := service.Enqueue(&Notification{Channel: ChannelPush, Endpoint: "e", Body: "first"}); err != nil {
		t.Fatalf("Expected first enqueue to succeed: %v", err)
	}
	if err := service.Enqueue(&Notification{Channel: ChannelPush, Endpoint: "e", Body: "second"}); err == nil {
		t.Error("Expected error when buffer is full")
	}
}

// TestServiceLifecycle tests double start/stop guards
func TestServiceLifecycle(t *testing.T) {
	service := NewService(NewMockPushProvider(), NewMockSMSProvider(), NewMockEmailProvider(), nil, testServiceConfig())

	if err := service.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start: %v", err)
	}
	if err := service.Start(context.Background()); err == nil {
		t.Error("Expected error on double start")
	}
	if err := service.Stop(); err != nil {
		t.Fatalf("Failed to stop: %v", err)
	}
	if err := service.Stop(); err == nil {
		t.Error("Expected error on double stop")
	}
}
