package notification

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// LogPushProvider writes push notifications to the process log. Stands in
// until a real web-push gateway is wired up in deployment.
type LogPushProvider struct{}

// NewLogPushProvider creates a log-backed push provider
func NewLogPushProvider() *LogPushProvider {
	return &LogPushProvider{}
}

// Send logs the push notification
func (p *LogPushProvider) Send(ctx context.Context, notification *Notification) error {
	if notification.Endpoint == "" {
		return fmt.Errorf("no push endpoint on notification")
	}
	log.Printf("[PUSH] to=%s subject=%q", notification.RecipientID, notification.Subject)
	return nil
}

// MockPushProvider is a push provider for testing
type MockPushProvider struct {
	mu         sync.RWMutex
	sent       []*Notification
	failOnSend bool
	sendDelay  time.Duration
}

// NewMockPushProvider creates a new mock push provider
func NewMockPushProvider() *MockPushProvider {
	return &MockPushProvider{}
}

// Send records the notification
func (p *MockPushProvider) Send(ctx context.Context, notification *Notification) error {
	if p.sendDelay > 0 {
		time.Sleep(p.sendDelay)
	}
	if p.failOnSend {
		return fmt.Errorf("mock send failure")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, notification)
	return nil
}

// SetFailOnSend sets whether Send should fail
func (p *MockPushProvider) SetFailOnSend(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failOnSend = fail
}

// SetSendDelay sets artificial delay for Send
func (p *MockPushProvider) SetSendDelay(delay time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sendDelay = delay
}

// Sent returns the notifications recorded so far
func (p *MockPushProvider) Sent() []*Notification {
	p.mu.RLock()
	defer p.mu.RUnlock()
	result := make([]*Notification, len(p.sent))
	copy(result, p.sent)
	return result
}

// MockSMSProvider is an SMS provider for testing
type MockSMSProvider struct {
	mu         sync.RWMutex
	sent       []*Notification
	failOnSend bool
}

// NewMockSMSProvider creates a new mock SMS provider
func NewMockSMSProvider() *MockSMSProvider {
	return &MockSMSProvider{}
}

// Send records the notification
func (p *MockSMSProvider) Send(ctx context.Context, notification *Notification) error {
	if p.failOnSend {
		return fmt.Errorf("mock send failure")
	}
	if notification.Phone == "" {
		return fmt.Errorf("no phone number provided")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, notification)
	return nil
}

// SetFailOnSend sets whether Send should fail
func (p *MockSMSProvider) SetFailOnSend(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failOnSend = fail
}

// Sent returns the notifications recorded so far
func (p *MockSMSProvider) Sent() []*Notification {
	p.mu.RLock()
	defer p.mu.RUnlock()
	result := make([]*Notification, len(p.sent))
	copy(result, p.sent)
	return result
}

// MockEmailProvider is an email provider for testing
type MockEmailProvider struct {
	mu         sync.RWMutex
	sent       []*Notification
	failOnSend bool
}

// NewMockEmailProvider creates a new mock email provider
func NewMockEmailProvider() *MockEmailProvider {
	return &MockEmailProvider{}
}

// Send records the notification
func (p *MockEmailProvider) Send(ctx context.Context, notification *Notification) error {
	if p.failOnSend {
		return fmt.Errorf("mock send failure")
	}
	if notification.Email == "" {
		return fmt.Errorf("no email address provided")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, notification)
	return nil
}

// SetFailOnSend sets whether Send should fail
func (p *MockEmailProvider) SetFailOnSend(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failOnSend = fail
}

// Sent returns the notifications recorded so far
func (p *MockEmailProvider) Sent() []*Notification {
	p.mu.RLock()
	defer p.mu.RUnlock()
	result := make([]*Notification, len(p.sent))
	copy(result, p.sent)
	return result
}
