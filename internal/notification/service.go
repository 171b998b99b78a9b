package notification

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/doctorry/platform/internal/shared/metrics"
	"github.com/doctorry/platform/internal/shared/types"
)

// PushProvider sends web push notifications
type PushProvider interface {
	Send(ctx context.Context, notification *Notification) error
}

// SMSProvider sends text messages
type SMSProvider interface {
	Send(ctx context.Context, notification *Notification) error
}

// EmailProvider sends emails
type EmailProvider interface {
	Send(ctx context.Context, notification *Notification) error
}

// ServiceConfig holds service configuration
type ServiceConfig struct {
	Workers       int
	BufferSize    int
	RetryAttempts int
	RetryDelay    time.Duration
}

// DefaultServiceConfig returns default configuration
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Workers:       4,
		BufferSize:    1000,
		RetryAttempts: 3,
		RetryDelay:    30 * time.Second,
	}
}

// Service dispatches notifications through a worker pool
type Service struct {
	pushProvider  PushProvider
	smsProvider   SMSProvider
	emailProvider EmailProvider

	subscriptions *SubscriptionStore

	notifCh chan *Notification
	config  ServiceConfig

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewService creates a new notification service
func NewService(
	pushProvider PushProvider,
	smsProvider SMSProvider,
	emailProvider EmailProvider,
	subscriptions *SubscriptionStore,
	config ServiceConfig,
) *Service {
	if config.Workers <= 0 {
		config = DefaultServiceConfig()
	}
	return &Service{
		pushProvider:  pushProvider,
		smsProvider:   smsProvider,
		emailProvider: emailProvider,
		subscriptions: subscriptions,
		notifCh:       make(chan *Notification, config.BufferSize),
		config:        config,
		stopCh:        make(chan struct{}),
	}
}

// Start starts the worker pool
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("service already started")
	}
	s.started = true
	s.mu.Unlock()

	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}

	return nil
}

// Stop drains the workers
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("service not started")
	}
	s.started = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()

	return nil
}

// Enqueue submits a notification for delivery
func (s *Service) Enqueue(notification *Notification) error {
	if notification.ID == "" {
		notification.ID = generateNotificationID()
	}
	if notification.Priority == "" {
		notification.Priority = PriorityNormal
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now()
	}
	notification.UpdatedAt = time.Now()
	notification.Status = StatusPending

	select {
	case s.notifCh <- notification:
		return nil
	default:
		return fmt.Errorf("notification buffer full")
	}
}

// NotifyUser fans a message out over push to every subscription the user
// has registered.
func (s *Service) NotifyUser(ctx context.Context, userID types.ID, subject, body string, data map[string]any) error {
	if s.subscriptions == nil {
		return nil
	}

	subs, err := s.subscriptions.ListByUser(ctx, userID)
	if err != nil {
		return err
	}

	for _, sub := range subs {
		n := &Notification{
			Channel:       ChannelPush,
			RecipientID:   sub.UserID,
			RecipientType: sub.UserType,
			Endpoint:      sub.Endpoint,
			Subject:       subject,
			Body:          body,
			Data:          data,
		}
		if err := s.Enqueue(n); err != nil {
			return err
		}
	}

	return nil
}

func (s *Service) worker(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case notif := <-s.notifCh:
			s.process(ctx, notif)
		}
	}
}

func (s *Service) process(ctx context.Context, notif *Notification) {
	var err error

	switch notif.Channel {
	case ChannelPush:
		if s.pushProvider != nil {
			err = s.pushProvider.Send(ctx, notif)
		} else {
			err = fmt.Errorf("push provider not configured")
		}
	case ChannelSMS:
		if s.smsProvider != nil {
			err = s.smsProvider.Send(ctx, notif)
		} else {
			err = fmt.Errorf("sms provider not configured")
		}
	case ChannelEmail:
		if s.emailProvider != nil {
			err = s.emailProvider.Send(ctx, notif)
		} else {
			err = fmt.Errorf("email provider not configured")
		}
	default:
		err = fmt.Errorf("unknown notification channel: %s", notif.Channel)
	}

	now := time.Now()
	notif.UpdatedAt = now

	if err != nil {
		notif.ErrorMessage = err.Error()
		notif.RetryCount++

		if notif.RetryCount >= s.config.RetryAttempts {
			notif.Status = StatusFailed
			metrics.RecordNotification(string(notif.Channel), "failed")
			log.Printf("notification %s failed after %d attempts: %v", notif.ID, notif.RetryCount, err)
			return
		}

		go func() {
			time.Sleep(s.config.RetryDelay)
			select {
			case s.notifCh <- notif:
			case <-s.stopCh:
			}
		}()
		return
	}

	notif.SentAt = &now
	notif.Status = StatusSent
	metrics.RecordNotification(string(notif.Channel), "sent")
}
