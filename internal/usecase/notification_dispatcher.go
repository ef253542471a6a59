package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradepost/internal/domain/entity"
	"tradepost/pkg/logger"
)

const (
	dispatchAttempts = 3
	dispatchBackoff  = 200 * time.Millisecond
	dispatchTimeout  = 10 * time.Second
	previewLength    = 80
)

type notificationJob struct {
	message *entity.ChatMessage
	room    *entity.ChatRoom
}

// NotificationDispatcher fans a sent message out to the other party through
// the external notifications and mailer collaborators. Everything here is
// best-effort: failures are retried a few times, then logged and discarded.
// A dispatcher failure never reaches the sender of the original message.
type NotificationDispatcher struct {
	notifications NotificationService
	mailer        Mailer
	jobs          chan notificationJob
	wg            sync.WaitGroup
	closeOnce     sync.Once
}

func NewNotificationDispatcher(notifications NotificationService, mailer Mailer, queueSize int) *NotificationDispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &NotificationDispatcher{
		notifications: notifications,
		mailer:        mailer,
		jobs:          make(chan notificationJob, queueSize),
	}
}

// Start launches the worker loop. The loop drains remaining jobs on Close.
func (d *NotificationDispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case job, ok := <-d.jobs:
				if !ok {
					return
				}
				d.dispatch(job)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Enqueue hands a persisted message to the worker. The queue never blocks
// the send path: when full, the job is dropped with a warning.
func (d *NotificationDispatcher) Enqueue(message *entity.ChatMessage, room *entity.ChatRoom) {
	select {
	case d.jobs <- notificationJob{message: message, room: room}:
	default:
		logger.Warn("Notification queue full, dropping dispatch for message %s", message.ID)
	}
}

func (d *NotificationDispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.jobs)
	})
	d.wg.Wait()
}

func (d *NotificationDispatcher) dispatch(job notificationJob) {
	recipient := job.room.OtherMember(job.message.SenderID)
	if recipient == "" {
		return
	}

	// Truncate on a rune boundary; content may be multi-byte UTF-8.
	preview := job.message.Content
	if runes := []rune(preview); len(runes) > previewLength {
		preview = string(runes[:previewLength])
	}

	notification := &entity.Notification{
		ID:        uuid.New().String(),
		UserID:    recipient,
		Type:      entity.NotificationTypeNewMessage,
		Title:     "New message",
		Body:      preview,
		RoomID:    job.room.ID,
		MessageID: job.message.ID,
		CreatedAt: time.Now(),
	}

	if err := d.withRetry(func(ctx context.Context) error {
		return d.notifications.Create(ctx, notification)
	}); err != nil {
		logger.Error("Notification create failed for message %s: %v", job.message.ID, err)
	}

	if err := d.withRetry(func(ctx context.Context) error {
		return d.mailer.SendNewMessageEmail(ctx, recipient, job.room.ID, preview)
	}); err != nil {
		logger.Error("Notification email failed for message %s: %v", job.message.ID, err)
	}
}

func (d *NotificationDispatcher) withRetry(fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= dispatchAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		err = fn(ctx)
		cancel()
		if err == nil {
			return nil
		}
		time.Sleep(dispatchBackoff * time.Duration(attempt))
	}
	return err
}
