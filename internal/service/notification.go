package service

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Dispatcher delivers notifications to users and ride channels.
type Dispatcher interface {
	NotifyUser(ctx context.Context, title, body, userID string) error
	NotifyRideChannel(ctx context.Context, title, body, channelRef string) error
}

// Publisher accepts events for asynchronous delivery. Publish must not block.
type Publisher interface {
	Publish(ev Event)
}

// Event is one outbound notification. Exactly one of UserID and ChannelRef is set.
type Event struct {
	Title      string
	Body       string
	UserID     string
	ChannelRef string
}

func userEvent(userID, title, body string) Event {
	return Event{Title: title, Body: body, UserID: userID}
}

func channelEvent(channelRef, title, body string) Event {
	return Event{Title: title, Body: body, ChannelRef: channelRef}
}

// DefaultQueueSize bounds the number of undelivered notifications.
const DefaultQueueSize = 1024

// NotificationQueue is a bounded in-process outbox drained by a single worker.
// Events published while the queue is full are dropped with a warning.
type NotificationQueue struct {
	events     chan Event
	dispatcher Dispatcher
	log        logrus.FieldLogger
	closeOnce  sync.Once
	done       chan struct{}
}

var _ Publisher = (*NotificationQueue)(nil)

// NewNotificationQueue creates a queue holding at most size pending events.
func NewNotificationQueue(dispatcher Dispatcher, size int, log logrus.FieldLogger) *NotificationQueue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &NotificationQueue{
		events:     make(chan Event, size),
		dispatcher: dispatcher,
		log:        log,
		done:       make(chan struct{}),
	}
}

// Publish enqueues ev without blocking.
func (q *NotificationQueue) Publish(ev Event) {
	select {
	case <-q.done:
		q.log.WithField("title", ev.Title).Warn("notification queue closed, dropping event")
		return
	default:
	}

	select {
	case q.events <- ev:
	default:
		q.log.WithField("title", ev.Title).Warn("notification queue full, dropping event")
	}
}

// Run delivers events until ctx is cancelled or Close is called, then drains what is left.
func (q *NotificationQueue) Run(ctx context.Context) {
	for {
		select {
		case ev := <-q.events:
			q.deliver(ctx, ev)
		case <-ctx.Done():
			q.drain(context.Background())
			return
		case <-q.done:
			q.drain(ctx)
			return
		}
	}
}

// Close stops accepting events and lets Run return after draining.
func (q *NotificationQueue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}

func (q *NotificationQueue) drain(ctx context.Context) {
	for {
		select {
		case ev := <-q.events:
			q.deliver(ctx, ev)
		default:
			return
		}
	}
}

func (q *NotificationQueue) deliver(ctx context.Context, ev Event) {
	var err error
	if ev.ChannelRef != "" {
		err = q.dispatcher.NotifyRideChannel(ctx, ev.Title, ev.Body, ev.ChannelRef)
	} else {
		err = q.dispatcher.NotifyUser(ctx, ev.Title, ev.Body, ev.UserID)
	}
	if err != nil {
		q.log.WithFields(logrus.Fields{
			"title":       ev.Title,
			"user_id":     ev.UserID,
			"channel_ref": ev.ChannelRef,
		}).WithError(err).Warn("notification delivery failed")
	}
}
