package push

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

const userTopicPrefix = "user-"

// sender is the part of the FCM messaging client the dispatcher uses.
type sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMDispatcher delivers notifications through Firebase Cloud Messaging topics.
// Each user's devices subscribe to "user-<id>"; ride subscribers to the ride's channel.
type FCMDispatcher struct {
	client sender
}

// NewFCMDispatcher creates a dispatcher from a service-account credentials file.
func NewFCMDispatcher(ctx context.Context, credentialsFile string) (*FCMDispatcher, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}
	return &FCMDispatcher{client: client}, nil
}

// NotifyUser sends a notification to every device of a user.
func (f *FCMDispatcher) NotifyUser(ctx context.Context, title, body, userID string) error {
	return f.send(ctx, userTopicPrefix+userID, title, body)
}

// NotifyRideChannel sends a notification to every subscriber of a ride.
func (f *FCMDispatcher) NotifyRideChannel(ctx context.Context, title, body, channelRef string) error {
	return f.send(ctx, channelRef, title, body)
}

func (f *FCMDispatcher) send(ctx context.Context, topic, title, body string) error {
	_, err := f.client.Send(ctx, &messaging.Message{
		Topic: topic,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Android: &messaging.AndroidConfig{Priority: "high"},
	})
	if err != nil {
		return fmt.Errorf("send to topic %s: %w", topic, err)
	}
	return nil
}
