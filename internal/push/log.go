package push

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogDispatcher writes notifications to the log. Used when Firebase is not configured.
type LogDispatcher struct {
	log logrus.FieldLogger
}

// NewLogDispatcher creates a new LogDispatcher.
func NewLogDispatcher(log logrus.FieldLogger) *LogDispatcher {
	return &LogDispatcher{log: log}
}

func (d *LogDispatcher) NotifyUser(_ context.Context, title, body, userID string) error {
	d.log.WithFields(logrus.Fields{"user_id": userID, "title": title, "body": body}).Info("notification")
	return nil
}

func (d *LogDispatcher) NotifyRideChannel(_ context.Context, title, body, channelRef string) error {
	d.log.WithFields(logrus.Fields{"channel_ref": channelRef, "title": title, "body": body}).Info("notification")
	return nil
}
