package service

import (
	"encoding/json"

	"syllabus-calendar-be/internal/pkg/logger"
	"syllabus-calendar-be/pkg/store"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// IProgressPublisherService fans import-session snapshots out to whoever is
// watching (the websocket consumer, at minimum). Publishing is best-effort:
// a dropped frame never fails the import.
type IProgressPublisherService interface {
	PublishProgress(snapshot store.Snapshot)
}

type progressPublisherService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	logger    logger.ILogger
}

func NewProgressPublisherService(
	pubSub *gochannel.GoChannel,
	topicName string,
	sysLogger logger.ILogger,
) IProgressPublisherService {
	return &progressPublisherService{
		pubSub:    pubSub,
		topicName: topicName,
		logger:    sysLogger,
	}
}

func (ps *progressPublisherService) PublishProgress(snapshot store.Snapshot) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		ps.logger.Warn("ProgressPublisher", "Failed to marshal snapshot", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := ps.pubSub.Publish(ps.topicName, msg); err != nil {
		ps.logger.Warn("ProgressPublisher", "Failed to publish progress frame", map[string]interface{}{
			"session_id": snapshot.Id,
			"error":      err.Error(),
		})
	}
}
