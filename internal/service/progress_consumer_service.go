package service

import (
	"context"
	"encoding/json"
	"log"

	"syllabus-calendar-be/internal/websocket"
	"syllabus-calendar-be/pkg/store"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// IProgressConsumerService drains the progress topic and pushes frames to the
// websocket hub.
type IProgressConsumerService interface {
	Consume(ctx context.Context) error
}

type progressConsumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	hub       *websocket.Hub
}

func NewProgressConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	hub *websocket.Hub,
) IProgressConsumerService {
	return &progressConsumerService{
		pubSub:    pubSub,
		topicName: topicName,
		hub:       hub,
	}
}

func (cs *progressConsumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(msg)
		}
	}()

	return nil
}

func (cs *progressConsumerService) processMessage(msg *message.Message) {
	var snapshot store.Snapshot
	if err := json.Unmarshal(msg.Payload, &snapshot); err != nil {
		log.Printf("[ERROR] Failed to unmarshal progress frame: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	cs.hub.SendProgress(snapshot.UserId, snapshot)
	msg.Ack()
}
