package eventbus

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/sirupsen/logrus"
	"github.com/trustedge/trustedge"
	"github.com/trustedge/trustedge/pkg/helpers"
	"github.com/trustedge/trustedge/pkg/models"
)

type ICloudEventPublisher interface {
	PublishCloudEvent(ctx context.Context, eventType models.EventType, payload interface{})
}

type CloudEventPublisher struct {
	Publisher message.Publisher
	ServiceID string
	Logger    *logrus.Entry
}

func (cemp *CloudEventPublisher) PublishCloudEvent(ctx context.Context, eventType models.EventType, payload interface{}) {
	ctx = context.WithValue(ctx, trustedge.TrustedgeContextKeyEventType, string(eventType))
	if ctx.Value(trustedge.TrustedgeContextKeySource) == nil {
		ctx = context.WithValue(ctx, trustedge.TrustedgeContextKeySource, cemp.ServiceID)
	}

	event := helpers.BuildCloudEvent(ctx, payload)

	eventBytes, marshalErr := json.Marshal(event)
	if marshalErr != nil {
		cemp.Logger.Errorf("error while serializing event: %s", marshalErr)
		return
	}

	cemp.Logger.Tracef("publishing event: Type=%s Source=%s \n%s", event.Type(), event.Source(), string(eventBytes))

	msg := message.NewMessage(event.ID(), eventBytes)
	msg.SetContext(ctx)

	if err := cemp.Publisher.Publish(event.Type(), msg); err != nil {
		cemp.Logger.Errorf("error while publishing event %s: %s", event.Type(), err)
	}
}
