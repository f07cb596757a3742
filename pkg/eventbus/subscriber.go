package eventbus

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/sirupsen/logrus"
)

type EventHandler func(*message.Message) error

type EventSubscriptionHandler struct {
	router      *message.Router
	subscriber  *message.Subscriber
	handlerName string
	handler     *message.Handler
}

func NewEventBusMessageHandler(handlerName string, topic string, sub message.Subscriber, lMessaging *logrus.Entry, handler EventHandler) (*EventSubscriptionHandler, error) {
	router, err := NewMessageRouter(lMessaging)
	if err != nil {
		return nil, err
	}

	mHandler := router.AddNoPublisherHandler(handlerName, topic, sub, message.NoPublishHandlerFunc(handler))

	return &EventSubscriptionHandler{
		router:      router,
		subscriber:  &sub,
		handlerName: handlerName,
		handler:     mHandler,
	}, nil
}

func (s *EventSubscriptionHandler) RunAsync() error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- s.router.Run(context.Background())
	}()

	select {
	case <-s.router.Running(): // implementation states that when router "running" channel is closed, it means the router is running
		return nil
	case err := <-errChan:
		return err
	}
}

func (s *EventSubscriptionHandler) Stop() {
	s.handler.Stop()
	s.router.Close()
}
