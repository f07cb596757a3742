package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/sirupsen/logrus"
	"github.com/trustedge/trustedge/pkg/errs"
	"github.com/trustedge/trustedge/pkg/eventbus"
	"github.com/trustedge/trustedge/pkg/helpers"
	"github.com/trustedge/trustedge/pkg/models"
)

// CloudPushHandler consumes ca.certificates.updated events and uploads the CA
// set to the cloud collaborator. It runs on the message router, off the CA
// state machine's critical path; failed pushes are redelivered by the router's
// retry middleware.
type CloudPushHandler struct {
	logger      *logrus.Entry
	cloudClient CloudCAClient
	callTimeout time.Duration
}

func NewCloudPushHandler(logger *logrus.Entry, cloudClient CloudCAClient, callTimeout time.Duration) *CloudPushHandler {
	return &CloudPushHandler{
		logger:      logger,
		cloudClient: cloudClient,
		callTimeout: callTimeout,
	}
}

// HandleMessage is the eventbus.EventHandler for EventCACertificatesUpdated.
func (handler *CloudPushHandler) HandleMessage(msg *message.Message) error {
	event, err := helpers.ParseCloudEvent(msg.Payload)
	if err != nil {
		handler.logger.Errorf("could not parse cloud event: %s", err)
		// Malformed payloads never become valid; do not redeliver.
		return nil
	}

	payload, err := helpers.GetEventBody[models.CACertificatesUpdatedPayload](event)
	if err != nil {
		handler.logger.Errorf("could not decode %s payload: %s", event.Type(), err)
		return nil
	}

	ctx, cancel := context.WithTimeout(msg.Context(), handler.callTimeout)
	defer cancel()

	lFunc := helpers.ConfigureLogger(ctx, handler.logger)

	if err := handler.cloudClient.PutCertificateAuthorities(ctx, payload.CertificatesPEM); err != nil {
		switch {
		case errors.Is(err, errs.ErrCloudNotFound):
			lFunc.Warnf("cloud collaborator has no CA registry yet: %s", err)
		case errors.Is(err, errs.ErrCloudThrottled):
			lFunc.Warnf("cloud collaborator throttled CA push: %s", err)
		default:
			lFunc.Errorf("could not push %d CA certificates to cloud: %s", len(payload.CertificatesPEM), err)
		}

		return err
	}

	lFunc.Infof("pushed %d CA certificates to cloud", len(payload.CertificatesPEM))
	return nil
}

// RegisterCloudPushHandler subscribes the handler to the CA update topic and
// starts it on its own router.
func RegisterCloudPushHandler(handler *CloudPushHandler, subscriber message.Subscriber, lMessaging *logrus.Entry) (*eventbus.EventSubscriptionHandler, error) {
	subHandler, err := eventbus.NewEventBusMessageHandler(
		"cloud-ca-push",
		string(models.EventCACertificatesUpdated),
		subscriber,
		lMessaging,
		handler.HandleMessage,
	)
	if err != nil {
		return nil, fmt.Errorf("could not build cloud push handler: %w", err)
	}

	if err := subHandler.RunAsync(); err != nil {
		return nil, fmt.Errorf("could not start cloud push handler: %w", err)
	}

	return subHandler, nil
}
