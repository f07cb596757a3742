package services

import (
	"context"
	"errors"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/trustedge/trustedge/pkg/errs"
	"github.com/trustedge/trustedge/pkg/eventbus"
	"github.com/trustedge/trustedge/pkg/helpers"
	"github.com/trustedge/trustedge/pkg/models"
)

// CloudCAReconciler periodically compares the cloud's shadow copy of the CA
// set against the locally active one. On drift it republishes the CA update
// event so the push pipeline brings the cloud back in line. The cloud never
// drives a local CA change; reconciliation is push-only.
type CloudCAReconciler struct {
	logger      *logrus.Entry
	certManager *CertificateManager
	cloudClient CloudCAClient
	eventPub    eventbus.ICloudEventPublisher
}

type CloudCAReconcilerBuilder struct {
	Logger             *logrus.Entry
	CertificateManager *CertificateManager
	CloudClient        CloudCAClient
	EventPublisher     eventbus.ICloudEventPublisher
}

func NewCloudCAReconciler(builder CloudCAReconcilerBuilder) *CloudCAReconciler {
	return &CloudCAReconciler{
		logger:      builder.Logger,
		certManager: builder.CertificateManager,
		cloudClient: builder.CloudClient,
		eventPub:    builder.EventPublisher,
	}
}

// Reconcile runs one comparison cycle. Cloud-side not-found and throttling are
// expected transient states and only logged; the next cycle retries. Before a
// CA is configured locally there is nothing to reconcile.
func (svc *CloudCAReconciler) Reconcile(ctx context.Context) error {
	lFunc := helpers.ConfigureLogger(ctx, svc.logger)

	localPEM, err := svc.certManager.GetCACertificates()
	if err != nil {
		if errors.Is(err, errs.ErrCANotConfigured) {
			lFunc.Debugf("no local CA configured yet, skipping reconciliation")
			return nil
		}

		return err
	}

	cloudPEM, err := svc.cloudClient.GetCertificateAuthorities(ctx)
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrCloudNotFound):
			lFunc.Warnf("cloud has no CA registry, scheduling catch-up push")
			svc.publishCatchUp(ctx, localPEM)
			return nil
		case errors.Is(err, errs.ErrCloudThrottled):
			lFunc.Warnf("cloud throttled CA fetch, retrying next cycle")
			return nil
		default:
			lFunc.Errorf("could not fetch cloud CA set: %s", err)
			return err
		}
	}

	if samePEMSet(localPEM, cloudPEM) {
		lFunc.Debugf("cloud CA set matches local (%d certificates)", len(localPEM))
		return nil
	}

	lFunc.Warnf("cloud CA set diverged (local %d, cloud %d), scheduling catch-up push", len(localPEM), len(cloudPEM))
	svc.publishCatchUp(ctx, localPEM)
	return nil
}

func (svc *CloudCAReconciler) publishCatchUp(ctx context.Context, localPEM []string) {
	svc.eventPub.PublishCloudEvent(ctx, models.EventCACertificatesUpdated, models.CACertificatesUpdatedPayload{
		CertificatesPEM: localPEM,
	})
}

func samePEMSet(a []string, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	sortedA := append([]string{}, a...)
	sortedB := append([]string{}, b...)
	sort.Strings(sortedA)
	sort.Strings(sortedB)

	for i := range sortedA {
		if sortedA[i] != sortedB[i] {
			return false
		}
	}

	return true
}
