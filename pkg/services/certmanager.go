package services

import (
	"context"
	"crypto/x509"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/trustedge/trustedge/pkg/errs"
	"github.com/trustedge/trustedge/pkg/helpers"
	"github.com/trustedge/trustedge/pkg/models"
	"github.com/trustedge/trustedge/pkg/x509engines"
)

// CertificateGenerator issues one leaf certificate and keeps reissuing it on
// demand. Calls on a single generator are serialized; distinct generators run
// fully in parallel.
type CertificateGenerator struct {
	logger       *logrus.Entry
	store        *CertificateStore
	x509Engine   x509engines.X509Engine
	subscription models.CertificateSubscription

	mu         sync.Mutex
	lastIssued *x509.Certificate
}

// GenerateCertificate signs a fresh leaf against the current CA and invokes
// the subscription callback synchronously. Either a complete certificate is
// produced or none; failures never leave a partial result behind.
func (gen *CertificateGenerator) GenerateCertificate(ctx context.Context) error {
	gen.mu.Lock()
	defer gen.mu.Unlock()

	lFunc := helpers.ConfigureLogger(ctx, gen.logger)

	caCert, err := gen.store.CACertificate()
	if err != nil {
		return fmt.Errorf("%w: %s", errs.ErrCertificateGeneration, err)
	}

	caKey, err := gen.store.CAPrivateKey()
	if err != nil {
		return fmt.Errorf("%w: %s", errs.ErrCertificateGeneration, err)
	}

	var cert *x509.Certificate
	switch gen.subscription.Variant {
	case models.CertificateVariantServer:
		connectivityInfo := []string{}
		if gen.subscription.Connectivity != nil {
			connectivityInfo = gen.subscription.Connectivity()
		}

		lFunc.Infof("generating server certificate for %s", gen.subscription.Principal)
		cert, err = gen.x509Engine.SignServerCertificate(ctx, caCert, caKey, gen.subscription.Subject, gen.subscription.PublicKey, connectivityInfo)
	case models.CertificateVariantClient:
		lFunc.Infof("generating client certificate for %s", gen.subscription.Principal)
		cert, err = gen.x509Engine.SignClientCertificate(ctx, caCert, caKey, gen.subscription.Subject, gen.subscription.PublicKey)
	default:
		err = fmt.Errorf("unknown certificate variant %q", gen.subscription.Variant)
	}

	if err != nil {
		lFunc.Errorf("could not generate %s certificate for %s: %s", gen.subscription.Variant, gen.subscription.Principal, err)
		return fmt.Errorf("%w: %s", errs.ErrCertificateGeneration, err)
	}

	gen.lastIssued = cert
	gen.subscription.Callback(cert, []*x509.Certificate{caCert})
	return nil
}

// LastIssued returns the most recent certificate produced by this generator.
func (gen *CertificateGenerator) LastIssued() *x509.Certificate {
	gen.mu.Lock()
	defer gen.mu.Unlock()

	return gen.lastIssued
}

// CertificateManager tracks live certificate subscriptions and drives their
// regeneration when the CA rotates.
type CertificateManager struct {
	logger     *logrus.Entry
	store      *CertificateStore
	x509Engine x509engines.X509Engine
	validate   *validator.Validate

	mu         sync.RWMutex
	generators []*CertificateGenerator
}

type CertificateManagerBuilder struct {
	Logger     *logrus.Entry
	Store      *CertificateStore
	X509Engine x509engines.X509Engine
}

func NewCertificateManager(builder CertificateManagerBuilder) *CertificateManager {
	return &CertificateManager{
		logger:     builder.Logger,
		store:      builder.Store,
		x509Engine: builder.X509Engine,
		validate:   validator.New(),
	}
}

// SubscribeToCertificateUpdates registers a standing certificate request and
// issues its first certificate immediately. Re-subscribing the same principal
// creates an additional independent generator; there is no de-duplication.
// A nil request is a contract violation and fails before any generation.
func (svc *CertificateManager) SubscribeToCertificateUpdates(ctx context.Context, request *models.CertificateSubscription) error {
	lFunc := helpers.ConfigureLogger(ctx, svc.logger)

	if request == nil {
		return fmt.Errorf("%w: subscription request is nil", errs.ErrValidateBadRequest)
	}

	if err := svc.validate.Struct(request); err != nil {
		lFunc.Errorf("invalid subscription request: %s", err)
		return fmt.Errorf("%w: %s", errs.ErrValidateBadRequest, err)
	}

	if request.Variant == models.CertificateVariantServer && request.Connectivity == nil {
		return fmt.Errorf("%w: server subscriptions require a connectivity supplier", errs.ErrValidateBadRequest)
	}

	generator := &CertificateGenerator{
		logger:       svc.logger,
		store:        svc.store,
		x509Engine:   svc.x509Engine,
		subscription: *request,
	}

	if err := generator.GenerateCertificate(ctx); err != nil {
		return err
	}

	svc.mu.Lock()
	svc.generators = append(svc.generators, generator)
	total := len(svc.generators)
	svc.mu.Unlock()

	lFunc.Debugf("registered %s subscription for %s (%d live)", request.Variant, request.Principal, total)
	return nil
}

// OnCARotated regenerates every live subscription against the new CA. Order
// is unspecified; a failing subscription is logged and skipped so it never
// blocks the others. The registry lock is not held while signing, so new
// subscribe calls proceed during the sweep.
func (svc *CertificateManager) OnCARotated(ctx context.Context) {
	lFunc := helpers.ConfigureLogger(ctx, svc.logger)

	svc.mu.RLock()
	snapshot := make([]*CertificateGenerator, len(svc.generators))
	copy(snapshot, svc.generators)
	svc.mu.RUnlock()

	lFunc.Infof("CA rotated, regenerating %d subscribed certificates", len(snapshot))

	for _, generator := range snapshot {
		if err := generator.GenerateCertificate(ctx); err != nil {
			lFunc.Errorf("could not regenerate certificate for %s: %s", generator.subscription.Principal, err)
		}
	}
}

// GetCACertificates returns the active CA set as PEM. The list has exactly
// one element while a CA is configured.
func (svc *CertificateManager) GetCACertificates() ([]string, error) {
	caCert, err := svc.store.CACertificate()
	if err != nil {
		return nil, err
	}

	x509Cert := models.X509Certificate(*caCert)
	return []string{x509Cert.PEM()}, nil
}

// SubscriptionCount reports the number of live generators.
func (svc *CertificateManager) SubscriptionCount() int {
	svc.mu.RLock()
	defer svc.mu.RUnlock()

	return len(svc.generators)
}
