package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/trustedge/trustedge/pkg/errs"
	"github.com/trustedge/trustedge/pkg/eventbus"
	"github.com/trustedge/trustedge/pkg/helpers"
	"github.com/trustedge/trustedge/pkg/models"
	"github.com/trustedge/trustedge/pkg/storage"
)

type CAState string

const (
	CAStateUnconfigured  CAState = "UNCONFIGURED"
	CAStateManagedActive CAState = "MANAGED_ACTIVE"
	CAStateCustomActive  CAState = "CUSTOM_ACTIVE"
	CAStateReconfiguring CAState = "RECONFIGURING"
)

// DefaultCAType is used when the configuration does not name one.
const DefaultCAType = models.CATypeRSA2048

// CAConfigurationManager reacts to certificateAuthority configuration changes:
// it selects managed vs custom mode, drives the CertificateStore, rotates
// subscriptions and hands the new CA set to the cloud push pipeline. The full
// diff-and-apply sequence runs under a single-writer lock so the store never
// observes a half-applied configuration.
type CAConfigurationManager struct {
	logger      *logrus.Entry
	store       *CertificateStore
	certManager *CertificateManager
	keyManager  KeyManager
	runtimeRepo storage.RuntimeRepo
	eventPub    eventbus.ICloudEventPublisher

	mu          sync.Mutex
	state       CAState
	lastApplied *models.CAConfiguration
}

type CAConfigurationManagerBuilder struct {
	Logger             *logrus.Entry
	Store              *CertificateStore
	CertificateManager *CertificateManager
	KeyManager         KeyManager
	RuntimeRepo        storage.RuntimeRepo
	EventPublisher     eventbus.ICloudEventPublisher
}

func NewCAConfigurationManager(builder CAConfigurationManagerBuilder) *CAConfigurationManager {
	return &CAConfigurationManager{
		logger:      builder.Logger,
		store:       builder.Store,
		certManager: builder.CertificateManager,
		keyManager:  builder.KeyManager,
		runtimeRepo: builder.RuntimeRepo,
		eventPub:    builder.EventPublisher,
		state:       CAStateUnconfigured,
	}
}

func (svc *CAConfigurationManager) State() CAState {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	return svc.state
}

// LastApplied returns the configuration currently in effect, or nil before
// the first successful apply.
func (svc *CAConfigurationManager) LastApplied() *models.CAConfiguration {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.lastApplied == nil {
		return nil
	}

	applied := *svc.lastApplied
	return &applied
}

// ApplyConfiguration diffs the incoming configuration against the last
// applied one and executes the matching use case. A no-op diff does nothing.
// On failure the previous configuration and CA stay active.
func (svc *CAConfigurationManager) ApplyConfiguration(ctx context.Context, config models.CAConfiguration) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	lFunc := helpers.ConfigureLogger(ctx, svc.logger)

	if config.Type == "" {
		config.Type = DefaultCAType
	}

	if svc.lastApplied != nil && config.Equal(*svc.lastApplied) {
		lFunc.Debugf("CA configuration unchanged, nothing to do")
		return nil
	}

	if (config.PrivateKeyURI == "") != (config.CertificateURI == "") {
		return fmt.Errorf("%w: custom CA requires both key and certificate URIs", errs.ErrCAConfiguration)
	}

	previousState := svc.state
	svc.state = CAStateReconfiguring

	var err error
	switch config.Mode() {
	case models.CAModeManaged:
		lFunc.Infof("applying managed CA configuration (type %s)", config.Type)
		_, err = svc.store.GenerateCA(ctx, config.Type)
		if err == nil {
			svc.state = CAStateManagedActive
		}
	case models.CAModeCustom:
		lFunc.Infof("applying custom CA configuration (%s)", config.CertificateURI)
		err = svc.applyCustomCA(ctx, config)
		if err == nil {
			svc.state = CAStateCustomActive
		}
	}

	if err != nil {
		lFunc.Errorf("could not apply CA configuration: %s", err)
		svc.state = previousState
		return err
	}

	if err := svc.afterCAChange(ctx); err != nil {
		// Leave lastApplied untouched so an identical retry re-runs the
		// persist-and-publish sequence instead of short-circuiting as a
		// no-op diff.
		return err
	}

	svc.lastApplied = &config

	return nil
}

func (svc *CAConfigurationManager) applyCustomCA(ctx context.Context, config models.CAConfiguration) error {
	signer, err := svc.keyManager.GetKeyPair(ctx, config.PrivateKeyURI, config.CertificateURI)
	if err != nil {
		return fmt.Errorf("%w: could not resolve private key URI: %s", errs.ErrCAConfiguration, err)
	}

	chain, err := svc.keyManager.GetCertificateChain(ctx, config.PrivateKeyURI, config.CertificateURI)
	if err != nil {
		return fmt.Errorf("%w: could not resolve certificate URI: %s", errs.ErrCAConfiguration, err)
	}

	_, err = svc.store.ImportCA(ctx, signer, chain)
	return err
}

// afterCAChange persists the new authority set, sweeps subscriptions, then
// hands the CA set to the asynchronous cloud push pipeline. Local state is
// durable before the cloud is involved; cloud failures are retried on the bus
// and never bubble back here.
func (svc *CAConfigurationManager) afterCAChange(ctx context.Context) error {
	lFunc := helpers.ConfigureLogger(ctx, svc.logger)

	pemCerts, err := svc.certManager.GetCACertificates()
	if err != nil {
		return err
	}

	if err := svc.runtimeRepo.UpdateCACertificates(ctx, pemCerts); err != nil {
		lFunc.Errorf("could not persist CA certificates: %s", err)
		return fmt.Errorf("%w: %s", errs.ErrKeyStore, err)
	}

	svc.certManager.OnCARotated(ctx)

	svc.eventPub.PublishCloudEvent(ctx, models.EventCACertificatesUpdated, models.CACertificatesUpdatedPayload{
		CertificatesPEM: pemCerts,
	})

	return nil
}
