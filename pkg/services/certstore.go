package services

import (
	"context"
	"crypto"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/trustedge/trustedge/pkg/cryptoengines"
	"github.com/trustedge/trustedge/pkg/errs"
	"github.com/trustedge/trustedge/pkg/helpers"
	"github.com/trustedge/trustedge/pkg/models"
	"github.com/trustedge/trustedge/pkg/storage"
	"github.com/trustedge/trustedge/pkg/x509engines"
)

const (
	caValidity       = 5 * 365 * 24 * time.Hour
	caCommonName     = "Trustedge Core CA"
	passphraseLength = 32
)

// CertificateStore owns the active CA key pair and certificate. Generated CA
// material is persisted passphrase-sealed in the runtime store so that a
// restart with unchanged configuration reproduces the exact same CA.
type CertificateStore struct {
	logger           *logrus.Entry
	runtimeRepo      storage.RuntimeRepo
	softCryptoEngine *cryptoengines.SoftwareCryptoEngine
	x509Engine       x509engines.X509Engine

	mu         sync.RWMutex
	activeCA   *models.CertificateAuthority
	passphrase string
}

type CertificateStoreBuilder struct {
	Logger      *logrus.Entry
	RuntimeRepo storage.RuntimeRepo
	X509Engine  x509engines.X509Engine
}

func NewCertificateStore(builder CertificateStoreBuilder) *CertificateStore {
	return &CertificateStore{
		logger:           builder.Logger,
		runtimeRepo:      builder.RuntimeRepo,
		softCryptoEngine: cryptoengines.NewSoftwareCryptoEngine(builder.Logger),
		x509Engine:       builder.X509Engine,
	}
}

// GenerateCA activates a managed CA of the requested type. If a sealed bundle
// for the type already exists in the runtime store it is reloaded unchanged;
// otherwise a fresh key pair, certificate and passphrase are minted and
// persisted.
func (store *CertificateStore) GenerateCA(ctx context.Context, caType models.CAType) (*models.CertificateAuthority, error) {
	lFunc := helpers.ConfigureLogger(ctx, store.logger)

	passphrase, err := store.ensurePassphrase(ctx, caType)
	if err != nil {
		return nil, err
	}

	bundle, err := store.runtimeRepo.GetCABundle(ctx, caType)
	if err != nil {
		lFunc.Errorf("could not read CA bundle for %s: %s", caType, err)
		return nil, fmt.Errorf("%w: %s", errs.ErrKeyStore, err)
	}

	if bundle != nil {
		return store.reloadCA(ctx, caType, bundle, passphrase)
	}

	lFunc.Infof("no persisted CA of type %s, generating a new one", caType)

	signer, err := store.createKeyPair(caType)
	if err != nil {
		lFunc.Errorf("could not create %s key pair: %s", caType, err)
		return nil, fmt.Errorf("%w: %s", errs.ErrCertificateGeneration, err)
	}

	caCert, err := store.x509Engine.CreateRootCA(ctx, signer, models.Subject{CommonName: caCommonName}, caValidity)
	if err != nil {
		lFunc.Errorf("could not self-sign CA certificate: %s", err)
		return nil, fmt.Errorf("%w: %s", errs.ErrCertificateGeneration, err)
	}

	container, err := store.softCryptoEngine.SealPrivateKey(signer, passphrase)
	if err != nil {
		lFunc.Errorf("could not seal CA private key: %s", err)
		return nil, fmt.Errorf("%w: %s", errs.ErrKeyStore, err)
	}

	x509Cert := models.X509Certificate(*caCert)
	err = store.runtimeRepo.UpdateCABundle(ctx, caType, storage.CABundle{
		CertificatePEM: x509Cert.PEM(),
		KeyContainer:   container,
	})
	if err != nil {
		lFunc.Errorf("could not persist CA bundle: %s", err)
		return nil, fmt.Errorf("%w: %s", errs.ErrKeyStore, err)
	}

	ca := &models.CertificateAuthority{
		Certificate: &x509Cert,
		Signer:      signer,
		Origin:      models.CAOriginGenerated,
		Type:        caType,
		CreationTS:  caCert.NotBefore,
	}

	store.setActive(ca, passphrase)
	return ca, nil
}

// ImportCA activates operator-supplied CA material. Imported keys are not
// persisted by the store; the configured URIs are re-resolved on restart.
func (store *CertificateStore) ImportCA(ctx context.Context, signer crypto.Signer, chain []*x509.Certificate) (*models.CertificateAuthority, error) {
	lFunc := helpers.ConfigureLogger(ctx, store.logger)

	if signer == nil || len(chain) == 0 {
		return nil, fmt.Errorf("%w: key pair and certificate chain are required", errs.ErrCAConfiguration)
	}

	caCert := chain[0]
	if !caCert.IsCA {
		lFunc.Warnf("imported certificate %s has no CA basic constraint", caCert.Subject.CommonName)
	}

	x509Cert := models.X509Certificate(*caCert)
	ca := &models.CertificateAuthority{
		Certificate: &x509Cert,
		Signer:      signer,
		Origin:      models.CAOriginImported,
		Type:        "",
		CreationTS:  time.Now(),
	}

	lFunc.Infof("imported custom CA %s", caCert.Subject.CommonName)
	store.setActive(ca, "")
	return ca, nil
}

// CACertificate returns the active CA certificate.
func (store *CertificateStore) CACertificate() (*x509.Certificate, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	if store.activeCA == nil {
		return nil, errs.ErrCANotConfigured
	}

	cert := x509.Certificate(*store.activeCA.Certificate)
	return &cert, nil
}

// CAPrivateKey returns the active CA signer.
func (store *CertificateStore) CAPrivateKey() (crypto.Signer, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	if store.activeCA == nil {
		return nil, errs.ErrCANotConfigured
	}

	return store.activeCA.Signer, nil
}

// CAPassphrase returns the passphrase sealing the active managed CA key.
// Imported CAs carry no passphrase.
func (store *CertificateStore) CAPassphrase() string {
	store.mu.RLock()
	defer store.mu.RUnlock()

	return store.passphrase
}

// ActiveCA returns the active CA, or nil when none is configured yet.
func (store *CertificateStore) ActiveCA() *models.CertificateAuthority {
	store.mu.RLock()
	defer store.mu.RUnlock()

	return store.activeCA
}

func (store *CertificateStore) reloadCA(ctx context.Context, caType models.CAType, bundle *storage.CABundle, passphrase string) (*models.CertificateAuthority, error) {
	lFunc := helpers.ConfigureLogger(ctx, store.logger)

	signer, err := store.softCryptoEngine.OpenPrivateKey(bundle.KeyContainer, passphrase)
	if err != nil {
		lFunc.Errorf("could not open persisted CA key container: %s", err)
		return nil, fmt.Errorf("%w: %s", errs.ErrKeyStore, err)
	}

	caCert, err := helpers.ParseCertificate(bundle.CertificatePEM)
	if err != nil {
		lFunc.Errorf("could not parse persisted CA certificate: %s", err)
		return nil, fmt.Errorf("%w: %s", errs.ErrKeyStore, err)
	}

	lFunc.Infof("reloaded persisted CA of type %s (%s)", caType, caCert.Subject.CommonName)

	x509Cert := models.X509Certificate(*caCert)
	ca := &models.CertificateAuthority{
		Certificate: &x509Cert,
		Signer:      signer,
		Origin:      models.CAOriginGenerated,
		Type:        caType,
		CreationTS:  caCert.NotBefore,
	}

	store.setActive(ca, passphrase)
	return ca, nil
}

func (store *CertificateStore) ensurePassphrase(ctx context.Context, caType models.CAType) (string, error) {
	lFunc := helpers.ConfigureLogger(ctx, store.logger)

	passphrase, err := store.runtimeRepo.GetCAPassphrase(ctx, caType)
	if err != nil {
		lFunc.Errorf("could not read CA passphrase: %s", err)
		return "", fmt.Errorf("%w: %s", errs.ErrKeyStore, err)
	}

	if passphrase != "" {
		return passphrase, nil
	}

	raw := make([]byte, passphraseLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("%w: %s", errs.ErrKeyStore, err)
	}

	passphrase = base64.StdEncoding.EncodeToString(raw)
	if err := store.runtimeRepo.UpdateCAPassphrase(ctx, caType, passphrase); err != nil {
		lFunc.Errorf("could not persist CA passphrase: %s", err)
		return "", fmt.Errorf("%w: %s", errs.ErrKeyStore, err)
	}

	lFunc.Debugf("minted new CA passphrase for type %s", caType)
	return passphrase, nil
}

func (store *CertificateStore) createKeyPair(caType models.CAType) (crypto.Signer, error) {
	switch caType {
	case models.CATypeRSA2048:
		_, key, err := store.softCryptoEngine.CreateRSAPrivateKey(2048)
		return key, err
	case models.CATypeRSA3072:
		_, key, err := store.softCryptoEngine.CreateRSAPrivateKey(3072)
		return key, err
	case models.CATypeECDSAP256:
		_, key, err := store.softCryptoEngine.CreateECDSAPrivateKey(elliptic.P256())
		return key, err
	case models.CATypeECDSAP384:
		_, key, err := store.softCryptoEngine.CreateECDSAPrivateKey(elliptic.P384())
		return key, err
	default:
		return nil, fmt.Errorf("unsupported CA type %q", caType)
	}
}

func (store *CertificateStore) setActive(ca *models.CertificateAuthority, passphrase string) {
	store.mu.Lock()
	defer store.mu.Unlock()

	// Previous CA material is dropped here. The cloud collaborator keeps
	// whatever history it needs.
	store.activeCA = ca
	store.passphrase = passphrase
}
