package services

import (
	"context"
	"crypto"
	"crypto/x509"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/trustedge/trustedge/pkg/helpers"
)

// CloudCAClient is the cloud collaborator holding the authoritative copy of
// the CA set. Implemented by out-of-scope transport code; the core only
// depends on this contract.
type CloudCAClient interface {
	// PutCertificateAuthorities uploads the full active CA set. Failures are
	// reported through errs.ErrCloudNotFound / errs.ErrCloudThrottled or a
	// generic error; they never affect local CA state.
	PutCertificateAuthorities(ctx context.Context, pemCerts []string) error

	// GetCertificateAuthorities fetches the cloud-held shadow CA set.
	GetCertificateAuthorities(ctx context.Context) ([]string, error)
}

// KeyManager resolves operator-supplied URIs into CA key material for CUSTOM
// mode.
type KeyManager interface {
	GetKeyPair(ctx context.Context, privateKeyURI string, certificateURI string) (crypto.Signer, error)
	GetCertificateChain(ctx context.Context, privateKeyURI string, certificateURI string) ([]*x509.Certificate, error)
}

// FilesystemKeyManager resolves file:// URIs against the local filesystem.
type FilesystemKeyManager struct {
	logger *logrus.Entry
}

func NewFilesystemKeyManager(logger *logrus.Entry) *FilesystemKeyManager {
	return &FilesystemKeyManager{
		logger: logger,
	}
}

func (km *FilesystemKeyManager) GetKeyPair(ctx context.Context, privateKeyURI string, certificateURI string) (crypto.Signer, error) {
	path, err := filePathFromURI(privateKeyURI)
	if err != nil {
		return nil, err
	}

	km.logger.Debugf("loading private key from %s", path)
	return helpers.ReadPrivateKeyFromFile(path)
}

func (km *FilesystemKeyManager) GetCertificateChain(ctx context.Context, privateKeyURI string, certificateURI string) ([]*x509.Certificate, error) {
	path, err := filePathFromURI(certificateURI)
	if err != nil {
		return nil, err
	}

	km.logger.Debugf("loading certificate chain from %s", path)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return helpers.ParseCertificateChain(string(raw))
}

func filePathFromURI(rawURI string) (string, error) {
	uri, err := url.Parse(rawURI)
	if err != nil {
		return "", fmt.Errorf("could not parse URI %q: %w", rawURI, err)
	}

	if uri.Scheme != "file" && uri.Scheme != "" {
		return "", fmt.Errorf("unsupported URI scheme %q", uri.Scheme)
	}

	path := uri.Path
	if path == "" {
		path = strings.TrimPrefix(rawURI, "file://")
	}

	return path, nil
}
