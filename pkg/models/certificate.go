package models

import (
	"crypto"
	"crypto/x509"
	"time"
)

type CertificateVariant string

const (
	CertificateVariantServer CertificateVariant = "SERVER"
	CertificateVariantClient CertificateVariant = "CLIENT"
)

// DefaultCertExpiry is the validity window of issued leaf certificates.
const DefaultCertExpiry = 7 * 24 * time.Hour

// ConnectivitySupplier returns the hostnames and addresses a SERVER
// certificate must cover. It is re-evaluated on every (re)generation.
type ConnectivitySupplier func() []string

// CertificateUpdateCallback receives every newly issued certificate together
// with the CA chain it was signed under.
type CertificateUpdateCallback func(cert *x509.Certificate, caChain []*x509.Certificate)

// CertificateSubscription is a standing request for a leaf certificate that
// is kept current across CA rotations.
type CertificateSubscription struct {
	Principal    string                    `validate:"required"`
	Variant      CertificateVariant        `validate:"required,oneof=SERVER CLIENT"`
	Subject      Subject                   `validate:"required"`
	PublicKey    crypto.PublicKey          `validate:"required"`
	Callback     CertificateUpdateCallback `validate:"required"`
	Connectivity ConnectivitySupplier
}

type CertificateStatus string

const (
	CertificateStatusActive   CertificateStatus = "ACTIVE"
	CertificateStatusRevoked  CertificateStatus = "REVOKED"
	CertificateStatusUnknown  CertificateStatus = "UNKNOWN"
	CertificateStatusInactive CertificateStatus = "INACTIVE"
)
