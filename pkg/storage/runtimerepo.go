package storage

import (
	"context"

	"github.com/trustedge/trustedge/pkg/models"
)

// ThingRecord tracks a known client device and the certificate ids attached
// to it, mirrored back verbatim on restart.
type ThingRecord struct {
	ThingName      string   `json:"thing_name"`
	CertificateIDs []string `json:"certificate_ids"`
}

// CertificateRecord tracks the last observed status of a client device
// certificate.
type CertificateRecord struct {
	CertificateID string                   `json:"certificate_id"`
	Status        models.CertificateStatus `json:"status"`
	StatusUpdated int64                    `json:"status_updated"`
}

// CABundle is the persisted material of a generated CA: its certificate and
// the passphrase-sealed private key container.
type CABundle struct {
	CertificatePEM string `json:"certificate_pem"`
	KeyContainer   []byte `json:"key_container"`
}

// RuntimeRepo is the runtime-state slice the trust core persists between
// restarts. Passphrases and CA bundles are stored per CA type so that
// switching the CA type back and forth restores the earlier CA unchanged.
type RuntimeRepo interface {
	GetCAPassphrase(ctx context.Context, caType models.CAType) (string, error)
	UpdateCAPassphrase(ctx context.Context, caType models.CAType, passphrase string) error

	GetCABundle(ctx context.Context, caType models.CAType) (*CABundle, error)
	UpdateCABundle(ctx context.Context, caType models.CAType, bundle CABundle) error

	GetCACertificates(ctx context.Context) ([]string, error)
	UpdateCACertificates(ctx context.Context, pemCerts []string) error

	GetThing(ctx context.Context, thingName string) (*ThingRecord, error)
	PutThing(ctx context.Context, thing ThingRecord) error
	RemoveThing(ctx context.Context, thingName string) error
	ForEachThing(ctx context.Context, apply func(thing ThingRecord) error) error

	GetCertificate(ctx context.Context, certificateID string) (*CertificateRecord, error)
	PutCertificate(ctx context.Context, cert CertificateRecord) error
	RemoveCertificate(ctx context.Context, certificateID string) error
	ForEachCertificate(ctx context.Context, apply func(cert CertificateRecord) error) error

	Close() error
}
