package models

import (
	"crypto"
	"time"
)

type CAType string

const (
	CATypeRSA2048   CAType = "RSA_2048"
	CATypeRSA3072   CAType = "RSA_3072"
	CATypeECDSAP256 CAType = "ECDSA_P256"
	CATypeECDSAP384 CAType = "ECDSA_P384"
)

type CAOrigin string

const (
	CAOriginGenerated CAOrigin = "GENERATED"
	CAOriginImported  CAOrigin = "IMPORTED"
)

type CAMode string

const (
	CAModeManaged CAMode = "MANAGED"
	CAModeCustom  CAMode = "CUSTOM"
)

// CertificateAuthority is the active signing authority. Exactly one is live
// at a time; rotating discards the previous material from memory.
type CertificateAuthority struct {
	Certificate *X509Certificate `json:"certificate"`
	Signer      crypto.Signer    `json:"-"`
	Origin      CAOrigin         `json:"origin"`
	Type        CAType           `json:"type"`
	CreationTS  time.Time        `json:"creation_ts"`
}

// CAConfiguration is the certificateAuthority slice of the configuration
// snapshot. CUSTOM mode requires both URIs; absence of either implies MANAGED.
type CAConfiguration struct {
	Type           CAType `json:"ca_type" mapstructure:"caType"`
	PrivateKeyURI  string `json:"private_key_uri" mapstructure:"privateKeyUri"`
	CertificateURI string `json:"certificate_uri" mapstructure:"certificateUri"`
}

func (c CAConfiguration) Mode() CAMode {
	if c.PrivateKeyURI != "" && c.CertificateURI != "" {
		return CAModeCustom
	}
	return CAModeManaged
}

func (c CAConfiguration) Equal(other CAConfiguration) bool {
	return c.Type == other.Type &&
		c.PrivateKeyURI == other.PrivateKeyURI &&
		c.CertificateURI == other.CertificateURI
}
