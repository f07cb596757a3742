package x509engines

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"encoding/hex"
	"math/big"
	"net"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/trustedge/trustedge/pkg/cryptoengines"
	"github.com/trustedge/trustedge/pkg/helpers"
	"github.com/trustedge/trustedge/pkg/models"
)

type X509Engine struct {
	logger           *logrus.Entry
	softCryptoEngine *cryptoengines.SoftwareCryptoEngine
	clock            func() time.Time
}

func NewX509Engine(logger *logrus.Entry) X509Engine {
	return X509Engine{
		logger:           logger,
		softCryptoEngine: cryptoengines.NewSoftwareCryptoEngine(logger),
		clock:            time.Now,
	}
}

// NewX509EngineWithClock injects a deterministic clock. Validity windows of
// issued certificates are computed from it.
func NewX509EngineWithClock(logger *logrus.Entry, clock func() time.Time) X509Engine {
	engine := NewX509Engine(logger)
	engine.clock = clock
	return engine
}

func (engine X509Engine) CreateRootCA(ctx context.Context, signer crypto.Signer, subject models.Subject, validity time.Duration) (*x509.Certificate, error) {
	lFunc := helpers.ConfigureLogger(ctx, engine.logger)

	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	sn, _ := rand.Int(rand.Reader, serialNumberLimit)

	keyID, err := engine.softCryptoEngine.EncodePKIXPublicKeyDigest(signer.Public())
	if err != nil {
		lFunc.Errorf("could not encode public key digest: %s", err)
		return nil, err
	}

	rawHex, _ := hex.DecodeString(keyID)
	now := engine.clock()

	lFunc.Debugf("generating root CA with key ID %s and subject %s", keyID, subject.CommonName)

	template := x509.Certificate{
		SerialNumber:          sn,
		Subject:               helpers.SubjectToPkixName(subject),
		AuthorityKeyId:        rawHex,
		SubjectKeyId:          rawHex,
		NotBefore:             now,
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	certificateBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, signer.Public(), signer)
	if err != nil {
		lFunc.Errorf("could not sign certificate: %s", err)
		return nil, err
	}

	certificate, err := x509.ParseCertificate(certificateBytes)
	if err != nil {
		lFunc.Errorf("could not parse signed certificate %s", err)
		return nil, err
	}

	return certificate, nil
}

// SignServerCertificate issues a server leaf bound to the supplied public key.
// "localhost" is always part of the SAN set so that on-gateway components can
// verify the server without disabling peer verification; duplicates in the
// connectivity list are collapsed.
func (engine X509Engine) SignServerCertificate(ctx context.Context, ca *x509.Certificate, caSigner crypto.Signer, subject models.Subject, pubKey crypto.PublicKey, connectivityInfo []string) (*x509.Certificate, error) {
	lFunc := helpers.ConfigureLogger(ctx, engine.logger)

	hosts := append(slices.Clone(connectivityInfo), "localhost")

	template, err := engine.leafTemplate(ca, subject, pubKey)
	if err != nil {
		lFunc.Errorf("could not build leaf template: %s", err)
		return nil, err
	}

	for _, host := range hosts {
		if ip := net.ParseIP(host); ip != nil {
			if !slices.ContainsFunc(template.IPAddresses, ip.Equal) {
				template.IPAddresses = append(template.IPAddresses, ip)
			}
		} else if !slices.Contains(template.DNSNames, host) {
			template.DNSNames = append(template.DNSNames, host)
		}
	}

	template.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}

	lFunc.Infof("signing server certificate for %s with SANs %v", subject.CommonName, hosts)
	return engine.signLeaf(ctx, template, ca, caSigner, pubKey)
}

// SignClientCertificate issues a client leaf for the supplied subject and
// public key. Client certificates carry no SAN hostnames.
func (engine X509Engine) SignClientCertificate(ctx context.Context, ca *x509.Certificate, caSigner crypto.Signer, subject models.Subject, pubKey crypto.PublicKey) (*x509.Certificate, error) {
	lFunc := helpers.ConfigureLogger(ctx, engine.logger)

	template, err := engine.leafTemplate(ca, subject, pubKey)
	if err != nil {
		lFunc.Errorf("could not build leaf template: %s", err)
		return nil, err
	}

	template.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth}

	lFunc.Infof("signing client certificate for %s", subject.CommonName)
	return engine.signLeaf(ctx, template, ca, caSigner, pubKey)
}

func (engine X509Engine) leafTemplate(ca *x509.Certificate, subject models.Subject, pubKey crypto.PublicKey) (*x509.Certificate, error) {
	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	sn, _ := rand.Int(rand.Reader, serialNumberLimit)

	skid, err := engine.softCryptoEngine.EncodePKIXPublicKeyDigest(pubKey)
	if err != nil {
		return nil, err
	}

	rawHex, _ := hex.DecodeString(skid)
	now := engine.clock()

	return &x509.Certificate{
		SerialNumber:   sn,
		Subject:        helpers.SubjectToPkixName(subject),
		SubjectKeyId:   rawHex,
		AuthorityKeyId: ca.SubjectKeyId,
		Issuer:         ca.Subject,
		NotBefore:      now,
		NotAfter:       now.Add(models.DefaultCertExpiry),
		KeyUsage:       x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
	}, nil
}

func (engine X509Engine) signLeaf(ctx context.Context, template *x509.Certificate, ca *x509.Certificate, caSigner crypto.Signer, pubKey crypto.PublicKey) (*x509.Certificate, error) {
	lFunc := helpers.ConfigureLogger(ctx, engine.logger)

	certificateBytes, err := x509.CreateCertificate(rand.Reader, template, ca, pubKey, caSigner)
	if err != nil {
		lFunc.Errorf("could not sign certificate: %s", err)
		return nil, err
	}

	certificate, err := x509.ParseCertificate(certificateBytes)
	if err != nil {
		lFunc.Errorf("could not parse signed certificate %s", err)
		return nil, err
	}

	return certificate, nil
}
