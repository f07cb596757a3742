package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/trustedge/trustedge/pkg/cryptoengines"
	"github.com/trustedge/trustedge/pkg/helpers"
	"github.com/trustedge/trustedge/pkg/models"
	"github.com/trustedge/trustedge/pkg/storage"
)

// Credential map keys understood by the MQTT validator.
const (
	MQTTCredentialClientID       = "clientId"
	MQTTCredentialCertificatePEM = "certificatePem"
	MQTTCredentialUsername       = "username"
)

// MQTTCredentialValidator authenticates MQTT connect credentials: the client
// certificate must parse and verify against the currently active CA. Resolved
// attributes feed the group policy engine. Successful validations are recorded
// in the runtime store as thing and certificate records.
type MQTTCredentialValidator struct {
	logger      *logrus.Entry
	store       *CertificateStore
	runtimeRepo storage.RuntimeRepo
}

func NewMQTTCredentialValidator(logger *logrus.Entry, store *CertificateStore, runtimeRepo storage.RuntimeRepo) *MQTTCredentialValidator {
	return &MQTTCredentialValidator{
		logger:      logger,
		store:       store,
		runtimeRepo: runtimeRepo,
	}
}

func (v *MQTTCredentialValidator) ValidateCredentials(ctx context.Context, credentials map[string]string) (map[string]models.DeviceAttribute, error) {
	lFunc := helpers.ConfigureLogger(ctx, v.logger)

	clientID := credentials[MQTTCredentialClientID]
	if clientID == "" {
		return nil, fmt.Errorf("missing %s", MQTTCredentialClientID)
	}

	certPEM := credentials[MQTTCredentialCertificatePEM]
	if certPEM == "" {
		return nil, fmt.Errorf("missing %s", MQTTCredentialCertificatePEM)
	}

	cert, err := helpers.ParseCertificate(certPEM)
	if err != nil {
		return nil, fmt.Errorf("unparsable client certificate: %s", err)
	}

	caCert, err := v.store.CACertificate()
	if err != nil {
		return nil, err
	}

	if err := cert.CheckSignatureFrom(caCert); err != nil {
		lFunc.Warnf("client %s presented a certificate not issued by the active CA: %s", clientID, err)
		return nil, fmt.Errorf("certificate not issued by active authority: %s", err)
	}

	engine := cryptoengines.NewSoftwareCryptoEngine(v.logger)
	certificateID, err := engine.EncodePKIXPublicKeyDigest(cert.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("could not fingerprint client public key: %s", err)
	}

	attributes := map[string]models.DeviceAttribute{
		"clientId": {
			Namespace: models.AttributeNamespaceMQTT,
			Name:      "clientId",
			Value:     clientID,
		},
		"certificateId": {
			Namespace: models.AttributeNamespaceCertificate,
			Name:      "certificateId",
			Value:     certificateID,
		},
		"thingName": {
			Namespace: models.AttributeNamespaceThing,
			Name:      "thingName",
			Value:     cert.Subject.CommonName,
		},
	}

	if username := credentials[MQTTCredentialUsername]; username != "" {
		attributes["username"] = models.DeviceAttribute{
			Namespace: models.AttributeNamespaceMQTT,
			Name:      "username",
			Value:     username,
		}
	}

	v.recordValidation(ctx, cert.Subject.CommonName, certificateID)

	return attributes, nil
}

// recordValidation upserts the thing and certificate records for a freshly
// authenticated client. Store failures only lose bookkeeping, not the
// authentication itself, so they are logged and swallowed.
func (v *MQTTCredentialValidator) recordValidation(ctx context.Context, thingName, certificateID string) {
	lFunc := helpers.ConfigureLogger(ctx, v.logger)

	err := v.runtimeRepo.PutCertificate(ctx, storage.CertificateRecord{
		CertificateID: certificateID,
		Status:        models.CertificateStatusActive,
		StatusUpdated: time.Now().Unix(),
	})
	if err != nil {
		lFunc.Warnf("could not record certificate %s: %s", certificateID, err)
		return
	}

	thing, err := v.runtimeRepo.GetThing(ctx, thingName)
	if err != nil {
		lFunc.Warnf("could not load thing %s: %s", thingName, err)
		return
	}

	if thing == nil {
		thing = &storage.ThingRecord{ThingName: thingName}
	}

	for _, id := range thing.CertificateIDs {
		if id == certificateID {
			return
		}
	}

	thing.CertificateIDs = append(thing.CertificateIDs, certificateID)
	if err := v.runtimeRepo.PutThing(ctx, *thing); err != nil {
		lFunc.Warnf("could not record thing %s: %s", thingName, err)
	}
}
