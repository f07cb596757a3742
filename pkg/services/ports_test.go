package services

import (
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trustedge/trustedge/pkg/helpers"
	"github.com/trustedge/trustedge/pkg/models"
)

func TestFilesystemKeyManagerReadsFullCertificateChain(t *testing.T) {
	ctx := helpers.InitContext()

	chainPEM := ""
	serials := []string{}
	for _, caType := range []models.CAType{models.CATypeECDSAP256, models.CATypeRSA2048} {
		store := newTestStore(t, newTestRepo(t))
		ca, err := store.GenerateCA(ctx, caType)
		require.NoError(t, err)

		cert := x509.Certificate(*ca.Certificate)
		modelCert := models.X509Certificate(cert)
		chainPEM += modelCert.PEM()
		serials = append(serials, cert.SerialNumber.String())
	}

	path := filepath.Join(t.TempDir(), "chain.pem")
	require.NoError(t, os.WriteFile(path, []byte(chainPEM), 0644))

	km := NewFilesystemKeyManager(newTestLogger())
	chain, err := km.GetCertificateChain(ctx, "", "file://"+path)
	require.NoError(t, err)
	require.Len(t, chain, 2)

	assert.Equal(t, serials[0], chain[0].SerialNumber.String())
	assert.Equal(t, serials[1], chain[1].SerialNumber.String())
}

func TestFilesystemKeyManagerRejectsUnsupportedScheme(t *testing.T) {
	ctx := helpers.InitContext()
	km := NewFilesystemKeyManager(newTestLogger())

	_, err := km.GetCertificateChain(ctx, "", "s3://bucket/cert.pem")
	assert.Error(t, err)

	_, err = km.GetKeyPair(ctx, "s3://bucket/key.pem", "")
	assert.Error(t, err)
}
