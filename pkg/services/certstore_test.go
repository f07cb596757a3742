package services

import (
	"bytes"
	"crypto/x509"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trustedge/trustedge/pkg/errs"
	"github.com/trustedge/trustedge/pkg/helpers"
	"github.com/trustedge/trustedge/pkg/models"
)

func TestGenerateCACreatesSelfSignedRoot(t *testing.T) {
	ctx := helpers.InitContext()
	repo := newTestRepo(t)
	store := newTestStore(t, repo)

	ca, err := store.GenerateCA(ctx, models.CATypeRSA2048)
	require.NoError(t, err)
	require.NotNil(t, ca)

	cert := x509.Certificate(*ca.Certificate)
	assert.True(t, cert.IsCA)
	assert.Equal(t, cert.Subject.CommonName, cert.Issuer.CommonName)
	assert.Equal(t, models.CAOriginGenerated, ca.Origin)
	assert.NoError(t, cert.CheckSignatureFrom(&cert))
}

func TestGenerateCAIsReproducibleAcrossRestart(t *testing.T) {
	ctx := helpers.InitContext()
	repo := newTestRepo(t)

	store := newTestStore(t, repo)
	first, err := store.GenerateCA(ctx, models.CATypeECDSAP256)
	require.NoError(t, err)
	firstPassphrase := store.CAPassphrase()
	require.NotEmpty(t, firstPassphrase)

	// A fresh store over the same runtime repo models a process restart.
	restarted := newTestStore(t, repo)
	second, err := restarted.GenerateCA(ctx, models.CATypeECDSAP256)
	require.NoError(t, err)

	assert.True(t, bytes.Equal(first.Certificate.Raw, second.Certificate.Raw))
	assert.Equal(t, firstPassphrase, restarted.CAPassphrase())
}

func TestGenerateCATypeSwitchMintsNewMaterial(t *testing.T) {
	ctx := helpers.InitContext()
	repo := newTestRepo(t)
	store := newTestStore(t, repo)

	rsaCA, err := store.GenerateCA(ctx, models.CATypeRSA2048)
	require.NoError(t, err)
	rsaPassphrase := store.CAPassphrase()

	ecCA, err := store.GenerateCA(ctx, models.CATypeECDSAP256)
	require.NoError(t, err)
	ecPassphrase := store.CAPassphrase()

	assert.False(t, bytes.Equal(rsaCA.Certificate.Raw, ecCA.Certificate.Raw))
	assert.NotEqual(t, rsaPassphrase, ecPassphrase)

	// Switching back to the original type reproduces the original CA.
	backCA, err := store.GenerateCA(ctx, models.CATypeRSA2048)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(rsaCA.Certificate.Raw, backCA.Certificate.Raw))
	assert.Equal(t, rsaPassphrase, store.CAPassphrase())
}

func TestCAAccessorsWithoutConfiguredCA(t *testing.T) {
	store := newTestStore(t, newTestRepo(t))

	_, err := store.CACertificate()
	assert.ErrorIs(t, err, errs.ErrCANotConfigured)

	_, err = store.CAPrivateKey()
	assert.ErrorIs(t, err, errs.ErrCANotConfigured)

	assert.Nil(t, store.ActiveCA())
}

func TestImportCA(t *testing.T) {
	ctx := helpers.InitContext()
	repo := newTestRepo(t)
	store := newTestStore(t, repo)

	// Mint a CA in a scratch store to get importable material.
	scratch := newTestStore(t, newTestRepo(t))
	source, err := scratch.GenerateCA(ctx, models.CATypeRSA2048)
	require.NoError(t, err)

	sourceCert := x509.Certificate(*source.Certificate)
	imported, err := store.ImportCA(ctx, source.Signer, []*x509.Certificate{&sourceCert})
	require.NoError(t, err)

	assert.Equal(t, models.CAOriginImported, imported.Origin)
	assert.Empty(t, store.CAPassphrase())

	active, err := store.CACertificate()
	require.NoError(t, err)
	assert.True(t, bytes.Equal(sourceCert.Raw, active.Raw))
}

func TestImportCARejectsIncompleteMaterial(t *testing.T) {
	ctx := helpers.InitContext()
	store := newTestStore(t, newTestRepo(t))

	_, err := store.ImportCA(ctx, nil, nil)
	assert.ErrorIs(t, err, errs.ErrCAConfiguration)
}
