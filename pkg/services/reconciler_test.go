package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trustedge/trustedge/pkg/errs"
	"github.com/trustedge/trustedge/pkg/helpers"
	"github.com/trustedge/trustedge/pkg/models"
)

func newReconcilerFixture(t *testing.T, cloud *fakeCloudClient) (*CloudCAReconciler, *CertificateManager, *CertificateStore, *recordingPublisher) {
	t.Helper()

	store := newTestStore(t, newTestRepo(t))
	certManager := newTestCertManager(t, store)
	publisher := &recordingPublisher{}

	reconciler := NewCloudCAReconciler(CloudCAReconcilerBuilder{
		Logger:             newTestLogger(),
		CertificateManager: certManager,
		CloudClient:        cloud,
		EventPublisher:     publisher,
	})

	return reconciler, certManager, store, publisher
}

func TestReconcileSkipsWithoutLocalCA(t *testing.T) {
	ctx := helpers.InitContext()
	cloud := &fakeCloudClient{}
	reconciler, _, _, publisher := newReconcilerFixture(t, cloud)

	require.NoError(t, reconciler.Reconcile(ctx))
	assert.Equal(t, 0, cloud.getCalls)
	assert.Empty(t, publisher.Events())
}

func TestReconcileMatchingSetsPublishesNothing(t *testing.T) {
	ctx := helpers.InitContext()
	cloud := &fakeCloudClient{}
	reconciler, certManager, store, publisher := newReconcilerFixture(t, cloud)

	_, err := store.GenerateCA(ctx, models.CATypeRSA2048)
	require.NoError(t, err)

	localPEM, err := certManager.GetCACertificates()
	require.NoError(t, err)
	require.NoError(t, cloud.PutCertificateAuthorities(ctx, localPEM))

	require.NoError(t, reconciler.Reconcile(ctx))
	assert.Empty(t, publisher.Events())
}

func TestReconcileDriftPublishesCatchUp(t *testing.T) {
	ctx := helpers.InitContext()
	cloud := &fakeCloudClient{}
	reconciler, _, store, publisher := newReconcilerFixture(t, cloud)

	_, err := store.GenerateCA(ctx, models.CATypeRSA2048)
	require.NoError(t, err)

	require.NoError(t, cloud.PutCertificateAuthorities(ctx, []string{"-----BEGIN CERTIFICATE-----\nstale\n-----END CERTIFICATE-----"}))

	require.NoError(t, reconciler.Reconcile(ctx))
	assert.Equal(t, 1, publisher.CountByType(models.EventCACertificatesUpdated))
}

func TestReconcileCloudNotFoundPublishesCatchUp(t *testing.T) {
	ctx := helpers.InitContext()
	cloud := &fakeCloudClient{getErr: errs.ErrCloudNotFound}
	reconciler, _, store, publisher := newReconcilerFixture(t, cloud)

	_, err := store.GenerateCA(ctx, models.CATypeRSA2048)
	require.NoError(t, err)

	require.NoError(t, reconciler.Reconcile(ctx))
	assert.Equal(t, 1, publisher.CountByType(models.EventCACertificatesUpdated))
}

func TestReconcileCloudThrottledIsNonFatal(t *testing.T) {
	ctx := helpers.InitContext()
	cloud := &fakeCloudClient{getErr: errs.ErrCloudThrottled}
	reconciler, _, store, publisher := newReconcilerFixture(t, cloud)

	_, err := store.GenerateCA(ctx, models.CATypeRSA2048)
	require.NoError(t, err)

	require.NoError(t, reconciler.Reconcile(ctx))
	assert.Empty(t, publisher.Events())
}

func TestReconcileUnexpectedCloudErrorIsReturned(t *testing.T) {
	ctx := helpers.InitContext()
	cloud := &fakeCloudClient{getErr: fmt.Errorf("connection reset")}
	reconciler, _, store, publisher := newReconcilerFixture(t, cloud)

	_, err := store.GenerateCA(ctx, models.CATypeRSA2048)
	require.NoError(t, err)

	assert.Error(t, reconciler.Reconcile(ctx))
	assert.Empty(t, publisher.Events())
}
