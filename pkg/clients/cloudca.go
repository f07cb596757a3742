package clients

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/trustedge/trustedge/pkg/errs"
)

// NoopCloudCAClient is an in-process stand-in for the cloud CA collaborator,
// used when the service runs without cloud connectivity. It keeps the last
// pushed CA set in memory so reconciliation cycles see a consistent shadow.
type NoopCloudCAClient struct {
	logger *logrus.Entry

	mu       sync.Mutex
	pemCerts []string
	pushed   bool
}

func NewNoopCloudCAClient(logger *logrus.Entry) *NoopCloudCAClient {
	return &NoopCloudCAClient{
		logger: logger,
	}
}

func (cli *NoopCloudCAClient) PutCertificateAuthorities(ctx context.Context, pemCerts []string) error {
	cli.mu.Lock()
	defer cli.mu.Unlock()

	cli.pemCerts = append([]string{}, pemCerts...)
	cli.pushed = true
	cli.logger.Debugf("accepted %d CA certificates", len(pemCerts))
	return nil
}

func (cli *NoopCloudCAClient) GetCertificateAuthorities(ctx context.Context) ([]string, error) {
	cli.mu.Lock()
	defer cli.mu.Unlock()

	if !cli.pushed {
		return nil, errs.ErrCloudNotFound
	}

	return append([]string{}, cli.pemCerts...), nil
}
