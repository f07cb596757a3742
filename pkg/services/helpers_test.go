package services

import (
	"context"
	"crypto/rsa"
	"sync"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/sirupsen/logrus"
	"github.com/trustedge/trustedge/pkg/cryptoengines"
	"github.com/trustedge/trustedge/pkg/models"
	"github.com/trustedge/trustedge/pkg/storage"
	"github.com/trustedge/trustedge/pkg/x509engines"
)

func newTestLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger.WithField("test", "test")
}

func newTestRepo(t *testing.T) storage.RuntimeRepo {
	t.Helper()

	repo, err := storage.NewBadgerRuntimeRepo(newTestLogger(), "")
	if err != nil {
		t.Fatalf("could not open in-memory runtime store: %v", err)
	}

	t.Cleanup(func() {
		repo.Close()
	})

	return repo
}

func newTestStore(t *testing.T, repo storage.RuntimeRepo) *CertificateStore {
	t.Helper()

	logger := newTestLogger()
	return NewCertificateStore(CertificateStoreBuilder{
		Logger:      logger,
		RuntimeRepo: repo,
		X509Engine:  x509engines.NewX509Engine(logger),
	})
}

func newTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()

	_, key, err := cryptoengines.NewSoftwareCryptoEngine(newTestLogger()).CreateRSAPrivateKey(2048)
	if err != nil {
		t.Fatalf("could not create test key: %v", err)
	}

	return key
}

func newRawMessage(payload string) *message.Message {
	return message.NewMessage(watermill.NewUUID(), []byte(payload))
}

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	EventType models.EventType
	Payload   interface{}
}

func (pub *recordingPublisher) PublishCloudEvent(ctx context.Context, eventType models.EventType, payload interface{}) {
	pub.mu.Lock()
	defer pub.mu.Unlock()

	pub.events = append(pub.events, recordedEvent{EventType: eventType, Payload: payload})
}

func (pub *recordingPublisher) Events() []recordedEvent {
	pub.mu.Lock()
	defer pub.mu.Unlock()

	return append([]recordedEvent{}, pub.events...)
}

func (pub *recordingPublisher) CountByType(eventType models.EventType) int {
	count := 0
	for _, event := range pub.Events() {
		if event.EventType == eventType {
			count++
		}
	}

	return count
}

// fakeCloudClient is an in-memory CloudCAClient with scriptable failures.
type fakeCloudClient struct {
	mu       sync.Mutex
	pemCerts []string
	pushed   bool
	putErr   error
	getErr   error
	putCalls int
	getCalls int
}

func (cli *fakeCloudClient) PutCertificateAuthorities(ctx context.Context, pemCerts []string) error {
	cli.mu.Lock()
	defer cli.mu.Unlock()

	cli.putCalls++
	if cli.putErr != nil {
		return cli.putErr
	}

	cli.pemCerts = append([]string{}, pemCerts...)
	cli.pushed = true
	return nil
}

func (cli *fakeCloudClient) GetCertificateAuthorities(ctx context.Context) ([]string, error) {
	cli.mu.Lock()
	defer cli.mu.Unlock()

	cli.getCalls++
	if cli.getErr != nil {
		return nil, cli.getErr
	}

	return append([]string{}, cli.pemCerts...), nil
}
