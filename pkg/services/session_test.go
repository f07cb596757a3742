package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trustedge/trustedge/pkg/errs"
	"github.com/trustedge/trustedge/pkg/helpers"
	"github.com/trustedge/trustedge/pkg/models"
)

func acceptAllValidator() CredentialValidator {
	return CredentialValidatorFunc(func(ctx context.Context, credentials map[string]string) (map[string]models.DeviceAttribute, error) {
		attributes := map[string]models.DeviceAttribute{}
		for name, value := range credentials {
			attributes[name] = models.DeviceAttribute{
				Namespace: models.AttributeNamespaceMQTT,
				Name:      name,
				Value:     value,
			}
		}

		return attributes, nil
	})
}

func newTestRegistry() *SessionRegistry {
	return NewSessionRegistry(SessionRegistryBuilder{
		Logger: newTestLogger(),
		Validators: map[string]CredentialValidator{
			"test": acceptAllValidator(),
		},
	})
}

func TestCreateAndFindSession(t *testing.T) {
	ctx := helpers.InitContext()
	registry := newTestRegistry()

	id, err := registry.CreateSession(ctx, "test", map[string]string{"clientId": "device-1"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	session := registry.FindSession(id)
	require.NotNil(t, session)
	assert.Equal(t, id, session.ID)

	attr := session.Attribute("clientId")
	require.NotNil(t, attr)
	assert.Equal(t, "device-1", attr.Value)

	assert.Nil(t, registry.FindSession("no-such-session"))
}

func TestCreateSessionUnknownCredentialType(t *testing.T) {
	ctx := helpers.InitContext()
	registry := newTestRegistry()

	_, err := registry.CreateSession(ctx, "kerberos", map[string]string{})
	assert.ErrorIs(t, err, errs.ErrUnknownCredential)
	assert.Equal(t, 0, registry.SessionCount())
}

func TestCreateSessionValidationFailure(t *testing.T) {
	ctx := helpers.InitContext()
	registry := NewSessionRegistry(SessionRegistryBuilder{
		Logger: newTestLogger(),
		Validators: map[string]CredentialValidator{
			"test": CredentialValidatorFunc(func(ctx context.Context, credentials map[string]string) (map[string]models.DeviceAttribute, error) {
				return nil, fmt.Errorf("bad credentials")
			}),
		},
	})

	_, err := registry.CreateSession(ctx, "test", map[string]string{})
	assert.ErrorIs(t, err, errs.ErrAuthentication)
	assert.Equal(t, 0, registry.SessionCount())
}

func TestCreateSessionValidationTimeout(t *testing.T) {
	ctx := helpers.InitContext()
	registry := NewSessionRegistry(SessionRegistryBuilder{
		Logger: newTestLogger(),
		Validators: map[string]CredentialValidator{
			"test": CredentialValidatorFunc(func(ctx context.Context, credentials map[string]string) (map[string]models.DeviceAttribute, error) {
				// A validator stuck on a remote call gives up when its
				// context expires.
				<-ctx.Done()
				return nil, ctx.Err()
			}),
		},
		ValidationTimeout: 50 * time.Millisecond,
	})

	start := time.Now()
	_, err := registry.CreateSession(ctx, "test", map[string]string{})
	assert.ErrorIs(t, err, errs.ErrAuthentication)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 0, registry.SessionCount())
}

func TestCloseSessionIsIdempotent(t *testing.T) {
	ctx := helpers.InitContext()
	registry := newTestRegistry()

	id, err := registry.CreateSession(ctx, "test", map[string]string{})
	require.NoError(t, err)

	registry.CloseSession(id)
	assert.Nil(t, registry.FindSession(id))

	// Double close and closing an unknown id are no-ops.
	registry.CloseSession(id)
	registry.CloseSession("never-existed")
	assert.Equal(t, 0, registry.SessionCount())
}

func TestCreateSessionConcurrentIDsAreUnique(t *testing.T) {
	ctx := helpers.InitContext()
	registry := newTestRegistry()

	const sessions = 10000
	const workers = 20

	ids := make(chan string, sessions)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < sessions/workers; i++ {
				id, err := registry.CreateSession(ctx, "test", map[string]string{})
				if err != nil {
					t.Error(err)
					return
				}
				ids <- id
			}
		}()
	}

	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate session id %s", id)
		}
		seen[id] = true
	}

	assert.Len(t, seen, sessions)
	assert.Equal(t, sessions, registry.SessionCount())
}
