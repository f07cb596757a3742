package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/trustedge/trustedge/pkg/errs"
	"github.com/trustedge/trustedge/pkg/helpers"
	"github.com/trustedge/trustedge/pkg/models"
)

// CredentialValidator authenticates one kind of device credential and
// resolves it into session attributes. Implementations are registered per
// credential type at construction.
type CredentialValidator interface {
	ValidateCredentials(ctx context.Context, credentials map[string]string) (map[string]models.DeviceAttribute, error)
}

// CredentialValidatorFunc adapts a function to the CredentialValidator
// interface.
type CredentialValidatorFunc func(ctx context.Context, credentials map[string]string) (map[string]models.DeviceAttribute, error)

func (f CredentialValidatorFunc) ValidateCredentials(ctx context.Context, credentials map[string]string) (map[string]models.DeviceAttribute, error) {
	return f(ctx, credentials)
}

// SessionRegistry stores authenticated sessions under opaque random ids. It
// never expires sessions on its own; callers own the lifecycle and must close
// what they create.
type SessionRegistry struct {
	logger            *logrus.Entry
	validators        map[string]CredentialValidator
	validationTimeout time.Duration

	mu       sync.RWMutex
	sessions map[string]*models.Session
}

type SessionRegistryBuilder struct {
	Logger     *logrus.Entry
	Validators map[string]CredentialValidator

	// ValidationTimeout bounds a single credential validation. Zero means no
	// bound beyond the caller's context.
	ValidationTimeout time.Duration
}

func NewSessionRegistry(builder SessionRegistryBuilder) *SessionRegistry {
	validators := map[string]CredentialValidator{}
	for credentialType, validator := range builder.Validators {
		validators[credentialType] = validator
	}

	return &SessionRegistry{
		logger:            builder.Logger,
		validators:        validators,
		validationTimeout: builder.ValidationTimeout,
		sessions:          map[string]*models.Session{},
	}
}

// CreateSession authenticates the credentials through the validator registered
// for their type and stores the resulting session under a fresh id. No two
// live sessions ever share an id.
func (svc *SessionRegistry) CreateSession(ctx context.Context, credentialType string, credentials map[string]string) (string, error) {
	lFunc := helpers.ConfigureLogger(ctx, svc.logger)

	validator, ok := svc.validators[credentialType]
	if !ok {
		lFunc.Errorf("no validator registered for credential type %q", credentialType)
		return "", fmt.Errorf("%w: %q", errs.ErrUnknownCredential, credentialType)
	}

	validateCtx := ctx
	if svc.validationTimeout > 0 {
		var cancel context.CancelFunc
		validateCtx, cancel = context.WithTimeout(ctx, svc.validationTimeout)
		defer cancel()
	}

	attributes, err := validator.ValidateCredentials(validateCtx, credentials)
	if err != nil {
		lFunc.Warnf("credential validation failed for type %q: %s", credentialType, err)
		return "", fmt.Errorf("%w: %s", errs.ErrAuthentication, err)
	}

	session := &models.Session{
		Attributes: attributes,
	}

	svc.mu.Lock()
	for {
		id := uuid.NewString()
		if _, taken := svc.sessions[id]; taken {
			continue
		}

		session.ID = id
		svc.sessions[id] = session
		break
	}
	live := len(svc.sessions)
	svc.mu.Unlock()

	lFunc.Debugf("created %s session %s (%d live)", credentialType, session.ID, live)
	return session.ID, nil
}

// FindSession returns the live session with the given id, or nil on miss.
func (svc *SessionRegistry) FindSession(id string) *models.Session {
	svc.mu.RLock()
	defer svc.mu.RUnlock()

	return svc.sessions[id]
}

// CloseSession removes a session. Closing an unknown or already-closed id is
// a no-op.
func (svc *SessionRegistry) CloseSession(id string) {
	svc.mu.Lock()
	delete(svc.sessions, id)
	svc.mu.Unlock()
}

// SessionCount reports the number of live sessions.
func (svc *SessionRegistry) SessionCount() int {
	svc.mu.RLock()
	defer svc.mu.RUnlock()

	return len(svc.sessions)
}
