package services

import (
	"context"
	"reflect"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/trustedge/trustedge/pkg/eventbus"
	"github.com/trustedge/trustedge/pkg/helpers"
	"github.com/trustedge/trustedge/pkg/models"
)

// ConfigurationService receives configuration snapshots from the host runtime,
// diffs them section by section against the previously applied snapshot and
// fans the changed sections out to the interested subsystems. Unchanged
// sections are never re-applied, so a snapshot delivery with no material
// change is free.
type ConfigurationService struct {
	logger      *logrus.Entry
	groupEngine *GroupPolicyEngine
	caManager   *CAConfigurationManager
	eventPub    eventbus.ICloudEventPublisher

	mu          sync.Mutex
	lastApplied *models.ConfigurationSnapshot
}

type ConfigurationServiceBuilder struct {
	Logger         *logrus.Entry
	GroupEngine    *GroupPolicyEngine
	CAManager      *CAConfigurationManager
	EventPublisher eventbus.ICloudEventPublisher
}

func NewConfigurationService(builder ConfigurationServiceBuilder) *ConfigurationService {
	return &ConfigurationService{
		logger:      builder.Logger,
		groupEngine: builder.GroupEngine,
		caManager:   builder.CAManager,
		eventPub:    builder.EventPublisher,
	}
}

// Snapshot returns the last applied configuration, or nil before the first
// successful apply.
func (svc *ConfigurationService) Snapshot() *models.ConfigurationSnapshot {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.lastApplied == nil {
		return nil
	}

	snapshot := *svc.lastApplied
	return &snapshot
}

// ApplyConfiguration applies a fresh configuration snapshot. Sections are
// applied independently: a failing section keeps its previous value while the
// other sections still take effect. The first error is returned.
func (svc *ConfigurationService) ApplyConfiguration(ctx context.Context, snapshot models.ConfigurationSnapshot) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	lFunc := helpers.ConfigureLogger(ctx, svc.logger)

	previous := svc.lastApplied

	// Sections are recorded as applied only once they took effect, so a
	// failed section is retried even when the next snapshot repeats it.
	var applied models.ConfigurationSnapshot
	if previous != nil {
		applied = *previous
	}

	var firstErr error

	if previous == nil || !reflect.DeepEqual(previous.DeviceGroups, snapshot.DeviceGroups) {
		lFunc.Infof("device group configuration changed, reloading")
		if err := svc.groupEngine.LoadConfiguration(ctx, snapshot.DeviceGroups); err != nil {
			firstErr = err
		} else {
			applied.DeviceGroups = snapshot.DeviceGroups
		}
	}

	if previous == nil || !reflect.DeepEqual(previous.CertificateAuthority, snapshot.CertificateAuthority) {
		lFunc.Infof("certificate authority configuration changed, applying")
		if err := svc.caManager.ApplyConfiguration(ctx, snapshot.CertificateAuthority); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else {
			applied.CertificateAuthority = snapshot.CertificateAuthority
			svc.eventPub.PublishCloudEvent(ctx, models.EventCAConfigurationChanged, models.CAConfigurationChangedPayload{
				Configuration: snapshot.CertificateAuthority,
			})
		}
	}

	if previous == nil || !reflect.DeepEqual(previous.Security, snapshot.Security) {
		lFunc.Infof("security configuration changed")
		applied.Security = snapshot.Security
		svc.eventPub.PublishCloudEvent(ctx, models.EventSecurityConfigurationChanged, models.SecurityConfigurationChangedPayload{
			Security: snapshot.Security,
		})
	}

	if previous == nil || !reflect.DeepEqual(previous.Metrics, snapshot.Metrics) {
		lFunc.Infof("metrics configuration changed")
		applied.Metrics = snapshot.Metrics
		svc.eventPub.PublishCloudEvent(ctx, models.EventMetricsConfigurationChanged, models.MetricsConfigurationChangedPayload{
			Metrics: snapshot.Metrics,
		})
	}

	// Performance settings carry no reactive behavior; record them as given.
	applied.Performance = snapshot.Performance

	svc.lastApplied = &applied
	return firstErr
}
