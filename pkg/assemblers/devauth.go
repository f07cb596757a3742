package assemblers

import (
	"context"
	"fmt"
	"time"

	"github.com/trustedge/trustedge/pkg/config"
	"github.com/trustedge/trustedge/pkg/eventbus"
	"github.com/trustedge/trustedge/pkg/helpers"
	"github.com/trustedge/trustedge/pkg/jobs"
	"github.com/trustedge/trustedge/pkg/models"
	"github.com/trustedge/trustedge/pkg/services"
	"github.com/trustedge/trustedge/pkg/storage"
	"github.com/trustedge/trustedge/pkg/x509engines"
)

const serviceID = "device-auth"

// DeviceAuthService is the assembled trust core: the produced interface
// consumed by ingress handlers and the host runtime's configuration notifier.
type DeviceAuthService struct {
	Configuration *services.ConfigurationService
	Certificates  *services.CertificateManager
	Sessions      *services.SessionRegistry
	Groups        *services.GroupPolicyEngine

	runtimeRepo storage.RuntimeRepo
	pushHandler *eventbus.EventSubscriptionHandler
	syncJob     *jobs.JobScheduler
}

// AssembleDeviceAuthService wires the full service graph: runtime store,
// event bus, CA state machine, certificate subscriptions, session registry and
// the cloud sync pipeline. The cloud client is a collaborator implemented by
// surrounding transport code.
func AssembleDeviceAuthService(conf config.DeviceAuthConfig, cloudClient services.CloudCAClient) (*DeviceAuthService, error) {
	lSvc := helpers.SetupLogger(conf.Logs.Level, serviceID, "Service")
	lStorage := helpers.SetupLogger(conf.Storage.LogLevel, serviceID, "Storage")
	lMessaging := helpers.SetupLogger(conf.EventBus.LogLevel, serviceID, "Event Bus")
	lJobs := helpers.SetupLogger(conf.CloudSync.LogLevel, serviceID, "Cloud Sync")

	runtimeRepo, err := storage.NewBadgerRuntimeRepo(lStorage, conf.Storage.Directory)
	if err != nil {
		return nil, fmt.Errorf("could not open runtime store: %w", err)
	}

	publisher, subscriber := eventbus.NewGoChannelPubSub(lMessaging)
	eventPub := &eventbus.CloudEventPublisher{
		Publisher: publisher,
		ServiceID: serviceID,
		Logger:    lMessaging,
	}

	x509Engine := x509engines.NewX509Engine(lSvc)

	certStore := services.NewCertificateStore(services.CertificateStoreBuilder{
		Logger:      lSvc,
		RuntimeRepo: runtimeRepo,
		X509Engine:  x509Engine,
	})

	certManager := services.NewCertificateManager(services.CertificateManagerBuilder{
		Logger:     lSvc,
		Store:      certStore,
		X509Engine: x509Engine,
	})

	caManager := services.NewCAConfigurationManager(services.CAConfigurationManagerBuilder{
		Logger:             lSvc,
		Store:              certStore,
		CertificateManager: certManager,
		KeyManager:         services.NewFilesystemKeyManager(lSvc),
		RuntimeRepo:        runtimeRepo,
		EventPublisher:     eventPub,
	})

	groupEngine := services.NewGroupPolicyEngine(lSvc)

	configService := services.NewConfigurationService(services.ConfigurationServiceBuilder{
		Logger:         lSvc,
		GroupEngine:    groupEngine,
		CAManager:      caManager,
		EventPublisher: eventPub,
	})

	sessionRegistry := services.NewSessionRegistry(services.SessionRegistryBuilder{
		Logger: lSvc,
		Validators: map[string]services.CredentialValidator{
			"mqtt": services.NewMQTTCredentialValidator(lSvc, certStore, runtimeRepo),
		},
		ValidationTimeout: time.Duration(conf.CredentialTimeout) * time.Second,
	})

	svc := &DeviceAuthService{
		Configuration: configService,
		Certificates:  certManager,
		Sessions:      sessionRegistry,
		Groups:        groupEngine,
		runtimeRepo:   runtimeRepo,
	}

	callTimeout := time.Duration(conf.CloudCallTimeout) * time.Second

	pushHandler, err := services.RegisterCloudPushHandler(
		services.NewCloudPushHandler(lMessaging, cloudClient, callTimeout),
		subscriber,
		lMessaging,
	)
	if err != nil {
		runtimeRepo.Close()
		return nil, err
	}
	svc.pushHandler = pushHandler

	if conf.CloudSync.Enabled {
		reconciler := services.NewCloudCAReconciler(services.CloudCAReconcilerBuilder{
			Logger:             lJobs,
			CertificateManager: certManager,
			CloudClient:        cloudClient,
			EventPublisher:     eventPub,
		})

		syncJob := jobs.NewJobScheduler(lJobs, conf.CloudSync.Frequency, jobs.NewCASyncMonitorJob(reconciler, lJobs))
		syncJob.Start()
		svc.syncJob = syncJob
	}

	return svc, nil
}

// ApplyConfiguration forwards a fresh configuration snapshot to the
// configuration service.
func (svc *DeviceAuthService) ApplyConfiguration(ctx context.Context, snapshot models.ConfigurationSnapshot) error {
	return svc.Configuration.ApplyConfiguration(ctx, snapshot)
}

// Shutdown stops background work and releases the runtime store. New work is
// refused after this returns; in-flight signings are not preempted.
func (svc *DeviceAuthService) Shutdown() error {
	if svc.syncJob != nil {
		svc.syncJob.Stop()
	}

	if svc.pushHandler != nil {
		svc.pushHandler.Stop()
	}

	return svc.runtimeRepo.Close()
}
