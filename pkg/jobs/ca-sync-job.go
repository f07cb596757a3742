package jobs

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/trustedge/trustedge/pkg/helpers"
	"github.com/trustedge/trustedge/pkg/services"
)

// CASyncMonitor periodically reconciles the cloud's shadow CA set against the
// locally active one.
type CASyncMonitor struct {
	logger     *logrus.Entry
	reconciler *services.CloudCAReconciler
}

func NewCASyncMonitorJob(reconciler *services.CloudCAReconciler, logger *logrus.Entry) *CASyncMonitor {
	return &CASyncMonitor{
		logger:     logger,
		reconciler: reconciler,
	}
}

func (svc *CASyncMonitor) Run() {
	ctx := helpers.InitContext()
	lFunc := helpers.ConfigureLogger(ctx, svc.logger)

	now := time.Now()
	lFunc.Info("starting periodic cloud CA reconciliation")

	if err := svc.reconciler.Reconcile(ctx); err != nil {
		lFunc.Warnf("cloud CA reconciliation did not complete: %s", err)
	}

	lFunc.Infof("ending reconciliation. Took %v", time.Since(now))
}
