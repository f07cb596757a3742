package main

import (
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/trustedge/trustedge/pkg/assemblers"
	"github.com/trustedge/trustedge/pkg/clients"
	"github.com/trustedge/trustedge/pkg/config"
	"github.com/trustedge/trustedge/pkg/helpers"
	"gopkg.in/yaml.v2"
)

var (
	version   string = "v0"    // api version
	sha1ver   string = "-"     // sha1 revision used to build the program
	buildTime string = "devTS" // when the executable was built
)

func main() {
	log.SetFormatter(helpers.LogFormatter)
	log.Infof("starting device auth service: version=%s buildTime=%s sha1ver=%s", version, buildTime, sha1ver)

	conf, err := config.LoadConfig[config.DeviceAuthConfig](config.DefaultDeviceAuthConfig())
	if err != nil {
		log.Fatalf("something went wrong while loading config. Exiting: %s", err)
	}

	globalLogLevel, err := log.ParseLevel(string(conf.Logs.Level))
	if err != nil {
		log.Warn("unknown log level. defaulting to 'info' log level")
		globalLogLevel = log.InfoLevel
	}
	log.SetLevel(globalLogLevel)

	log.Infof("global log level set to '%s'", globalLogLevel)

	confBytes, err := yaml.Marshal(conf)
	if err != nil {
		log.Fatalf("could not dump yaml config: %s", err)
	}

	log.Debugf("===================================================")
	log.Debugf("%s", confBytes)
	log.Debugf("===================================================")

	lCloud := helpers.SetupLogger(conf.CloudSync.LogLevel, "device-auth", "Cloud Client")
	cloudClient := clients.NewNoopCloudCAClient(lCloud)

	svc, err := assemblers.AssembleDeviceAuthService(*conf, cloudClient)
	if err != nil {
		log.Fatalf("could not assemble device auth service. Exiting: %s", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("shutdown signal received, stopping")
	if err := svc.Shutdown(); err != nil {
		log.Errorf("shutdown did not complete cleanly: %s", err)
	}
}
