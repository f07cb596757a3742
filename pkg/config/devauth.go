package config

// DeviceAuthConfig is the process configuration of the device auth service.
// The per-device configuration snapshot (groups, CA settings) arrives through
// the host runtime's change notifications, not through this file.
type DeviceAuthConfig struct {
	Logs              Logging     `mapstructure:"logs"`
	Storage           Storage     `mapstructure:"storage"`
	CloudSync         CloudSync   `mapstructure:"cloud_sync"`
	EventBus          EventBusLog `mapstructure:"event_bus"`
	CloudCallTimeout  int         `mapstructure:"cloud_call_timeout_seconds"`
	CredentialTimeout int         `mapstructure:"credential_timeout_seconds"`
}

type Storage struct {
	// Directory holding the badger runtime store. Empty means in-memory,
	// which is only useful in tests.
	Directory string   `mapstructure:"directory"`
	LogLevel  LogLevel `mapstructure:"log_level"`
}

type CloudSync struct {
	Enabled   bool     `mapstructure:"enabled"`
	Frequency string   `mapstructure:"frequency"`
	LogLevel  LogLevel `mapstructure:"log_level"`
}

type EventBusLog struct {
	LogLevel LogLevel `mapstructure:"log_level"`
}

func DefaultDeviceAuthConfig() *DeviceAuthConfig {
	return &DeviceAuthConfig{
		Logs: Logging{
			Level: Info,
		},
		Storage: Storage{
			Directory: "/var/lib/trustedge",
			LogLevel:  Info,
		},
		CloudSync: CloudSync{
			Enabled:   true,
			Frequency: "@every 5m",
			LogLevel:  Info,
		},
		EventBus: EventBusLog{
			LogLevel: Info,
		},
		CloudCallTimeout:  15,
		CredentialTimeout: 10,
	}
}
