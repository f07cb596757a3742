package models

// Configuration snapshot slices delivered by the host runtime's configuration
// tree. The aggregate is recomputed wholesale on every change notification
// and diffed field by field against the previously applied instance.

type SecuritySettings struct {
	ClientDeviceTrustDurationMinutes int `json:"clientDeviceTrustDurationMinutes" mapstructure:"clientDeviceTrustDurationMinutes"`
}

type PerformanceSettings struct {
	CloudRequestQueueSize      int `json:"cloudRequestQueueSize" mapstructure:"cloudRequestQueueSize"`
	MaxConcurrentCloudRequests int `json:"maxConcurrentCloudRequests" mapstructure:"maxConcurrentCloudRequests"`
	MaxActiveAuthTokens        int `json:"maxActiveAuthTokens" mapstructure:"maxActiveAuthTokens"`
}

type MetricsSettings struct {
	DisableMetrics  bool `json:"disableMetrics" mapstructure:"disableMetrics"`
	AggregatePeriod int  `json:"aggregatePeriod" mapstructure:"aggregatePeriod"`
}

// ConfigurationSnapshot is the immutable view of the service configuration at
// a point in time.
type ConfigurationSnapshot struct {
	Security             SecuritySettings     `json:"security" mapstructure:"security"`
	Performance          PerformanceSettings  `json:"performance" mapstructure:"performance"`
	DeviceGroups         DeviceGroupsSettings `json:"deviceGroups" mapstructure:"deviceGroups"`
	CertificateAuthority CAConfiguration      `json:"certificateAuthority" mapstructure:"certificateAuthority"`
	Metrics              MetricsSettings      `json:"metrics" mapstructure:"metrics"`
}
