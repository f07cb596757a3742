package models

type EventType string

const (
	EventCAConfigurationChanged       EventType = "ca.configuration.changed"
	EventSecurityConfigurationChanged EventType = "security.configuration.changed"
	EventMetricsConfigurationChanged  EventType = "metrics.configuration.changed"
	EventCACertificatesUpdated        EventType = "ca.certificates.updated"
)

type CAConfigurationChangedPayload struct {
	Configuration CAConfiguration `json:"configuration"`
}

type SecurityConfigurationChangedPayload struct {
	Security SecuritySettings `json:"security"`
}

type MetricsConfigurationChangedPayload struct {
	Metrics MetricsSettings `json:"metrics"`
}

// CACertificatesUpdatedPayload carries the full active CA set. The cloud push
// handler consumes it to bring the cloud collaborator up to date.
type CACertificatesUpdatedPayload struct {
	CertificatesPEM []string `json:"certificates_pem"`
}
