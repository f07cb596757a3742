package models

// Device attribute namespaces resolved from client credentials.
const (
	AttributeNamespaceThing       = "Thing"
	AttributeNamespaceCertificate = "Certificate"
	AttributeNamespaceMQTT        = "mqtt"
)

// DeviceAttribute is a single resolved attribute of an authenticated device.
type DeviceAttribute struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	Value     string `json:"value"`
}

// Session is a resolved, authenticated identity for a connected device. It is
// owned exclusively by the subsystem that created it; the registry never
// copies or shares session state across entries.
type Session struct {
	ID         string                     `json:"id"`
	Attributes map[string]DeviceAttribute `json:"attributes"`
}

// Attribute returns the session attribute with the given name, or nil if the
// device credentials did not resolve one.
func (s *Session) Attribute(name string) *DeviceAttribute {
	if s == nil {
		return nil
	}

	attr, ok := s.Attributes[name]
	if !ok {
		return nil
	}

	return &attr
}
