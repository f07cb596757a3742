package trustedge

const (
	TrustedgeContextKeyAuthID    string = "trustedge.io/ctx/auth-id"
	TrustedgeContextKeyAuthType  string = "trustedge.io/ctx/auth-type"
	TrustedgeContextKeyRequestID string = "trustedge.io/ctx/request-id"
	TrustedgeContextKeySource    string = "trustedge.io/ctx/source"

	TrustedgeContextKeyEventType    string = "trustedge.io/ctx/cloudevent/type"
	TrustedgeContextKeyEventSubject string = "trustedge.io/ctx/cloudevent/subject"
)
