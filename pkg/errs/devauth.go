package errs

import "errors"

var (
	ErrKeyStore              error = errors.New("key store could not be opened")
	ErrCertificateGeneration error = errors.New("certificate generation failed")
	ErrCANotConfigured       error = errors.New("no CA has been configured yet")
	ErrCAConfiguration       error = errors.New("invalid CA configuration")

	ErrAuthentication     error = errors.New("could not authenticate client device")
	ErrUnknownCredential  error = errors.New("unknown credential type")
	ErrValidateBadRequest error = errors.New("struct validation error")

	ErrGroupConfiguration  error = errors.New("invalid device group configuration")
	ErrGroupSelectorSyntax error = errors.New("could not parse device group selector")
	ErrUnknownPolicy       error = errors.New("group references an unknown policy")

	ErrCloudNotFound  error = errors.New("cloud resource not found")
	ErrCloudThrottled error = errors.New("cloud request throttled")
)
