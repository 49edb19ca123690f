package creds

import (
	"strings"
)

// AlertFunc is called when an operation fails because the user's cloud
// credentials are expired or rejected. The UI shows a refresh prompt so the
// user can re-authenticate and retry the next operation; the in-flight
// operation still fails.
type AlertFunc func(reason string)

// credentialErrorNames are the service error codes that indicate an expired
// or invalid credential set rather than a genuine request failure.
var credentialErrorNames = []string{
	"ExpiredToken",
	"ExpiredTokenException",
	"InvalidSignatureException",
	"UnrecognizedClientException",
	"InvalidClientTokenId",
	"AccessDenied",
	"AccessDeniedException",
	"CredentialsError",
	"AuthFailure",
	"NOAUTH",
	"WRONGPASS",
}

// credentialStatusCodes are HTTP status codes treated as credential failures
// when they appear in an error message from a remote service.
var credentialStatusCodes = []string{
	"status code: 400",
	"status code: 401",
	"status code: 403",
	"StatusCode: 400",
	"StatusCode: 401",
	"StatusCode: 403",
}

// IsCredentialError reports whether err looks like a credential or
// authorization failure. Detection is by a fixed set of known error names and
// HTTP status codes, matching how every remote client in the app reports
// auth problems.
func IsCredentialError(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()
	for _, name := range credentialErrorNames {
		if strings.Contains(msg, name) {
			return true
		}
	}
	for _, code := range credentialStatusCodes {
		if strings.Contains(msg, code) {
			return true
		}
	}

	return false
}
