package zklogin

import "errors"

// Failures in the login pipeline are terminal for the current attempt.
// Retrying requires fresh ephemeral material and a fresh nonce, so callers
// always restart the login from scratch.
var (
	ErrEpochFetchFailed   = errors.New("unable to fetch current epoch")
	ErrProverUnavailable  = errors.New("prover service unavailable")
	ErrNonceMismatch      = errors.New("id token nonce does not match session nonce")
	ErrSessionDataMissing = errors.New("session data missing")
	ErrSessionDataInvalid = errors.New("session data invalid")
)
