package llm

import "errors"

// ErrNoCredential is returned when the credential provider resolves no
// credential for a provider. Callers treat it as terminal for the call;
// it is never retried.
var ErrNoCredential = errors.New("no credential resolved")
