package corehttp

import "crypto/subtle"

// AuthConfig enables Basic and/or API-key authentication, spec §6. When
// both schemes are configured and a request presents both, API key takes
// precedence.
type AuthConfig struct {
	// Credentials maps Basic-auth usernames to passwords.
	Credentials map[string]string
	// APIKeys is the set of valid API key values.
	APIKeys map[string]struct{}
}

// AuthResult is the outcome of Authenticate.
type AuthResult struct {
	Authenticated bool
	Principal     string
}

// Authenticate validates a request's Authorization/X-API-Key headers
// against cfg using constant-time comparison, per spec §6.
func Authenticate(cfg *AuthConfig, apiKey string, basicUser, basicPass string, hasBasic bool) AuthResult {
	if cfg == nil {
		return AuthResult{Authenticated: true}
	}

	if apiKey != "" {
		for k := range cfg.APIKeys {
			if constantTimeEqual(k, apiKey) {
				return AuthResult{Authenticated: true, Principal: "apikey"}
			}
		}
		return AuthResult{}
	}

	if hasBasic {
		want, ok := cfg.Credentials[basicUser]
		if ok && constantTimeEqual(want, basicPass) {
			return AuthResult{Authenticated: true, Principal: basicUser}
		}
		return AuthResult{}
	}

	return AuthResult{}
}

func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		// subtle.ConstantTimeCompare requires equal lengths, so a length
		// mismatch is reported directly without a comparison; only the
		// content comparison below is constant-time.
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
