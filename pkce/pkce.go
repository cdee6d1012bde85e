package pkce

import (
	"crypto/subtle"
	"regexp"

	"golang.org/x/oauth2"
)

const (
	// MethodS256 is the only supported code_challenge_method.
	MethodS256 = "S256"

	// MinVerifierLength is the minimum code_verifier length (RFC 7636 Section 4.1).
	MinVerifierLength = 43

	// MaxVerifierLength is the maximum code_verifier length (RFC 7636 Section 4.1).
	MaxVerifierLength = 128
)

// verifierPattern is the unreserved character set allowed in a code_verifier.
var verifierPattern = regexp.MustCompile(`^[A-Za-z0-9\-._~]+$`)

// Pair is a code_verifier with its derived S256 code_challenge.
type Pair struct {
	Verifier  string
	Challenge string
	Method    string
}

// Generate returns a fresh PKCE pair. The verifier is 32 bytes from
// crypto/rand encoded as unpadded base64url (43 characters).
// It panics if the system random source fails.
func Generate() Pair {
	verifier := oauth2.GenerateVerifier()
	return Pair{
		Verifier:  verifier,
		Challenge: Challenge(verifier),
		Method:    MethodS256,
	}
}

// Challenge derives the S256 code_challenge for a verifier:
// base64url(SHA-256(ASCII(verifier))) without padding.
func Challenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// ValidVerifier reports whether verifier has RFC 7636 length and charset.
func ValidVerifier(verifier string) bool {
	if len(verifier) < MinVerifierLength || len(verifier) > MaxVerifierLength {
		return false
	}
	return verifierPattern.MatchString(verifier)
}

// ValidMethod reports whether method is a supported code_challenge_method.
// Comparison is case-sensitive.
func ValidMethod(method string) bool {
	return method == MethodS256
}

// Verify reports whether verifier hashes to challenge. Malformed verifiers
// never match. The comparison is constant-time.
func Verify(challenge, verifier string) bool {
	if challenge == "" || !ValidVerifier(verifier) {
		return false
	}
	computed := Challenge(verifier)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
}
