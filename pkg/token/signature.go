package token

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cuioss/cui-jwt-sub016/pkg/jwks"
)

// VerifySignature verifies signingInput/signatureBytes against key
// using alg, enforcing the allowlist, kid match and family match rules
// of spec §4.10. alg=none is rejected unconditionally.
func VerifySignature(signingInput string, signatureBytes []byte, alg string, headerKid string, allowedAlgorithms map[string]struct{}, key jwks.KeyInfo) error {
	if alg == "" || alg == "none" {
		return NewValidationError(EventSignatureAlgorithmRejected, "alg=none is rejected", nil)
	}
	if !jwks.IsSafe(alg) {
		return NewValidationError(EventSignatureAlgorithmRejected, fmt.Sprintf("alg %q is not on the safelist", alg), nil)
	}
	if _, ok := allowedAlgorithms[alg]; !ok {
		return NewValidationError(EventSignatureAlgorithmRejected, fmt.Sprintf("alg %q is not on the issuer's allowlist", alg), nil)
	}
	if headerKid != "" && key.Kid != "" && headerKid != key.Kid {
		return NewValidationError(EventSignatureKidMismatch, "header kid does not match resolved key kid", nil)
	}
	// Open Question (b): a kid match with a wrong-family alg is reported
	// as algorithm-mismatch, not missing-key.
	if key.Algorithm.Family() != jwks.Algorithm(alg).Family() {
		return NewValidationError(EventSignatureAlgorithmMismatch,
			fmt.Sprintf("alg %q family does not match key's family (key alg %q)", alg, key.Algorithm), nil)
	}

	method := jwt.GetSigningMethod(alg)
	if method == nil {
		return NewValidationError(EventSignatureAlgorithmRejected, fmt.Sprintf("unsupported signing method %q", alg), nil)
	}
	if err := method.Verify(signingInput, signatureBytes, key.PublicKey); err != nil {
		return NewValidationError(EventSignatureInvalid, "signature verification failed", err)
	}
	return nil
}
