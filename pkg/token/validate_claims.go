package token

import (
	"fmt"
	"time"

	"github.com/cuioss/cui-jwt-sub016/pkg/claims"
	"github.com/cuioss/cui-jwt-sub016/pkg/counter"
)

// DefaultLeeway is spec §6's parser.leeway-seconds default.
const DefaultLeeway = 30 * time.Second

// ClaimValidationOptions configures the temporal checks (spec §6).
type ClaimValidationOptions struct {
	Leeway             time.Duration
	ValidateExpiration bool
	ValidateNotBefore  bool
	ValidateIssuedAt   bool
}

// DefaultClaimValidationOptions returns the spec-documented defaults.
func DefaultClaimValidationOptions() ClaimValidationOptions {
	return ClaimValidationOptions{
		Leeway:             DefaultLeeway,
		ValidateExpiration: true,
		ValidateNotBefore:  true,
		ValidateIssuedAt:   true,
	}
}

// TokenKind distinguishes the mandatory/optional claim set per
// pipeline (spec §4.11).
type TokenKind int

const (
	AccessToken TokenKind = iota
	IDToken
)

// ValidateClaims enforces, in order: mandatory claim presence, temporal
// window, and (for ID tokens) audience/azp (spec §4.11). now is injected
// so callers can test boundary behavior deterministically. c, if given,
// records the warn-only events (spec §4.11 point 2) that don't fail
// validation; it is optional so existing callers are unaffected.
func ValidateClaims(payload map[string]any, issuer IssuerConfig, kind TokenKind, opts ClaimValidationOptions, now time.Time, c ...*counter.Counter) error {
	if err := checkMandatoryClaims(payload, issuer, kind); err != nil {
		return err
	}
	if err := checkTemporal(payload, opts, now, c...); err != nil {
		return err
	}
	if kind == IDToken {
		if err := checkAudienceAndAzp(payload, issuer); err != nil {
			return err
		}
	}
	return nil
}

func checkMandatoryClaims(payload map[string]any, issuer IssuerConfig, kind TokenKind) error {
	required := []string{"iss", "exp", "iat"}
	if !issuer.ClaimSubOptional {
		required = append(required, "sub")
	}
	if kind == IDToken {
		required = append(required, "aud")
	}
	for _, name := range required {
		if _, ok := payload[name]; !ok {
			return NewValidationError(EventClaimMissingClaim, fmt.Sprintf("missing mandatory claim %q", name), nil)
		}
	}
	return nil
}

func checkTemporal(payload map[string]any, opts ClaimValidationOptions, now time.Time, c ...*counter.Counter) error {
	if opts.ValidateExpiration {
		expVal, err := claims.DateTime.Map(payload, "exp")
		if err != nil {
			return NewValidationError(EventClaimMissingClaim, "invalid exp claim", err)
		}
		if expVal.Present() && now.After(expVal.AsTime().Add(opts.Leeway)) {
			return NewValidationError(EventClaimExpired,
				fmt.Sprintf("token expired at %s (leeway %s)", expVal.AsTime(), opts.Leeway), nil)
		}
	}
	if opts.ValidateNotBefore {
		nbfVal, err := claims.DateTime.Map(payload, "nbf")
		if err != nil {
			return NewValidationError(EventClaimMissingClaim, "invalid nbf claim", err)
		}
		if nbfVal.Present() && nbfVal.AsTime().After(now.Add(opts.Leeway)) {
			return NewValidationError(EventClaimNotYetValid,
				fmt.Sprintf("token not valid before %s (leeway %s)", nbfVal.AsTime(), opts.Leeway), nil)
		}
	}
	if opts.ValidateIssuedAt {
		iatVal, err := claims.DateTime.Map(payload, "iat")
		if err != nil {
			return NewValidationError(EventClaimMissingClaim, "invalid iat claim", err)
		}
		// warn-only: iat in the future beyond leeway is not a hard
		// failure per spec §4.11 point 2.
		if iatVal.Present() && iatVal.AsTime().After(now.Add(opts.Leeway)) && len(c) > 0 && c[0] != nil {
			c[0].Increment(counter.ClaimValidation, string(EventClaimIssuedAtFuture))
		}
	}
	return nil
}

func checkAudienceAndAzp(payload map[string]any, issuer IssuerConfig) error {
	var members []string
	audVal, err := claims.StringList.Map(payload, "aud")
	if err == nil {
		members = audVal.AsStringList()
	} else {
		// aud may also be encoded as a single string, not an array.
		single, singleErr := claims.Identity.Map(payload, "aud")
		if singleErr != nil {
			return NewValidationError(EventClaimAudienceMismatch, "invalid aud claim", err)
		}
		if single.Present() {
			members = []string{single.AsString()}
		}
	}

	if len(issuer.ExpectedAudiences) > 0 {
		matched := false
		for _, m := range members {
			if _, ok := issuer.ExpectedAudiences[m]; ok {
				matched = true
				break
			}
		}
		if !matched {
			return NewValidationError(EventClaimAudienceMismatch,
				fmt.Sprintf("aud %v does not contain expected audience", members), nil)
		}
	}

	if len(members) > 1 {
		azpVal, _ := claims.Identity.Map(payload, "azp")
		if issuer.ExpectedClientID == "" || !azpVal.Present() || azpVal.AsString() != issuer.ExpectedClientID {
			return NewValidationError(EventClaimAzpMismatch,
				"aud has multiple entries but azp does not match the expected client id", nil)
		}
	}

	return nil
}
