// Package token implements the non-validating JWT parser, issuer
// resolver, signature verifier, claim validator and the three
// per-token-type validation pipelines (spec §4.8–§4.13).
package token

import (
	"fmt"

	"github.com/cuioss/cui-jwt-sub016/pkg/counter"
)

// EventType is the closed enum of validation outcomes (spec §4.1, §7).
type EventType string

const (
	// Token structure
	EventTokenStructureMalformed EventType = "TOKEN_STRUCTURE_MALFORMED"
	EventTokenStructureTooLarge  EventType = "TOKEN_STRUCTURE_TOO_LARGE"
	EventTokenStructureInvalidJSON EventType = "TOKEN_STRUCTURE_INVALID_JSON"
	EventTokenStructureSuccess   EventType = "TOKEN_STRUCTURE_SUCCESS"

	// Signature
	EventSignatureMissingKey         EventType = "SIGNATURE_MISSING_KEY"
	EventSignatureAlgorithmRejected  EventType = "SIGNATURE_ALGORITHM_REJECTED"
	EventSignatureAlgorithmMismatch  EventType = "SIGNATURE_ALGORITHM_MISMATCH"
	EventSignatureKidMismatch        EventType = "SIGNATURE_KID_MISMATCH"
	EventSignatureInvalid            EventType = "SIGNATURE_INVALID"
	EventSignatureValid              EventType = "SIGNATURE_VALID"

	// Claim validation
	EventClaimMissingClaim       EventType = "CLAIM_VALIDATION_MISSING_CLAIM"
	EventClaimExpired            EventType = "CLAIM_VALIDATION_EXPIRED"
	EventClaimNotYetValid        EventType = "CLAIM_VALIDATION_NOT_YET_VALID"
	EventClaimIssuedAtFuture     EventType = "CLAIM_VALIDATION_ISSUED_AT_FUTURE_WARNING"
	EventClaimAudienceMismatch   EventType = "CLAIM_VALIDATION_AUDIENCE_MISMATCH"
	EventClaimAzpMismatch        EventType = "CLAIM_VALIDATION_AZP_MISMATCH"
	EventClaimIssuerNotConfigured EventType = "CLAIM_VALIDATION_ISSUER_NOT_CONFIGURED"
	EventClaimSuccess            EventType = "CLAIM_VALIDATION_SUCCESS"

	// JWKS
	EventJWKSLoadFailed  EventType = "JWKS_LOAD_FAILED"
	EventJWKSParseFailed EventType = "JWKS_PARSE_FAILED"
	EventJWKSLoadSuccess EventType = "JWKS_LOAD_SUCCESS"

	// Cache
	EventCacheHit   EventType = "CACHE_HIT"
	EventCacheMiss  EventType = "CACHE_MISS"
	EventCacheEvict EventType = "CACHE_EVICT"

	// Configuration
	EventConfigurationInvalid EventType = "CONFIGURATION_INVALID"
)

// Category maps an EventType to its C1 counter category (spec §7: "each
// thrown error also increments a matching C1 event-type").
func (e EventType) Category() counter.Category {
	switch e {
	case EventTokenStructureMalformed, EventTokenStructureTooLarge, EventTokenStructureInvalidJSON, EventTokenStructureSuccess:
		return counter.TokenStructure
	case EventSignatureMissingKey, EventSignatureAlgorithmRejected, EventSignatureAlgorithmMismatch, EventSignatureKidMismatch, EventSignatureInvalid, EventSignatureValid:
		return counter.Signature
	case EventClaimMissingClaim, EventClaimExpired, EventClaimNotYetValid, EventClaimIssuedAtFuture, EventClaimAudienceMismatch, EventClaimAzpMismatch, EventClaimIssuerNotConfigured, EventClaimSuccess:
		return counter.ClaimValidation
	case EventJWKSLoadFailed, EventJWKSParseFailed, EventJWKSLoadSuccess:
		return counter.JWKS
	case EventCacheHit, EventCacheMiss, EventCacheEvict:
		return counter.Cache
	case EventConfigurationInvalid:
		return counter.Configuration
	default:
		return counter.Configuration
	}
}

// ValidationError is the typed exception surfaced to integrators (spec
// §7). It carries a machine-readable EventType plus a human message and
// wraps the underlying cause, if any.
type ValidationError struct {
	EventType EventType
	Message   string
	Cause     error
}

func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.EventType, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.EventType, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// Category is a convenience forwarding to EventType.Category().
func (e *ValidationError) Category() counter.Category { return e.EventType.Category() }

// NewValidationError builds a ValidationError.
func NewValidationError(eventType EventType, message string, cause error) *ValidationError {
	return &ValidationError{EventType: eventType, Message: message, Cause: cause}
}

// recordAndWrap increments c for err's event type (if err is a
// *ValidationError) before returning it unchanged, implementing spec
// §7's "each thrown error also increments a matching C1 event-type
// before being re-thrown".
func recordAndWrap(c *counter.Counter, err error) error {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	if asValidationError(err, &ve) {
		c.Increment(ve.Category(), string(ve.EventType))
	}
	return err
}

func asValidationError(err error, target **ValidationError) bool {
	ve, ok := err.(*ValidationError)
	if ok {
		*target = ve
		return true
	}
	return false
}
