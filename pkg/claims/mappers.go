package claims

import (
	"fmt"
	"strings"
	"time"
)

// Mapper projects a raw JSON-decoded claim set into a typed Value for a
// given claim name. Mappers must be pure and deterministic (spec §4.7).
type Mapper interface {
	Map(payload map[string]any, claimName string) (Value, error)
}

// MapperFunc adapts a function to Mapper.
type MapperFunc func(payload map[string]any, claimName string) (Value, error)

func (f MapperFunc) Map(payload map[string]any, claimName string) (Value, error) {
	return f(payload, claimName)
}

// Identity copies a string claim as-is.
var Identity Mapper = MapperFunc(func(payload map[string]any, claimName string) (Value, error) {
	raw, ok := payload[claimName]
	if !ok {
		return EmptyString(), nil
	}
	s, ok := raw.(string)
	if !ok {
		return Value{}, fmt.Errorf("claim %q: expected string, got %T", claimName, raw)
	}
	return NewString(s), nil
})

// DateTime parses a Unix epoch-seconds claim (number, per RFC 7519) to a
// UTC instant.
var DateTime Mapper = MapperFunc(func(payload map[string]any, claimName string) (Value, error) {
	raw, ok := payload[claimName]
	if !ok {
		return EmptyDateTime(), nil
	}
	seconds, ok := asFloat(raw)
	if !ok {
		return Value{}, fmt.Errorf("claim %q: expected numeric epoch seconds, got %T", claimName, raw)
	}
	instant := time.Unix(int64(seconds), 0).UTC()
	return NewDateTime(fmt.Sprintf("%v", raw), instant), nil
})

// StringList projects a JSON array of strings.
var StringList Mapper = MapperFunc(func(payload map[string]any, claimName string) (Value, error) {
	raw, ok := payload[claimName]
	if !ok {
		return EmptyStringList(), nil
	}
	members, err := toStringSlice(raw)
	if err != nil {
		return Value{}, fmt.Errorf("claim %q: %w", claimName, err)
	}
	return NewStringList(fmt.Sprintf("%v", raw), members), nil
})

// Scope accepts a space-delimited string (RFC 6749 scope syntax) or a
// JSON array of strings, and emits a sorted set. Any other JSON type is
// rejected as INVALID_CONTENT (spec §4.7).
var Scope Mapper = MapperFunc(func(payload map[string]any, claimName string) (Value, error) {
	raw, ok := payload[claimName]
	if !ok {
		return EmptyStringList(), nil
	}

	switch v := raw.(type) {
	case string:
		members := strings.Fields(v)
		return NewStringList(v, dedupeSorted(members)), nil
	case []any:
		members, err := toStringSlice(v)
		if err != nil {
			return Value{}, fmt.Errorf("claim %q: %w", claimName, err)
		}
		return NewStringList(fmt.Sprintf("%v", raw), dedupeSorted(members)), nil
	default:
		return Value{}, fmt.Errorf("claim %q: expected string or array for scope, got %T", claimName, raw)
	}
})

// dedupeSorted sorts members and drops duplicates so Scope emits a true
// set, not a sorted list with repeats (spec §4.7: "emit a sorted set").
func dedupeSorted(members []string) []string {
	sorted := sortedCopy(members)
	out := sorted[:0]
	var prev string
	for i, m := range sorted {
		if i > 0 && m == prev {
			continue
		}
		out = append(out, m)
		prev = m
	}
	return out
}

// KeycloakDefaultRoles reads the Keycloak-specific realm_access.roles
// nested array and exposes it as a flat "roles" StringList.
var KeycloakDefaultRoles Mapper = MapperFunc(func(payload map[string]any, claimName string) (Value, error) {
	realmAccess, ok := payload["realm_access"].(map[string]any)
	if !ok {
		return EmptyStringList(), nil
	}
	rolesRaw, ok := realmAccess["roles"]
	if !ok {
		return EmptyStringList(), nil
	}
	members, err := toStringSlice(rolesRaw)
	if err != nil {
		return Value{}, fmt.Errorf("realm_access.roles: %w", err)
	}
	return NewStringList(fmt.Sprintf("%v", rolesRaw), members), nil
})

// KeycloakDefaultGroups copies the Keycloak-specific "groups" claim.
var KeycloakDefaultGroups Mapper = StringList

func toStringSlice(raw any) ([]string, error) {
	arr, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("expected array, got %T", raw)
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		s, ok := e.(string)
		if !ok {
			return nil, fmt.Errorf("expected array of strings, element was %T", e)
		}
		out = append(out, s)
	}
	return out, nil
}

func asFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
