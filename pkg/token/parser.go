package token

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// DefaultMaxTokenSizeBytes matches spec §6's parser.max-token-size-bytes.
	DefaultMaxTokenSizeBytes = 8192
	// DefaultMaxJSONDepth and DefaultMaxStringLength implement spec
	// §4.8's depth/size-limited JSON parsing (max depth 10, max string
	// length 8192).
	DefaultMaxJSONDepth     = 10
	DefaultMaxStringLength  = 8192
)

// ParserOptions bounds the non-validating parser (spec §6 parser.* keys).
type ParserOptions struct {
	MaxTokenSizeBytes int
	MaxJSONDepth      int
	MaxStringLength   int
}

// DefaultParserOptions returns the spec-documented defaults.
func DefaultParserOptions() ParserOptions {
	return ParserOptions{
		MaxTokenSizeBytes: DefaultMaxTokenSizeBytes,
		MaxJSONDepth:      DefaultMaxJSONDepth,
		MaxStringLength:   DefaultMaxStringLength,
	}
}

// ParsedJWT is the non-validated decomposition of a compact JWT (spec
// §4.8). No cryptographic operation is performed to produce it.
type ParsedJWT struct {
	Header       map[string]any
	Payload      map[string]any
	SigningInput string
	Signature    []byte
	Raw          string
}

// Parse decomposes raw into header/payload/signature without verifying
// anything cryptographic. It enforces segment count, size and strict
// base64url decoding (spec §4.8).
func Parse(raw string, opts ParserOptions) (*ParsedJWT, error) {
	if opts.MaxTokenSizeBytes <= 0 {
		opts = DefaultParserOptions()
	}
	if len(raw) > opts.MaxTokenSizeBytes {
		return nil, NewValidationError(EventTokenStructureTooLarge,
			fmt.Sprintf("token size %d exceeds limit %d", len(raw), opts.MaxTokenSizeBytes), nil)
	}

	segments := strings.Split(raw, ".")
	if len(segments) != 3 {
		return nil, NewValidationError(EventTokenStructureMalformed,
			fmt.Sprintf("expected 3 segments, got %d", len(segments)), nil)
	}
	for i, s := range segments {
		if s == "" {
			return nil, NewValidationError(EventTokenStructureMalformed,
				fmt.Sprintf("segment %d is empty", i), nil)
		}
	}

	headerBytes, err := decodeSegment(segments[0])
	if err != nil {
		return nil, NewValidationError(EventTokenStructureMalformed, "invalid header encoding", err)
	}
	payloadBytes, err := decodeSegment(segments[1])
	if err != nil {
		return nil, NewValidationError(EventTokenStructureMalformed, "invalid payload encoding", err)
	}
	sigBytes, err := decodeSegment(segments[2])
	if err != nil {
		return nil, NewValidationError(EventTokenStructureMalformed, "invalid signature encoding", err)
	}

	header, err := decodeBoundedJSON(headerBytes, opts)
	if err != nil {
		return nil, NewValidationError(EventTokenStructureInvalidJSON, "invalid header JSON", err)
	}
	payload, err := decodeBoundedJSON(payloadBytes, opts)
	if err != nil {
		return nil, NewValidationError(EventTokenStructureInvalidJSON, "invalid payload JSON", err)
	}
	if _, ok := header["alg"]; !ok {
		return nil, NewValidationError(EventTokenStructureMalformed, "header missing alg", nil)
	}

	return &ParsedJWT{
		Header:       header,
		Payload:      payload,
		SigningInput: segments[0] + "." + segments[1],
		Signature:    sigBytes,
		Raw:          raw,
	}, nil
}

func decodeSegment(s string) ([]byte, error) {
	return base64.RawURLEncoding.Strict().DecodeString(s)
}

// decodeBoundedJSON decodes a JSON object while enforcing a maximum
// nesting depth and maximum string length, neither of which
// encoding/json bounds on its own.
func decodeBoundedJSON(body []byte, opts ParserOptions) (map[string]any, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON object")
	}
	if err := checkBounds(raw, 1, opts); err != nil {
		return nil, err
	}
	return obj, nil
}

func checkBounds(v any, depth int, opts ParserOptions) error {
	if depth > opts.MaxJSONDepth {
		return fmt.Errorf("JSON nesting depth exceeds limit %d", opts.MaxJSONDepth)
	}
	switch t := v.(type) {
	case string:
		if len(t) > opts.MaxStringLength {
			return fmt.Errorf("JSON string length exceeds limit %d", opts.MaxStringLength)
		}
	case map[string]any:
		for _, child := range t {
			if err := checkBounds(child, depth+1, opts); err != nil {
				return err
			}
		}
	case []any:
		for _, child := range t {
			if err := checkBounds(child, depth+1, opts); err != nil {
				return err
			}
		}
	}
	return nil
}
