// Package memo decodes the hex-encoded memo fields that XRPL transactions
// carry. Memo values arrive either as a bare hex string or prefixed with the
// two-character `\x` marker some upstream tooling adds.
package memo

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const hexPrefix = `\x`

var (
	ErrDecodeInvalidHex  = errors.New("memo value is not valid hex")
	ErrDecodeInvalidUTF8 = errors.New("decoded memo value is not valid UTF-8")
)

// Decode converts a hex-or-prefixed-hex memo value into UTF-8 text. A nil
// value decodes to the empty string.
func Decode(value *string) (string, error) {
	if value == nil {
		return "", nil
	}

	encoded := *value
	encoded = strings.TrimPrefix(encoded, hexPrefix)

	decoded, err := hex.DecodeString(encoded)
	if err != nil {
		return "", errors.Join(ErrDecodeInvalidHex, fmt.Errorf("value: %q", *value))
	}

	if !utf8.Valid(decoded) {
		return "", errors.Join(ErrDecodeInvalidUTF8, fmt.Errorf("value: %q", *value))
	}

	return string(decoded), nil
}

// Encode is the inverse of Decode for the marker-less form.
func Encode(text string) string {
	return hex.EncodeToString([]byte(text))
}
