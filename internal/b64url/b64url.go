// Package b64url implements the URL-safe, unpadded base64 alphabet (RFC 4648
// section 5) used for PKCE parameters and sealed state tokens.
package b64url

import "encoding/base64"

// Encode returns the base64url encoding of b with no padding. Encoding never
// fails; the empty slice encodes to the empty string.
func Encode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// Decode reverses Encode. Characters outside the base64url alphabet, or stray
// padding, are an error; callers treat that as an integrity failure rather
// than letting it abort the flow.
func Decode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}
