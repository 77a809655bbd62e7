package httpmsg

import (
	"bytes"

	"golang.org/x/net/http/httpguts"
)

// ValidateHeaderName rejects names containing whitespace, CR, LF, or other
// characters HTTP forbids in a token. This is stricter than response-side
// AddHeader/AddFooter, which reject only tab, CR and LF.
func ValidateHeaderName(name []byte) error {
	if len(name) == 0 || !httpguts.ValidHeaderFieldName(string(name)) {
		return ErrInvalidRequest
	}
	return nil
}

// ValidateHeaderValue rejects values containing a bare CR or LF.
func ValidateHeaderValue(value []byte) error {
	if bytes.IndexByte(value, '\r') != -1 || bytes.IndexByte(value, '\n') != -1 {
		return ErrInvalidRequest
	}
	if !httpguts.ValidHeaderFieldValue(string(value)) {
		return ErrInvalidRequest
	}
	return nil
}
