// Package idn converts subdomain labels between their display (Unicode) form
// and their wire (Punycode, "xn--" prefixed) form, and decides whether a label
// is admissible under the registry naming policy: no ASCII letters or digits.
package idn

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
)

// ACEPrefix is the ASCII Compatible Encoding marker carried by wire labels.
const ACEPrefix = "xn--"

// DefaultRoot is the parent zone labels are sold under.
const DefaultRoot = "𓋹.ws"

// The lookup and registration profiles apply IDNA2008 tables, which disallow
// emoji. Only the bare Punycode transform plus DNS length checks is used.
var punycode = idna.New(idna.VerifyDNSLength(true))

// Rejection reasons reported by Validate.
const (
	ReasonEmpty       = "empty"
	ReasonASCII       = "contains ASCII letters or digits"
	ReasonInvalidUTF8 = "not valid UTF-8"
	ReasonMultiLabel  = "contains a dot"
	ReasonControl     = "contains control characters"
)

var (
	// ErrRejected matches every *RejectionError.
	ErrRejected = errors.New("idn: label rejected")

	errEmptyLabel  = errors.New("empty label")
	errInvalidUTF8 = errors.New("label is not valid UTF-8")
	errMultiLabel  = errors.New("label contains a dot")
	errNotLDH      = errors.New("encoded label contains characters outside letters, digits and hyphen")
	errLabelLength = errors.New("encoded label exceeds 63 octets")
)

// RejectionError reports a label that failed the admissibility policy.
type RejectionError struct {
	Label  string
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("idn: label %q rejected: %s", e.Label, e.Reason)
}

func (e *RejectionError) Is(target error) bool {
	return target == ErrRejected
}

// EncodingError reports a display label that has no valid wire form.
type EncodingError struct {
	Label string
	Err   error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("idn: cannot encode %q: %v", e.Label, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// DecodingError reports a wire label with a malformed Punycode payload.
type DecodingError struct {
	Label string
	Err   error
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("idn: cannot decode %q: %v", e.Label, e.Err)
}

func (e *DecodingError) Unwrap() error { return e.Err }

// Encode returns the wire form of a single display label. Pure-ASCII labels
// are returned unchanged; anything else gets the "xn--" prefix.
func Encode(display string) (string, error) {
	if display == "" {
		return "", &EncodingError{Label: display, Err: errEmptyLabel}
	}
	// The Punycode transform silently replaces invalid bytes with U+FFFD.
	if !utf8.ValidString(display) {
		return "", &EncodingError{Label: display, Err: errInvalidUTF8}
	}
	if strings.Contains(display, ".") {
		return "", &EncodingError{Label: display, Err: errMultiLabel}
	}

	wire, err := punycode.ToASCII(display)
	if err != nil {
		return "", &EncodingError{Label: display, Err: err}
	}
	if len(wire) > 63 {
		return "", &EncodingError{Label: display, Err: errLabelLength}
	}
	if !isLDH(wire) {
		return "", &EncodingError{Label: display, Err: errNotLDH}
	}
	return wire, nil
}

// Decode returns the display form of a wire label or domain. Input without
// the marker is returned as-is. The marker is matched case-insensitively.
func Decode(wire string) (string, error) {
	if !HasACEPrefix(wire) {
		return wire, nil
	}

	display, err := punycode.ToUnicode(strings.ToLower(wire))
	if err != nil {
		return "", &DecodingError{Label: wire, Err: err}
	}
	return display, nil
}

// HasACEPrefix reports whether any dot-separated label of s carries the
// wire-form marker.
func HasACEPrefix(s string) bool {
	for _, label := range strings.Split(s, ".") {
		if len(label) >= len(ACEPrefix) && strings.EqualFold(label[:len(ACEPrefix)], ACEPrefix) {
			return true
		}
	}
	return false
}

// IsAdmissible reports whether input, in display or wire form, may be
// registered.
func IsAdmissible(input string) bool {
	_, err := Validate(input)
	return err == nil
}

// Validate applies the admissibility policy and returns the display form.
// Wire-form input is decoded first; a malformed payload yields a
// *DecodingError, a policy failure a *RejectionError.
func Validate(input string) (string, error) {
	display, err := Decode(input)
	if err != nil {
		return "", err
	}
	if display == "" {
		return "", &RejectionError{Label: input, Reason: ReasonEmpty}
	}
	if !utf8.ValidString(display) {
		return "", &RejectionError{Label: input, Reason: ReasonInvalidUTF8}
	}
	if strings.Contains(display, ".") {
		return "", &RejectionError{Label: input, Reason: ReasonMultiLabel}
	}
	if containsControl(display) {
		return "", &RejectionError{Label: input, Reason: ReasonControl}
	}
	if containsASCIIAlnum(display) {
		return "", &RejectionError{Label: input, Reason: ReasonASCII}
	}
	return display, nil
}

func containsControl(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] == 0x7f {
			return true
		}
	}
	return false
}

func containsASCIIAlnum(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			return true
		}
	}
	return false
}

func isLDH(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
		default:
			return false
		}
	}
	return true
}
