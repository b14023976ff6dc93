package idn

import (
	"fmt"
	"strings"
)

// Zone is the parent domain labels are registered under, e.g. "𓋹.ws".
// Its wire form is derived with Encode when the zone is built.
type Zone struct {
	parent     string
	parentWire string
	suffix     string
}

// Domain is a fully qualified registered name in both renderings.
type Domain struct {
	Label     string `json:"label"`      // display label, e.g. "🚀"
	WireLabel string `json:"wire_label"` // e.g. "xn--158h"
	Display   string `json:"display"`    // e.g. "🚀.𓋹.ws"
	Wire      string `json:"wire"`       // e.g. "xn--158h.xn--wb8d.ws"
}

func (d Domain) String() string { return d.Display }

// NewZone parses a root domain given in display or wire form. The first
// label is the parent label; the rest is the suffix.
func NewZone(root string) (Zone, error) {
	root = strings.TrimSuffix(strings.TrimSpace(root), ".")
	display, err := Decode(root)
	if err != nil {
		return Zone{}, fmt.Errorf("decode root domain: %w", err)
	}

	parent, suffix, ok := strings.Cut(display, ".")
	if !ok || parent == "" || suffix == "" {
		return Zone{}, fmt.Errorf("root domain %q must have a parent label and a suffix", root)
	}

	parentWire, err := Encode(parent)
	if err != nil {
		return Zone{}, err
	}
	suffixWire, err := punycode.ToASCII(strings.ToLower(suffix))
	if err != nil {
		return Zone{}, &EncodingError{Label: suffix, Err: err}
	}

	return Zone{
		parent:     parent,
		parentWire: strings.ToLower(parentWire),
		suffix:     suffixWire,
	}, nil
}

// MustZone is NewZone for package-level defaults.
func MustZone(root string) Zone {
	z, err := NewZone(root)
	if err != nil {
		panic(err)
	}
	return z
}

// Display returns the Unicode rendering of the zone.
func (z Zone) Display() string {
	suffix, err := punycode.ToUnicode(z.suffix)
	if err != nil {
		suffix = z.suffix
	}
	return z.parent + "." + suffix
}

// Wire returns the ASCII rendering of the zone.
func (z Zone) Wire() string {
	return z.parentWire + "." + z.suffix
}

// Parent returns the display form of the parent label.
func (z Zone) Parent() string { return z.parent }

// FullyQualify builds the wire and display domain names for a label. The
// label may be given in either form.
func (z Zone) FullyQualify(label string) (Domain, error) {
	display, err := Decode(label)
	if err != nil {
		return Domain{}, err
	}
	wireLabel, err := Encode(display)
	if err != nil {
		return Domain{}, err
	}

	return Domain{
		Label:     display,
		WireLabel: wireLabel,
		Display:   display + "." + z.Display(),
		Wire:      wireLabel + "." + z.Wire(),
	}, nil
}
