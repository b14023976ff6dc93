package idn

import "testing"

func TestNewZone(t *testing.T) {
	for _, root := range []string{"𓋹.ws", "xn--wb8d.ws", "XN--WB8D.ws", "𓋹.ws."} {
		t.Run(root, func(t *testing.T) {
			z, err := NewZone(root)
			if err != nil {
				t.Fatalf("NewZone(%q) error: %v", root, err)
			}
			if z.Wire() != "xn--wb8d.ws" {
				t.Errorf("Wire() = %q, want xn--wb8d.ws", z.Wire())
			}
			if z.Display() != "𓋹.ws" {
				t.Errorf("Display() = %q, want 𓋹.ws", z.Display())
			}
			if z.Parent() != "𓋹" {
				t.Errorf("Parent() = %q", z.Parent())
			}
		})
	}
}

func TestNewZoneErrors(t *testing.T) {
	for _, root := range []string{"", "ws", ".ws", "𓋹.", "xn--a!.ws"} {
		if _, err := NewZone(root); err == nil {
			t.Errorf("NewZone(%q) expected error", root)
		}
	}
}

func TestFullyQualify(t *testing.T) {
	z := MustZone(DefaultRoot)

	tests := []struct {
		label       string
		wantWire    string
		wantDisplay string
	}{
		{"🚀", "xn--158h.xn--wb8d.ws", "🚀.𓋹.ws"},
		{"xn--158h", "xn--158h.xn--wb8d.ws", "🚀.𓋹.ws"},
		{"☕🚀", "xn--53h8690o.xn--wb8d.ws", "☕🚀.𓋹.ws"},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			d, err := z.FullyQualify(tt.label)
			if err != nil {
				t.Fatalf("FullyQualify(%q) error: %v", tt.label, err)
			}
			if d.Wire != tt.wantWire {
				t.Errorf("Wire = %q, want %q", d.Wire, tt.wantWire)
			}
			if d.Display != tt.wantDisplay {
				t.Errorf("Display = %q, want %q", d.Display, tt.wantDisplay)
			}
			decoded, err := Decode(d.Wire)
			if err != nil {
				t.Fatalf("Decode(%q) error: %v", d.Wire, err)
			}
			if decoded != d.Display {
				t.Errorf("Decode(Wire) = %q, want %q", decoded, d.Display)
			}
			if d.String() != d.Display {
				t.Errorf("String() = %q", d.String())
			}
		})
	}
}

func TestFullyQualifyErrors(t *testing.T) {
	z := MustZone(DefaultRoot)
	for _, label := range []string{"", "🚀!", "xn--a!", "\xff", "🚀\xff"} {
		if _, err := z.FullyQualify(label); err == nil {
			t.Errorf("FullyQualify(%q) expected error", label)
		}
	}
}
