// Package records holds what a registered subdomain serves: either a redirect
// or a link-in-bio profile. Records are keyed by display-form label.
package records

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Kind is the record discriminant.
type Kind string

const (
	KindRedirect Kind = "REDIRECT"
	KindBio      Kind = "BIO"
)

// Theme selects the profile page palette.
type Theme string

const (
	ThemeDark     Theme = "dark"
	ThemeLight    Theme = "light"
	ThemeColorful Theme = "colorful"
)

// DefaultOwner is used when a purchase carries no owner.
const DefaultOwner = "guest"

var (
	ErrNotFound = errors.New("record not found")
	ErrExists   = errors.New("record already exists")
)

type Link struct {
	Title string `json:"title" validate:"required,max=80"`
	URL   string `json:"url" validate:"required,http_url"`
	Icon  string `json:"icon,omitempty" validate:"max=32"`
}

// Bio is the profile shown on a BIO record's page. The business-card fields
// feed the downloadable contact card.
type Bio struct {
	Title       string            `json:"title" validate:"required,max=120"`
	Description string            `json:"description,omitempty" validate:"max=500"`
	AvatarURL   string            `json:"avatarUrl,omitempty" validate:"omitempty,http_url"`
	Theme       Theme             `json:"theme,omitempty" validate:"omitempty,oneof=dark light colorful"`
	Links       []Link            `json:"links,omitempty" validate:"max=50,dive"`
	Name        string            `json:"name,omitempty" validate:"max=120"`
	JobTitle    string            `json:"jobTitle,omitempty" validate:"max=120"`
	Company     string            `json:"company,omitempty" validate:"max=120"`
	Location    string            `json:"location,omitempty" validate:"max=200"`
	Phone       string            `json:"phone,omitempty" validate:"max=40"`
	Email       string            `json:"email,omitempty" validate:"omitempty,email"`
	Socials     map[string]string `json:"socials,omitempty" validate:"max=20,dive,keys,required,max=32,endkeys,http_url"`
}

// HasContact reports whether any business-card field is set.
func (b *Bio) HasContact() bool {
	return b.Name != "" || b.JobTitle != "" || b.Company != "" || b.Location != "" ||
		b.Phone != "" || b.Email != "" || b.Socials["website"] != ""
}

// Record is a tagged union: TargetURL is set for REDIRECT, Bio for BIO.
type Record struct {
	Subdomain string    `json:"subdomain"`
	Kind      Kind      `json:"type"`
	OwnerID   string    `json:"ownerId"`
	TargetURL string    `json:"targetUrl,omitempty"`
	Bio       *Bio      `json:"bioData,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// FieldError names one invalid field by its JSON path.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every problem found in a record.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid record: " + strings.Join(parts, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// NewRedirect builds and validates a REDIRECT record.
func NewRedirect(subdomain, ownerID, targetURL string) (*Record, error) {
	r := &Record{
		Subdomain: subdomain,
		Kind:      KindRedirect,
		OwnerID:   ownerID,
		TargetURL: strings.TrimSpace(targetURL),
	}
	r.Normalize()
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// NewBio builds and validates a BIO record.
func NewBio(subdomain, ownerID string, bio Bio) (*Record, error) {
	r := &Record{
		Subdomain: subdomain,
		Kind:      KindBio,
		OwnerID:   ownerID,
		Bio:       &bio,
	}
	r.Normalize()
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// DefaultBio is the profile a freshly purchased label starts with.
func DefaultBio(label string) Bio {
	return Bio{Title: label, Theme: ThemeDark}
}

// Normalize fills defaults: owner "guest" and the dark theme.
func (r *Record) Normalize() {
	if strings.TrimSpace(r.OwnerID) == "" {
		r.OwnerID = DefaultOwner
	}
	r.Kind = Kind(strings.ToUpper(string(r.Kind)))
	if r.Bio != nil && r.Bio.Theme == "" {
		r.Bio.Theme = ThemeDark
	}
}

// Validate checks the union shape, then the active variant's fields.
func (r *Record) Validate() error {
	var fields []FieldError
	add := func(field, msg string) { fields = append(fields, FieldError{Field: field, Message: msg}) }

	switch {
	case r.Subdomain == "":
		add("subdomain", "is required")
	case strings.ContainsAny(r.Subdomain, ". \t\r\n/"):
		add("subdomain", "must be a single label")
	case !utf8.ValidString(r.Subdomain):
		add("subdomain", "must be valid UTF-8")
	}
	if r.OwnerID == "" {
		add("ownerId", "is required")
	}

	switch r.Kind {
	case KindRedirect:
		if r.Bio != nil {
			add("bioData", "must be empty for REDIRECT records")
		}
		if err := validate.Var(r.TargetURL, "required,http_url"); err != nil {
			add("targetUrl", "must be an absolute http or https URL")
		}
	case KindBio:
		if r.TargetURL != "" {
			add("targetUrl", "must be empty for BIO records")
		}
		if r.Bio == nil {
			add("bioData", "is required for BIO records")
		} else if err := validate.Struct(r.Bio); err != nil {
			fields = append(fields, fieldErrors("bioData", err)...)
		}
	default:
		add("type", fmt.Sprintf("must be %s or %s", KindRedirect, KindBio))
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func fieldErrors(prefix string, err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: prefix, Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		// Namespace is "Bio.links[0].url"; swap the type name for the JSON root.
		ns := fe.Namespace()
		if _, rest, ok := strings.Cut(ns, "."); ok {
			ns = prefix + "." + rest
		}
		out = append(out, FieldError{Field: ns, Message: describe(fe)})
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "http_url":
		return "must be an absolute http or https URL"
	case "email":
		return "must be an email address"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "max":
		return "is too long (max " + fe.Param() + ")"
	default:
		return "failed " + fe.Tag()
	}
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	if r.Bio != nil {
		bio := *r.Bio
		bio.Links = append([]Link(nil), r.Bio.Links...)
		if r.Bio.Socials != nil {
			bio.Socials = make(map[string]string, len(r.Bio.Socials))
			for k, v := range r.Bio.Socials {
				bio.Socials[k] = v
			}
		}
		out.Bio = &bio
	}
	return &out
}
