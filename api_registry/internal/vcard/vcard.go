// Package vcard renders a profile's business-card fields as a vCard 3.0
// contact file.
package vcard

import (
	"bytes"
	"fmt"
	"strings"

	govcard "github.com/emersion/go-vcard"

	"github.com/rax0nrax/punyfunny/api_registry/internal/records"
)

// ContentType is served with generated cards.
const ContentType = "text/vcard; charset=utf-8"

// Generate encodes bio as a vCard. FN falls back to the profile title; every
// other empty field is left out.
func Generate(bio *records.Bio) (string, error) {
	if bio == nil {
		return "", fmt.Errorf("vcard: no profile")
	}

	card := govcard.Card{}
	card.SetValue(govcard.FieldVersion, "3.0")

	fn := strings.TrimSpace(bio.Name)
	if fn == "" {
		fn = bio.Title
	}
	card.SetValue(govcard.FieldFormattedName, fn)
	card.SetName(&govcard.Name{GivenName: fn})

	setIf(card, govcard.FieldTitle, bio.JobTitle)
	setIf(card, govcard.FieldOrganization, bio.Company)
	setIf(card, govcard.FieldEmail, bio.Email)
	setIf(card, govcard.FieldTelephone, bio.Phone)
	if loc := strings.TrimSpace(bio.Location); loc != "" {
		card.AddAddress(&govcard.Address{StreetAddress: loc})
	}
	setIf(card, govcard.FieldURL, bio.Socials["website"])
	setIf(card, govcard.FieldNote, bio.Description)

	var buf bytes.Buffer
	if err := govcard.NewEncoder(&buf).Encode(card); err != nil {
		return "", fmt.Errorf("vcard: encode: %w", err)
	}
	return buf.String(), nil
}

func setIf(card govcard.Card, field, value string) {
	if value = strings.TrimSpace(value); value != "" {
		card.SetValue(field, value)
	}
}

// Filename is the download name: the contact's name, else "contact".
func Filename(bio *records.Bio) string {
	name := ""
	if bio != nil {
		name = strings.TrimSpace(bio.Name)
	}
	name = strings.Map(func(r rune) rune {
		switch r {
		case '"', '/', '\\', '\r', '\n', ';':
			return -1
		}
		return r
	}, name)
	if name == "" {
		name = "contact"
	}
	return name + ".vcf"
}
