// Package provision turns a paid purchase into a live subdomain: a default
// profile record plus a DNS record at the registrar.
package provision

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/rax0nrax/punyfunny/api_registry/internal/payments"
	"github.com/rax0nrax/punyfunny/api_registry/internal/records"
	"github.com/rax0nrax/punyfunny/api_registry/internal/registrar"
	"github.com/rax0nrax/punyfunny/pkg/idn"
	"github.com/rax0nrax/punyfunny/pkg/logging"
)

// ErrAlreadyOwned means the label was bought by someone else first.
var ErrAlreadyOwned = errors.New("subdomain already owned by another account")

// Outcome reports what Complete did.
type Outcome struct {
	Domain idn.Domain
	Record *records.Record
	DNS    *registrar.Result
	// Created is false when the purchase had already been provisioned.
	Created bool
}

type Config struct {
	Store     records.Store
	Registrar registrar.Provider
	Zone      idn.Zone
	// Target is the A record value every subdomain points at.
	Target string
	Logger logging.Logger
}

type Provisioner struct {
	store     records.Store
	registrar registrar.Provider
	zone      idn.Zone
	target    string
	logger    logging.Logger
}

func New(cfg Config) (*Provisioner, error) {
	if cfg.Store == nil {
		return nil, errors.New("provision: store is required")
	}
	if cfg.Registrar == nil {
		return nil, errors.New("provision: registrar is required")
	}
	if cfg.Zone.Parent() == "" {
		cfg.Zone = idn.MustZone(idn.DefaultRoot)
	}
	if cfg.Target == "" {
		cfg.Target = "127.0.0.1"
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
		cfg.Logger.SetOutput(io.Discard)
	}
	return &Provisioner{
		store:     cfg.Store,
		registrar: cfg.Registrar,
		zone:      cfg.Zone,
		target:    cfg.Target,
		logger:    cfg.Logger,
	}, nil
}

// Complete provisions a paid purchase. Webhooks are delivered at least once,
// so a repeat for the same owner succeeds without changing the record; the
// DNS upsert runs again so a failed earlier attempt heals on redelivery.
func (p *Provisioner) Complete(ctx context.Context, c payments.Completion) (*Outcome, error) {
	label, err := idn.Validate(c.Label)
	if err != nil {
		return nil, fmt.Errorf("provision %q: %w", c.Label, err)
	}
	domain, err := p.zone.FullyQualify(label)
	if err != nil {
		return nil, fmt.Errorf("provision %q: %w", c.Label, err)
	}

	owner := c.OwnerID
	if owner == "" {
		owner = records.DefaultOwner
	}

	rec, err := records.NewBio(label, owner, records.DefaultBio(label))
	if err != nil {
		return nil, err
	}

	created := true
	switch err := p.store.Create(ctx, rec); {
	case err == nil:
	case errors.Is(err, records.ErrExists):
		existing, getErr := p.store.Get(ctx, label)
		if getErr != nil {
			return nil, fmt.Errorf("load existing record: %w", getErr)
		}
		if existing.OwnerID != owner {
			p.log(domain, c).WithField("existing_owner", existing.OwnerID).Warn("Paid purchase for a label owned by someone else")
			return nil, ErrAlreadyOwned
		}
		rec = existing
		created = false
	default:
		return nil, fmt.Errorf("create record: %w", err)
	}

	dns, err := p.registrar.UpsertSubdomain(ctx, domain.WireLabel, p.target)
	if err != nil {
		return nil, fmt.Errorf("upsert dns for %s: %w", domain.Wire, err)
	}

	p.log(domain, c).WithFields(logging.Fields{
		"created":   created,
		"registrar": dns.Provider,
		"simulated": dns.Simulated,
	}).Info("Subdomain provisioned")

	return &Outcome{Domain: domain, Record: rec, DNS: dns, Created: created}, nil
}

func (p *Provisioner) log(d idn.Domain, c payments.Completion) *logrus.Entry {
	return p.logger.WithFields(logging.Fields{
		"domain":     d.Wire,
		"owner_id":   c.OwnerID,
		"provider":   c.Provider,
		"session_id": c.SessionID,
	})
}
