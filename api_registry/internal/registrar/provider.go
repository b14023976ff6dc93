// Package registrar points purchased subdomains at the serving host.
package registrar

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rax0nrax/punyfunny/pkg/logging"
)

// Provider upserts the A record for one label under the registry zone.
type Provider interface {
	// UpsertSubdomain creates or replaces the A record <wireLabel>.<zone>.
	// Existing records for other labels are left untouched.
	UpsertSubdomain(ctx context.Context, wireLabel, target string) (*Result, error)
	Name() string
}

// Result describes what the provider did.
type Result struct {
	Provider  string `json:"provider"`
	FQDN      string `json:"fqdn"`
	Target    string `json:"target"`
	RecordID  string `json:"recordId,omitempty"`
	Created   bool   `json:"created"`
	Simulated bool   `json:"simulated,omitempty"`
}

// APIError is a non-success answer from a registrar API.
type APIError struct {
	Provider string
	Status   int
	Code     string
	Message  string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s API error: %s (code: %s, status: %d)", e.Provider, e.Message, e.Code, e.Status)
	}
	return fmt.Sprintf("%s API error: %s (status: %d)", e.Provider, e.Message, e.Status)
}

var errEmptyLabel = errors.New("wire label is required")

func checkArgs(wireLabel, target string) error {
	if strings.TrimSpace(wireLabel) == "" {
		return errEmptyLabel
	}
	if strings.Contains(wireLabel, ".") {
		return fmt.Errorf("wire label %q must be a single label", wireLabel)
	}
	if strings.TrimSpace(target) == "" {
		return errors.New("target is required")
	}
	return nil
}

// Noop stands in when no registrar credentials are configured. It logs the
// change it would have made.
type Noop struct {
	zone   string
	logger logging.Logger
}

func NewNoop(zone string, logger logging.Logger) *Noop {
	return &Noop{zone: zone, logger: logger}
}

func (n *Noop) Name() string { return "noop" }

func (n *Noop) UpsertSubdomain(_ context.Context, wireLabel, target string) (*Result, error) {
	if err := checkArgs(wireLabel, target); err != nil {
		return nil, err
	}
	fqdn := wireLabel + "." + n.zone
	if n.logger != nil {
		n.logger.WithFields(logging.Fields{
			"fqdn":   fqdn,
			"target": target,
		}).Warn("No registrar configured, skipping DNS update")
	}
	return &Result{Provider: n.Name(), FQDN: fqdn, Target: target, Simulated: true}, nil
}
