package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rax0nrax/punyfunny/pkg/clients"
	"github.com/rax0nrax/punyfunny/pkg/idn"
)

// errNotAdmissible makes `ankh check` exit non-zero for rejected labels.
var errNotAdmissible = errors.New("label is not admissible")

type checkResult struct {
	Input      string       `json:"input"`
	Admissible bool         `json:"admissible"`
	Reason     string       `json:"reason,omitempty"`
	Domain     *idn.Domain  `json:"domain,omitempty"`
	Remote     *remoteCheck `json:"remote,omitempty"`
}

// remoteCheck mirrors the service's availability response.
type remoteCheck struct {
	Available     bool   `json:"available"`
	Subdomain     string `json:"subdomain,omitempty"`
	Punycode      string `json:"punycode,omitempty"`
	FullDomain    string `json:"fullDomain,omitempty"`
	DisplayDomain string `json:"displayDomain,omitempty"`
	Error         string `json:"error,omitempty"`
}

func newCheckCmd() *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "check <label>",
		Short: "Check a label against the naming policy",
		Long: `Check whether a label may be registered: it must contain no ASCII letters
or digits and must encode to a valid DNS label.

With --remote the registry service is also asked whether the label is still
available.`,
		Example: "  ankh check 🚀\n  ankh check --remote ☕",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			zone, err := zoneFromConfig()
			if err != nil {
				return err
			}

			res := localCheck(zone, args[0])
			if res.Admissible && remote {
				ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
				defer cancel()
				res.Remote, err = fetchAvailability(ctx, viper.GetString("api_url"), res.Domain.Label)
				if err != nil {
					return err
				}
			}

			if jsonOutput() {
				if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
			} else {
				printCheck(cmd, res)
			}

			if !res.Admissible {
				return errNotAdmissible
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "also query the registry service for availability")
	return cmd
}

func localCheck(zone idn.Zone, input string) checkResult {
	res := checkResult{Input: input}

	label, err := idn.Validate(input)
	if err != nil {
		res.Reason = reason(err)
		return res
	}
	domain, err := zone.FullyQualify(label)
	if err != nil {
		res.Reason = reason(err)
		return res
	}

	res.Admissible = true
	res.Domain = &domain
	return res
}

func reason(err error) string {
	var rej *idn.RejectionError
	var enc *idn.EncodingError
	var dec *idn.DecodingError
	switch {
	case errors.As(err, &rej):
		return rej.Reason
	case errors.As(err, &enc):
		return "cannot encode: " + enc.Err.Error()
	case errors.As(err, &dec):
		return "malformed punycode: " + dec.Err.Error()
	default:
		return err.Error()
	}
}

func printCheck(cmd *cobra.Command, res checkResult) {
	out := cmd.OutOrStdout()
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	if !res.Admissible {
		fmt.Fprintf(out, "%s %s: %s\n", red("✗"), res.Input, res.Reason)
		return
	}

	fmt.Fprintf(out, "%s %s is admissible\n", green("✓"), res.Domain.Label)
	fmt.Fprintf(out, "  display: %s\n", res.Domain.Display)
	fmt.Fprintf(out, "  wire:    %s\n", res.Domain.Wire)

	if res.Remote == nil {
		return
	}
	switch {
	case res.Remote.Error != "":
		fmt.Fprintf(out, "%s registry: %s\n", red("✗"), res.Remote.Error)
	case res.Remote.Available:
		fmt.Fprintf(out, "%s available for registration\n", green("✓"))
	default:
		fmt.Fprintf(out, "%s already registered\n", yellow("•"))
	}
}

func fetchAvailability(ctx context.Context, apiURL, label string) (*remoteCheck, error) {
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	endpoint := strings.TrimRight(apiURL, "/") + "/api/check-availability?subdomain=" + url.QueryEscape(label)

	execCfg := clients.DefaultHTTPExecutorConfig("ankh")
	execCfg.MaxRetries = 1
	execCfg.BreakerDisabled = true
	hc := clients.NewHTTPClient(nil, execCfg)

	resp, err := hc.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("query registry: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry returned %s", resp.Status)
	}

	var out remoteCheck
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode registry response: %w", err)
	}
	return &out, nil
}
