package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rax0nrax/punyfunny/pkg/idn"
)

type labelForms struct {
	Display string `json:"display"`
	Wire    string `json:"wire"`
}

func newEncodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "encode <label>...",
		Short:   "Convert display labels to their xn-- wire form",
		Example: "  ankh encode 🚀 ☕",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := make([]labelForms, 0, len(args))
			for _, label := range args {
				wire, err := idn.Encode(label)
				if err != nil {
					return err
				}
				out = append(out, labelForms{Display: label, Wire: wire})
			}
			return printForms(cmd, out, func(f labelForms) string { return f.Wire })
		},
	}
}

func newDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "decode <wire>...",
		Short:   "Convert xn-- labels or domains back to display form",
		Example: "  ankh decode xn--158h xn--158h.xn--wb8d.ws",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := make([]labelForms, 0, len(args))
			for _, wire := range args {
				display, err := idn.Decode(wire)
				if err != nil {
					return err
				}
				out = append(out, labelForms{Display: display, Wire: wire})
			}
			return printForms(cmd, out, func(f labelForms) string { return f.Display })
		},
	}
}

func printForms(cmd *cobra.Command, forms []labelForms, text func(labelForms) string) error {
	if jsonOutput() {
		if len(forms) == 1 {
			return writeJSON(cmd.OutOrStdout(), forms[0])
		}
		return writeJSON(cmd.OutOrStdout(), forms)
	}
	for _, f := range forms {
		fmt.Fprintln(cmd.OutOrStdout(), text(f))
	}
	return nil
}

func newQualifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "qualify <label>",
		Short:   "Print the full domain a label would register as",
		Example: "  ankh qualify 🚀\n  ankh qualify --zone ☕.example xn--158h",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			zone, err := zoneFromConfig()
			if err != nil {
				return err
			}
			domain, err := zone.FullyQualify(args[0])
			if err != nil {
				return err
			}
			if jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), domain)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "display: %s\n", domain.Display)
			fmt.Fprintf(cmd.OutOrStdout(), "wire:    %s\n", domain.Wire)
			return nil
		},
	}
}
