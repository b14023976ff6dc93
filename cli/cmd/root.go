package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rax0nrax/punyfunny/pkg/idn"
)

const defaultAPIURL = "https://xn--wb8d.ws"

var (
	cfgFile string
	output  string
)

// NewRootCmd returns the root command for the ankh CLI
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ankh",
		Short:         "Emoji subdomain toolkit",
		Long:          "ankh converts emoji subdomain labels between display and Punycode form and checks them against the registry naming policy.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.ankh/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&output, "output", "", "output format: json|text (default: text)")
	rootCmd.PersistentFlags().String("zone", idn.DefaultRoot, "root domain labels are registered under")
	rootCmd.PersistentFlags().String("api-url", defaultAPIURL, "registry service base URL")
	_ = viper.BindPFlag("zone", rootCmd.PersistentFlags().Lookup("zone"))
	_ = viper.BindPFlag("api_url", rootCmd.PersistentFlags().Lookup("api-url"))

	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(newEncodeCmd())
	rootCmd.AddCommand(newDecodeCmd())
	rootCmd.AddCommand(newQualifyCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home + "/.ankh")
			viper.SetConfigName("config")
		}
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("ANKH")
	viper.AutomaticEnv()

	// Ignore missing config
	_ = viper.ReadInConfig()
}

func zoneFromConfig() (idn.Zone, error) {
	root := viper.GetString("zone")
	if root == "" {
		root = idn.DefaultRoot
	}
	zone, err := idn.NewZone(root)
	if err != nil {
		return idn.Zone{}, fmt.Errorf("invalid zone %q: %w", root, err)
	}
	return zone, nil
}

func jsonOutput() bool {
	return output == "json"
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
