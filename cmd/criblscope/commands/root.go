package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/quietops/criblscope/pkg/client"
	"github.com/quietops/criblscope/pkg/config"
	"github.com/quietops/criblscope/pkg/credstore"
	"github.com/quietops/criblscope/pkg/model"
	"github.com/quietops/criblscope/pkg/version"
)

var (
	cfgFile string

	flagURL       string
	flagToken     string
	flagProfile   string
	flagGroup     string
	flagWorkspace string
	flagLake      string
	flagProduct   string
	flagTimeout   time.Duration
	flagVerbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "criblscope",
	Short: "Read-only health assessment for Cribl deployments",
	Long: `CriblScope inspects a Cribl Stream, Edge, Lake or Search deployment
over its REST API and reports findings, recommendations and a health
score. It never writes to the deployment.`,
	Version: version.Current,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ~/.criblscope.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagURL, "url", "", "Leader URL (or CRIBL_URL)")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "Bearer token (or CRIBL_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&flagProfile, "profile", "", "Stored credential profile")
	rootCmd.PersistentFlags().StringVar(&flagGroup, "group", client.DefaultGroup, "Worker group")
	rootCmd.PersistentFlags().StringVar(&flagWorkspace, "workspace", "main", "Search workspace")
	rootCmd.PersistentFlags().StringVar(&flagLake, "lake", "default", "Lake id")
	rootCmd.PersistentFlags().StringVar(&flagProduct, "product", "", "Product hint (stream|edge|lake|search)")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", client.DefaultTimeout, "Per-call timeout")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Debug logging")

	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		renderHelp(cmd)
	})

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(testConnectionCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(credentialsCmd)
}

func renderHelp(cmd *cobra.Command) {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#00FF99")).
		MarginBottom(1)
	flagStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA"))

	fmt.Println(titleStyle.Render(fmt.Sprintf("%s %s", version.AppName, version.Current)))
	fmt.Println(cmd.Short)

	fmt.Println(titleStyle.Render("USAGE"))
	fmt.Printf("  %s\n\n", cmd.UseLine())

	if cmd.HasAvailableSubCommands() {
		fmt.Println(titleStyle.Render("COMMANDS"))
		for _, c := range cmd.Commands() {
			if c.IsAvailableCommand() {
				fmt.Printf("  %-16s %s\n", c.Name(), c.Short)
			}
		}
		fmt.Println("")
	}

	fmt.Println(titleStyle.Render("FLAGS"))
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		line := fmt.Sprintf("  --%-15s %s", f.Name, f.Usage)
		if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" {
			line += fmt.Sprintf(" (default %s)", f.DefValue)
		}
		fmt.Println(flagStyle.Render(line))
	})
	fmt.Println("")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.SetConfigFile(filepath.Join(home, ".criblscope.yaml"))
			viper.SetConfigType("yaml")
		}
	}
	viper.SetEnvPrefix("CRIBLSCOPE")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}

// buildClient resolves credentials (flags, then stored profile, then
// environment) and constructs the API client.
func buildClient(ctx context.Context, opts ...client.Option) (*client.Client, string, error) {
	url := flagURL
	token := flagToken
	hint := model.Product(flagProduct)

	var oauthID, oauthSecret string

	if flagProfile != "" {
		store, err := credstore.Open("")
		if err != nil {
			return nil, "", err
		}
		p, err := store.Get(flagProfile)
		if err != nil {
			return nil, "", fmt.Errorf("profile %q: %w", flagProfile, err)
		}
		if url == "" {
			url = p.URL
		}
		switch p.AuthType {
		case credstore.AuthBearer:
			if token == "" {
				token = p.BearerToken
			}
		case credstore.AuthOAuth:
			oauthID, oauthSecret = p.OAuthClientID, p.OAuthClientSecret
		}
		if hint == "" {
			hint = p.ProductHint
		}
	}

	if url == "" {
		url = config.URLFromEnv()
	}
	if token == "" && oauthID == "" {
		token = config.TokenFromEnv()
	}
	if url == "" {
		return nil, "", fmt.Errorf("no leader URL: pass --url, --profile or set %s", config.EnvURL)
	}

	opts = append(opts,
		client.WithTimeout(flagTimeout),
		client.WithGroup(flagGroup),
		client.WithWorkspace(flagWorkspace),
		client.WithLake(flagLake),
	)
	if hint != "" {
		opts = append(opts, client.WithProductHint(hint))
	}
	switch {
	case token != "":
		opts = append(opts, client.WithBearerToken(token))
	case oauthID != "":
		opts = append(opts, client.WithOAuth(ctx, oauthID, oauthSecret, ""))
	default:
		return nil, "", fmt.Errorf("no credentials: pass --token, --profile or set %s", config.EnvToken)
	}

	c, err := client.New(url, opts...)
	return c, url, err
}
