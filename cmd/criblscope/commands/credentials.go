package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quietops/criblscope/pkg/credstore"
	"github.com/quietops/criblscope/pkg/model"
)

var (
	credName         string
	credURL          string
	credToken        string
	credClientID     string
	credClientSecret string
	credProduct      string
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage stored deployment credential profiles",
}

var credentialsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Store a credential profile (encrypted at rest)",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := credstore.Open("")
		if err != nil {
			return err
		}

		p := credstore.Profile{
			Name:        credName,
			URL:         credURL,
			ProductHint: model.Product(credProduct),
		}
		switch {
		case credToken != "":
			p.AuthType = credstore.AuthBearer
			p.BearerToken = credToken
		case credClientID != "":
			p.AuthType = credstore.AuthOAuth
			p.OAuthClientID = credClientID
			p.OAuthClientSecret = credClientSecret
		default:
			return fmt.Errorf("pass --token or --client-id/--client-secret")
		}

		if err := store.Put(p); err != nil {
			return err
		}
		fmt.Printf("Stored profile %q\n", p.Name)
		return nil
	},
}

var credentialsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored profile names",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := credstore.Open("")
		if err != nil {
			return err
		}
		names, err := store.List()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("No stored profiles.")
			return nil
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}

var credentialsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a stored profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := credstore.Open("")
		if err != nil {
			return err
		}
		if err := store.Delete(args[0]); err != nil {
			if errors.Is(err, credstore.ErrNotFound) {
				return fmt.Errorf("no profile named %q", args[0])
			}
			return err
		}
		fmt.Printf("Deleted profile %q\n", args[0])
		return nil
	},
}

func init() {
	credentialsAddCmd.Flags().StringVar(&credName, "name", "", "Profile name")
	credentialsAddCmd.Flags().StringVar(&credURL, "url", "", "Leader URL")
	credentialsAddCmd.Flags().StringVar(&credToken, "token", "", "Bearer token")
	credentialsAddCmd.Flags().StringVar(&credClientID, "client-id", "", "OAuth client id")
	credentialsAddCmd.Flags().StringVar(&credClientSecret, "client-secret", "", "OAuth client secret")
	credentialsAddCmd.Flags().StringVar(&credProduct, "product", "", "Product hint (stream|edge|lake|search)")
	_ = credentialsAddCmd.MarkFlagRequired("name")
	_ = credentialsAddCmd.MarkFlagRequired("url")

	credentialsCmd.AddCommand(credentialsAddCmd)
	credentialsCmd.AddCommand(credentialsListCmd)
	credentialsCmd.AddCommand(credentialsDeleteCmd)
}
