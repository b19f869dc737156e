package cli

import (
	"time"

	"github.com/dmitrijs2005/profilekeeper/internal/client/client"
	"github.com/dmitrijs2005/profilekeeper/internal/client/config"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	ServerURL  string
	Timeout    time.Duration
}

// newAPI is a test seam for building the HTTP client.
var newAPI = func(cfg *config.Config) API {
	return client.New(cfg.ServerURL, cfg.RequestTimeout)
}

// NewRootCommand creates the root command for profilectl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	app := &App{}

	cmd := &cobra.Command{
		Use:           "profilectl",
		Short:         "Client for the profilekeeper API",
		Long:          "Submit investor questionnaires, log in, update profiles and fetch risk-based recommendations.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(opts.ConfigFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("server") {
				cfg.ServerURL = opts.ServerURL
			}
			if cmd.Flags().Changed("timeout") {
				cfg.RequestTimeout = opts.Timeout
			}
			*app = *NewApp(newAPI(cfg), cmd.InOrStdin(), cmd.OutOrStdout())
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "path to JSON config file")
	cmd.PersistentFlags().StringVarP(&opts.ServerURL, "server", "s", "", "profilekeeper API base URL")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 0, "request timeout")

	cmd.AddCommand(newCreateCommand(app))
	cmd.AddCommand(newLoginCommand(app))
	cmd.AddCommand(newUpdateCommand(app))
	cmd.AddCommand(newClassifyCommand(app))
	cmd.AddCommand(newRecommendationsCommand(app))
	cmd.AddCommand(newPingCommand(app))

	return cmd
}

func newCreateCommand(app *App) *cobra.Command {
	var in createInput

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Submit a new questionnaire",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Create(cmd.Context(), in)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&in.username, "username", "u", "", "account username")
	f.StringVarP(&in.email, "email", "e", "", "account email")
	f.StringArrayVarP(&in.profile, "profile", "p", nil, "profile answer as question=answer (may be repeated)")
	f.StringArrayVar(&in.fields, "field", nil, "extra top-level field as key=value (may be repeated)")

	return cmd
}

func newLoginCommand(app *App) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Check credentials and show the stored risk bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Login(cmd.Context(), email)
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")

	return cmd
}

func newUpdateCommand(app *App) *cobra.Command {
	var profile []string

	cmd := &cobra.Command{
		Use:   "update <username>",
		Short: "Merge profile answers into an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Update(cmd.Context(), args[0], profile)
		},
	}
	cmd.Flags().StringArrayVarP(&profile, "profile", "p", nil, "profile answer as question=answer (may be repeated)")

	return cmd
}

func newClassifyCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <username>",
		Short: "Compute and store the risk bucket of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Classify(cmd.Context(), args[0])
		},
	}
}

func newRecommendationsCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "recommendations <username>",
		Aliases: []string{"recs"},
		Short:   "Show picks for the stored risk bucket",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Recommendations(cmd.Context(), args[0])
		},
	}
}

func newPingCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the server is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Ping(cmd.Context())
		},
	}
}
