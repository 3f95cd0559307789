package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ochronus/gozenodo/internal/app"
	"github.com/ochronus/gozenodo/internal/config"
	"github.com/ochronus/gozenodo/internal/http"
	"github.com/ochronus/gozenodo/internal/services/retry"
	"github.com/ochronus/gozenodo/internal/services/zenodo"
	"github.com/ochronus/gozenodo/internal/utils"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	configPath string
	production bool
)

func main() {
	// Get default config path
	defaultConfigPath, err := config.DefaultConfigPath()
	if err != nil {
		defaultConfigPath = "./config.toml"
	}

	// Root command
	rootCmd := &cobra.Command{
		Use:           "gozenodo",
		Short:         "Zenodo deposition client",
		Long:          "Lists and creates Zenodo depositions and uploads local files to them, against the sandbox or the production instance.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to config file")
	rootCmd.PersistentFlags().BoolVar(&production, "production", false, "Use the production instance instead of the configured default")

	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newCreateCmd())
	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newGenerateConfigCmd())

	// Version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gozenodo version %s\n", version)
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func newListCmd() *cobra.Command {
	var retries int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the depositions of the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := buildContainer()
			if err != nil {
				return err
			}

			session, err := container.NewSession(useProduction(cmd, container.Config))
			if err != nil {
				return err
			}

			var depositions []json.RawMessage
			err = retry.Do(cmd.Context(), retry.Config{
				Attempts: retries,
				OnRetry: func(attempt int, err error, delay time.Duration) {
					container.Logger.Warnf("list attempt %d failed: %v; retrying in %s", attempt, err, delay)
				},
			}, func(ctx context.Context) error {
				var err error
				depositions, err = session.ListDepositions(ctx)
				return err
			})
			if err != nil {
				return err
			}
			if depositions == nil {
				depositions = []json.RawMessage{}
			}

			return printJSON(cmd.OutOrStdout(), depositions)
		},
	}
	cmd.Flags().IntVar(&retries, "retries", 1, "Total attempts when Zenodo cannot be reached")

	return cmd
}

func newCreateCmd() *cobra.Command {
	var (
		metadataPath string
		title        string
		description  string
		uploadType   string
		creators     []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a deposition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var metadata any
			if metadataPath != "" {
				raw, err := utils.LoadMetadataFile(metadataPath)
				if err != nil {
					return err
				}
				metadata = raw
			} else {
				req, err := utils.BuildDepositionRequest(title, description, uploadType, creators)
				if err != nil {
					return err
				}
				metadata = req
			}

			container, err := buildContainer()
			if err != nil {
				return err
			}

			session, err := container.NewSession(useProduction(cmd, container.Config))
			if err != nil {
				return err
			}

			deposition, err := session.CreateDeposition(cmd.Context(), metadata)
			if err != nil {
				return err
			}

			container.Logger.Infof("deposition %d created", deposition.ID)
			return printJSON(cmd.OutOrStdout(), deposition.Fields)
		},
	}
	cmd.Flags().StringVar(&metadataPath, "metadata", "", "JSON file sent as is as the deposition body")
	cmd.Flags().StringVar(&title, "title", "", "Deposition title")
	cmd.Flags().StringVar(&description, "description", "", "Deposition description")
	cmd.Flags().StringVar(&uploadType, "upload-type", "", "Upload type, e.g. dataset, publication, software")
	cmd.Flags().StringArrayVar(&creators, "creator", nil, `Creator as "Name" or "Name;Affiliation", repeatable`)
	cmd.MarkFlagsMutuallyExclusive("metadata", "title")
	cmd.MarkFlagsMutuallyExclusive("metadata", "description")
	cmd.MarkFlagsMutuallyExclusive("metadata", "upload-type")
	cmd.MarkFlagsMutuallyExclusive("metadata", "creator")
	cmd.MarkFlagsOneRequired("metadata", "title")

	return cmd
}

func newUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload DEPOSITION_ID FILE_ID...",
		Short: "Upload local files to a deposition",
		Long:  "Uploads every part of each FILE_ID, in order. Parts of one file are sent sequentially and the upload stops at the first rejected part.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := buildContainer()
			if err != nil {
				return err
			}

			depositionID := args[0]
			results := make([]*zenodo.UploadResult, 0, len(args)-1)
			for _, fileID := range args[1:] {
				session, err := container.NewSession(useProduction(cmd, container.Config))
				if err != nil {
					return err
				}

				result, err := session.UploadFile(cmd.Context(), depositionID, fileID)
				if err != nil {
					return fmt.Errorf("upload %s: %w", fileID, err)
				}

				container.Logger.Infof("[%s: %s]: %d part(s) uploaded", depositionID, fileID, len(result.Uploaded))
				results = append(results, result)
			}

			return printJSON(cmd.OutOrStdout(), results)
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Expose the Zenodo operations over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := buildContainer()
			if err != nil {
				return err
			}

			container.Logger.Infof("Starting gozenodo, version %s", version)

			server := http.NewServer(container)
			return server.StartWithContext(cmd.Context())
		},
	}
}

func newGenerateConfigCmd() *cobra.Command {
	var sandboxToken, productionToken string

	cmd := &cobra.Command{
		Use:   "generate-config",
		Short: "Generate config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return utils.GenerateConfig(configPath, sandboxToken, productionToken)
		},
	}
	cmd.Flags().StringVar(&sandboxToken, "sandbox-token", "", "Zenodo sandbox access token")
	cmd.Flags().StringVar(&productionToken, "production-token", "", "Zenodo production access token")

	return cmd
}

func buildContainer() (*app.Container, error) {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	container, err := app.NewContainer(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build container: %w", err)
	}
	return container, nil
}

// useProduction lets --production override the configured default.
func useProduction(cmd *cobra.Command, cfg *config.Config) bool {
	if cmd.Flags().Changed("production") {
		return production
	}
	return cfg.Production
}

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// printError shows configuration problems with their user-facing message only.
func printError(w io.Writer, err error) {
	var cfgErr *zenodo.ConfigError
	if errors.As(err, &cfgErr) {
		fmt.Fprintln(w, cfgErr.Message)
		return
	}
	fmt.Fprintln(w, err)
}
