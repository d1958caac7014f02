// Package main is the entry point for the ipogen CLI.
// ipogen generates t-way covering arrays from factor models with the IPO2
// strategy and serves the generator to AI agents over MCP.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nomagicln/ipogen/pkg/cli"
	"github.com/nomagicln/ipogen/pkg/completion"
	"github.com/nomagicln/ipogen/pkg/config"
	"github.com/nomagicln/ipogen/pkg/generator"
	"github.com/nomagicln/ipogen/pkg/ipo2"
	"github.com/nomagicln/ipogen/pkg/mcp"
	"github.com/nomagicln/ipogen/pkg/model"
	"github.com/nomagicln/ipogen/pkg/render"
	"github.com/nomagicln/ipogen/pkg/store"
	"github.com/nomagicln/ipogen/pkg/tui/progress"
)

// Build information, set via ldflags
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global dependencies, set up before each command runs.
var (
	configMgr        *config.Manager
	settings         *config.Settings
	cache            *store.Store
	logger           *slog.Logger
	cliHandler       *cli.Handler
	completionHelper *completion.Provider
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}

// Execute runs the root command and prints a formatted error on failure.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd()
	defer closeDeps()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, formatError(err))
	}
	return err
}

func newRootCmd() *cobra.Command {
	var (
		configDir string
		verbose   bool
	)

	rootCmd := &cobra.Command{
		Use:   "ipogen",
		Short: "ipogen - t-way covering array generator",
		Long: `ipogen builds small test suites that cover every combination of t factor
levels, honouring constraints between factors.

Models are YAML files (or saved models) listing factors, their levels and
optional constraint expressions:

  name: checkout
  strength: 2
  factors:
    - name: browser
      levels: [chrome, firefox, safari]
    - name: payment
      levels: [card, paypal, invoice]
  constraints:
    - Implies(browser == "safari", payment != "paypal")`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupDeps(configDir, verbose, cmd.ErrOrStderr())
		},
	}

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Configuration directory (default: $IPOGEN_CONFIG_DIR or the user config dir)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log generation details to stderr")

	rootCmd.AddCommand(
		newGenerateCmd(),
		newValidateCmd(),
		newImportOpenAPICmd(),
		newModelCmd(),
		newCacheCmd(),
		newMCPCmd(),
		newCompletionCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func setupDeps(configDir string, verbose bool, stderr io.Writer) error {
	closeDeps()

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	var opts []config.ManagerOption
	if configDir != "" {
		opts = append(opts, config.WithConfigDir(configDir))
	}
	var err error
	configMgr, err = config.NewManager(opts...)
	if err != nil {
		return fmt.Errorf("failed to initialize config manager: %w", err)
	}

	settings, err = configMgr.LoadSettings()
	if err != nil {
		return err
	}

	if settings.Cache.Enabled {
		cache, err = store.Open(settings.Cache.Path)
		if err != nil {
			// Continue without the cache
			logger.Warn("cache unavailable", "path", settings.Cache.Path, "error", err)
			cache = nil
		}
	}

	handlerOpts := []cli.HandlerOption{cli.WithLogger(logger)}
	if cache != nil {
		handlerOpts = append(handlerOpts, cli.WithCache(cache))
	}
	cliHandler = cli.NewHandler(settings, handlerOpts...)
	completionHelper = completion.NewProvider(configMgr, cache)
	return nil
}

func closeDeps() {
	if cache != nil {
		cache.Close()
		cache = nil
	}
}

func formatError(err error) string {
	var saved []string
	if configMgr != nil {
		saved, _ = configMgr.ListModels()
	}
	return cli.NewErrorFormatter().FormatErrorWithContext(err, saved)
}

// loadModel resolves arg to a model file or a saved model and loads it.
func loadModel(arg string) (*model.Model, error) {
	path, err := configMgr.ResolveModel(arg)
	if err != nil {
		return nil, err
	}
	return model.Load(path)
}

func outputFormat(flag string) string {
	if flag != "" {
		return flag
	}
	return settings.Output
}

// newGenerateCmd creates the generate subcommand
func newGenerateCmd() *cobra.Command {
	var (
		output     string
		strength   int
		engine     string
		noCache    bool
		check      bool
		noProgress bool
	)

	cmd := &cobra.Command{
		Use:   "generate <model>",
		Short: "Generate a covering array",
		Long: `Generate a t-way covering array for a model file or saved model.

Identical models are served from the cache unless --no-cache is given.

Example:
  ipogen generate checkout.yaml
  ipogen generate checkout --strength 3 -o csv > cases.csv
  ipogen generate checkout --engine simple --check`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeModels,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadModel(args[0])
			if err != nil {
				return err
			}
			opts := cli.GenerateOptions{Strength: strength, Engine: engine, NoCache: noCache}

			var out *cli.Outcome
			if !noProgress && progress.IsTerminal(os.Stderr) {
				title := "Generating " + displayName(m, args[0])
				_, err = progress.Run(cmd.Context(), title, func(ctx context.Context, report func(ipo2.Progress)) (*generator.CoveringArray, error) {
					opts.Progress = report
					o, err := cliHandler.Generate(ctx, m, opts)
					if err != nil {
						return nil, err
					}
					out = o
					return o.Array, nil
				}, tea.WithOutput(os.Stderr))
			} else {
				out, err = cliHandler.Generate(cmd.Context(), m, opts)
			}
			if err != nil {
				return err
			}

			format := outputFormat(output)
			if out.Cached {
				logger.Info("using cached run", "id", out.RunID)
			}
			if err := render.CoveringArray(cmd.OutOrStdout(), out.Array, format); err != nil {
				return err
			}

			if check {
				return verify(cmd, out)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output format: table, json, yaml, csv (default from config.yaml)")
	cmd.Flags().IntVarP(&strength, "strength", "t", 0, "Interaction strength (overrides the model)")
	cmd.Flags().StringVarP(&engine, "engine", "e", "", "Engine: ipo2, simple (overrides the model)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Always generate, ignoring cached runs")
	cmd.Flags().BoolVar(&check, "check", false, "Verify the result covers every feasible combination")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Do not show the progress view")
	registerFlagCompletions(cmd)

	return cmd
}

func verify(cmd *cobra.Command, out *cli.Outcome) error {
	report, err := cliHandler.Verify(out)
	if err != nil {
		return err
	}
	if err := render.Report(cmd.ErrOrStderr(), report); err != nil {
		return err
	}
	if !report.OK() {
		return fmt.Errorf("covering array failed verification")
	}
	return nil
}

func displayName(m *model.Model, arg string) string {
	if m.Name != "" {
		return m.Name
	}
	return arg
}

// newValidateCmd creates the validate subcommand
func newValidateCmd() *cobra.Command {
	var (
		strength int
		engine   string
		check    bool
	)

	cmd := &cobra.Command{
		Use:   "validate <model>",
		Short: "Check a model for errors",
		Long: `Check a model file or saved model without printing test cases.

With --check the covering array is generated and verified as well.

Example:
  ipogen validate checkout.yaml
  ipogen validate checkout --check`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeModels,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadModel(args[0])
			if err != nil {
				return err
			}
			opts := cli.GenerateOptions{Strength: strength, Engine: engine}
			resolved, req, err := cliHandler.Prepare(m, opts)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "✓ Model '%s' is valid\n", displayName(resolved, args[0]))
			fmt.Fprintf(w, "  Factors: %d\n", req.Factors.Len())
			for _, fs := range resolved.Factors {
				fmt.Fprintf(w, "    %s (%d levels)\n", fs.Name, len(fs.Levels))
			}
			fmt.Fprintf(w, "  Constraints: %d\n", len(resolved.Constraints))
			fmt.Fprintf(w, "  Strength: %d\n", resolved.Strength)
			fmt.Fprintf(w, "  Engine: %s\n", resolved.Engine)

			if !check {
				return nil
			}
			out, err := cliHandler.Generate(cmd.Context(), m, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "  Test cases: %d\n", len(out.Array.TestCases))
			return verify(cmd, out)
		},
	}

	cmd.Flags().IntVarP(&strength, "strength", "t", 0, "Interaction strength (overrides the model)")
	cmd.Flags().StringVarP(&engine, "engine", "e", "", "Engine: ipo2, simple (overrides the model)")
	cmd.Flags().BoolVar(&check, "check", false, "Generate and verify the covering array")
	registerFlagCompletions(cmd)

	return cmd
}

// newImportOpenAPICmd creates the import-openapi subcommand
func newImportOpenAPICmd() *cobra.Command {
	var (
		operation string
		save      string
		list      bool
	)

	cmd := &cobra.Command{
		Use:   "import-openapi <spec>",
		Short: "Derive a model from an OpenAPI operation",
		Long: `Derive a model from the enum and boolean inputs of one OpenAPI 3 operation.
The model is printed as YAML, or saved under a name with --save.

Example:
  ipogen import-openapi petstore.yaml --list
  ipogen import-openapi petstore.yaml --operation addPet
  ipogen import-openapi petstore.yaml --operation addPet --save add-pet`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := model.LoadOpenAPI(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if list {
				for _, id := range model.Operations(doc) {
					fmt.Fprintln(w, id)
				}
				return nil
			}

			m, err := model.FromOpenAPI(doc, operation)
			if err != nil {
				return err
			}
			data, err := m.Marshal()
			if err != nil {
				return err
			}

			if save == "" {
				_, err = w.Write(data)
				return err
			}
			if err := configMgr.SaveModel(save, data); err != nil {
				return err
			}
			fmt.Fprintf(w, "✓ Saved model '%s' (%d factors)\n", save, len(m.Factors))
			return nil
		},
	}

	cmd.Flags().StringVar(&operation, "operation", "", "operationId to import")
	cmd.Flags().StringVar(&save, "save", "", "Save the model under this name")
	cmd.Flags().BoolVar(&list, "list", false, "List the operation ids of the document")
	_ = cmd.RegisterFlagCompletionFunc("operation", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return nil, cobra.ShellCompDirectiveError
		}
		return provider(cmd).CompleteOperations(args[0], toComplete), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// newModelCmd creates the model subcommand and its children
func newModelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Manage saved models",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := configMgr.ListModels()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if len(names) == 0 {
				fmt.Fprintln(w, "No saved models.")
				fmt.Fprintln(w, "\nTo save a model, run:")
				fmt.Fprintln(w, "  ipogen model save <name> <file>")
				return nil
			}
			for _, name := range names {
				fmt.Fprintln(w, name)
			}
			return nil
		},
	}

	saveCmd := &cobra.Command{
		Use:   "save <name> <file>",
		Short: "Save a model file under a name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ValidateAndResolvePath(args[1])
			if err != nil {
				return err
			}
			if _, err := model.Load(path); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read model file: %w", err)
			}
			if err := configMgr.SaveModel(args[0], data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Saved model '%s'\n", args[0])
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:               "show <name>",
		Short:             "Print a saved model",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeSavedModels,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configMgr.ModelPath(args[0])
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read model: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	deleteCmd := &cobra.Command{
		Use:               "delete <name>",
		Short:             "Delete a saved model",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeSavedModels,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := configMgr.DeleteModel(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted model '%s'\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(listCmd, saveCmd, showCmd, deleteCmd)
	return cmd
}

// newCacheCmd creates the cache subcommand and its children
func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear cached runs",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List cached runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireCache(); err != nil {
				return err
			}
			runs, err := cache.List()
			if err != nil {
				return err
			}
			return render.Runs(cmd.OutOrStdout(), runs)
		},
	}

	var output string
	showCmd := &cobra.Command{
		Use:               "show <id>",
		Short:             "Print a cached covering array",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeRunIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireCache(); err != nil {
				return err
			}
			rec, err := cache.Get(args[0])
			if err != nil {
				return fmt.Errorf("run '%s': %w", args[0], err)
			}
			m, err := model.Parse(rec.Model)
			if err != nil {
				return fmt.Errorf("cached model of run '%s': %w", rec.ID, err)
			}
			fs, err := m.FactorSpace()
			if err != nil {
				return err
			}
			ca, err := rec.CoveringArray(fs)
			if err != nil {
				return err
			}
			return render.CoveringArray(cmd.OutOrStdout(), ca, outputFormat(output))
		},
	}
	showCmd.Flags().StringVarP(&output, "output", "o", "", "Output format: table, json, yaml, csv")

	deleteCmd := &cobra.Command{
		Use:               "delete <id>",
		Short:             "Delete a cached run",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeRunIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireCache(); err != nil {
				return err
			}
			if err := cache.Delete(args[0]); err != nil {
				return fmt.Errorf("run '%s': %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted run '%s'\n", args[0])
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireCache(); err != nil {
				return err
			}
			n, err := cache.Clear()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed %d cached runs\n", n)
			return nil
		},
	}

	cmd.AddCommand(listCmd, showCmd, deleteCmd, clearCmd)
	return cmd
}

func requireCache() error {
	if cache == nil {
		return fmt.Errorf("the cache is disabled; set 'cache.enabled: true' in %s", configMgr.SettingsPath())
	}
	return nil
}

// mcpServerOptions holds the options of the mcp subcommand.
type mcpServerOptions struct {
	transport string
	port      string
}

// newMCPCmd creates the mcp subcommand
func newMCPCmd() *cobra.Command {
	var opts mcpServerOptions

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the generator as MCP tools",
		Long: `Start a Model Context Protocol server exposing the tools
generate_covering_array, validate_model, import_openapi and list_models.

Example:
  ipogen mcp
  ipogen mcp --transport sse --port 8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return startMCPServer(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.transport, "transport", "stdio", "Transport: stdio, sse")
	cmd.Flags().StringVar(&opts.port, "port", "8080", "Port for the sse transport")

	return cmd
}

// startMCPServer serves until ctx is cancelled
func startMCPServer(ctx context.Context, opts mcpServerOptions) error {
	factory := mcp.NewServerFactory("ipogen", version, logger)
	handler := mcp.NewHandler(cliHandler, mcp.WithModels(configMgr), mcp.WithLogger(logger))
	server := factory.CreateServer(handler)

	// Use stderr for logs since stdout is used for JSON-RPC
	logger.Info("starting MCP server", "transport", opts.transport)
	return factory.RunServer(ctx, server, opts.transport, opts.port)
}

func registerFlagCompletions(cmd *cobra.Command) {
	_ = cmd.RegisterFlagCompletionFunc("engine", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return provider(cmd).CompleteEngines(toComplete), cobra.ShellCompDirectiveNoFileComp
	})
	if cmd.Flags().Lookup("output") != nil {
		_ = cmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			return provider(cmd).CompleteFormats(toComplete), cobra.ShellCompDirectiveNoFileComp
		})
	}
}

// provider returns the completion provider. Shell completion skips the
// persistent pre-run, so dependencies are set up here when missing.
func provider(cmd *cobra.Command) *completion.Provider {
	if completionHelper == nil {
		var dir string
		if f := cmd.Flag("config-dir"); f != nil {
			dir = f.Value.String()
		}
		if err := setupDeps(dir, false, io.Discard); err != nil {
			return completion.NewProvider(nil, nil)
		}
	}
	return completionHelper
}

// completeModels completes saved model names and falls back to files
func completeModels(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return provider(cmd).CompleteModelNames(toComplete), cobra.ShellCompDirectiveDefault
}

func completeSavedModels(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return provider(cmd).CompleteModelNames(toComplete), cobra.ShellCompDirectiveNoFileComp
}

func completeRunIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return provider(cmd).CompleteRunIDs(toComplete), cobra.ShellCompDirectiveNoFileComp
}

// newVersionCmd creates the version subcommand
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), cmd.Root().Version)
			return nil
		},
	}
}

// newCompletionCmd creates the completion subcommand
func newCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish]",
		Short: "Generate shell completion script",
		Long: `Generate shell completion script for ipogen.

Bash:
  source <(ipogen completion bash)

Zsh:
  ipogen completion zsh > "${fpath[1]}/_ipogen"

Fish:
  ipogen completion fish > ~/.config/fish/completions/ipogen.fish`,
		ValidArgs:             []string{"bash", "zsh", "fish"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(cmd.OutOrStdout(), true)
			case "zsh":
				return cmd.Root().GenZshCompletion(cmd.OutOrStdout())
			case "fish":
				return cmd.Root().GenFishCompletion(cmd.OutOrStdout(), true)
			}
			return nil
		},
	}

	return cmd
}
