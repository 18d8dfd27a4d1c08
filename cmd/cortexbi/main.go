package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cortexbi/cortexbi/internal/config"
	"github.com/cortexbi/cortexbi/internal/feedback"
	"github.com/cortexbi/cortexbi/internal/logging"
	"github.com/cortexbi/cortexbi/internal/server"
	"github.com/cortexbi/cortexbi/pkg/deck"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "cortexbi",
		Short:        "Córtex BI: análises de vendas e geração de apresentações",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newRenderCmd())
	root.AddCommand(newPlaceholdersCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var cfgFile string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				return err
			}
			defer logger.Sync()

			store, err := feedback.Open(cfg.Paths.Database)
			if err != nil {
				return err
			}
			defer store.Close()

			if cfg.Feedback.RetentionDays > 0 {
				if n, err := store.CleanupOldData(cfg.Feedback.RetentionDays); err != nil {
					logger.Warn("feedback cleanup failed", zap.Error(err))
				} else if n > 0 {
					logger.Info("cleaned up old feedback rows", zap.Int64("rows", n))
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.Info("starting cortexbi", zap.String("version", version))
			return server.New(cfg, logger, store, version).Run(ctx)
		},
	}
	cmd.Flags().StringVarP(&cfgFile, "config", "c", "", "path to config file")
	cmd.Flags().IntVarP(&port, "port", "p", 8000, "listen port (overrides config)")
	return cmd
}

func newRenderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "render <template.pptx> <values.json> <output.pptx>",
		Short: "Fill a template's placeholders from a JSON value map",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("failed to read values file: %w", err)
			}
			var values map[string]interface{}
			if err := json.Unmarshal(data, &values); err != nil {
				return fmt.Errorf("failed to parse values file: %w", err)
			}

			e := deck.NewEngine()
			if err := e.Load(args[0]); err != nil {
				return err
			}
			n, err := e.Substitute(values)
			if err != nil {
				return err
			}
			if err := e.Save(args[2]); err != nil {
				return err
			}
			remaining, _ := e.ListPlaceholders()
			fmt.Fprintf(cmd.OutOrStdout(), "replaced %d placeholder(s), %d unresolved\n", n, len(remaining))
			for _, name := range remaining {
				fmt.Fprintf(cmd.OutOrStdout(), "  unresolved: {{%s}}\n", name)
			}
			return nil
		},
	}
}

func newPlaceholdersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "placeholders <template.pptx>",
		Short: "List the distinct placeholders a template uses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := deck.NewEngine()
			if err := e.Load(args[0]); err != nil {
				return err
			}
			names, err := e.ListPlaceholders()
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cortexbi %s\n", version)
		},
	}
}
