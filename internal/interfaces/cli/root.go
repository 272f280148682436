// Package cli implements the lawres command line. Every command talks to a
// running API server through pkg/client.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/sagerock/ai-law-research/internal/config"
	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/logging"
	"github.com/sagerock/ai-law-research/pkg/client"
	"github.com/sagerock/ai-law-research/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Output formats.
const (
	OutputTable = "table"
	OutputJSON  = "json"
)

// RootOptions holds the global flags.
type RootOptions struct {
	ConfigPath   string
	ServerAddr   string
	LogLevel     string
	OutputFormat string
	NoColor      bool
	Timeout      time.Duration
}

// CLIContext carries the initialised client and output settings to every
// subcommand.
type CLIContext struct {
	Client       *client.Client
	Logger       logging.Logger
	OutputFormat string
}

type cliContextKey struct{}

// NewRootCommand builds the lawres command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "lawres",
		Short: "Citation intelligence for case law",
		Long: "lawres queries a running research API: resolve citations in text, check a\n" +
			"case's treatment badge, run hybrid search, check a brief, and drive bulk\n" +
			"ingestion jobs.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file; the server port is taken from it when --server is unset")
	pf.StringVar(&opts.ServerAddr, "server", "", "API base URL (default http://localhost:<server.port>)")
	pf.StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVarP(&opts.OutputFormat, "output", "o", OutputTable, "output format (table, json)")
	pf.BoolVar(&opts.NoColor, "no-color", false, "disable colored output")
	pf.DurationVar(&opts.Timeout, "timeout", 60*time.Second, "per-request timeout")

	cmd.AddCommand(
		NewSearchCmd(),
		NewBadgeCmd(),
		NewTreatmentsCmd(),
		NewCitatorCmd(),
		NewCitationsCmd(),
		NewResolveCmd(),
		NewBriefCheckCmd(),
		NewIngestCmd(),
	)
	return cmd
}

func persistentPreRun(cmd *cobra.Command, opts *RootOptions) error {
	switch opts.OutputFormat {
	case OutputTable, OutputJSON:
	default:
		return errors.InvalidParam("unknown output format").WithDetail(opts.OutputFormat)
	}
	if opts.NoColor {
		color.NoColor = true
	}

	logger, err := logging.NewLogger(logging.LogConfig{
		Level:            opts.LogLevel,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
	if err != nil {
		return err
	}

	addr, err := serverAddr(opts)
	if err != nil {
		return err
	}
	c, err := client.NewClient(addr,
		client.WithTimeout(opts.Timeout),
		client.WithUserAgent("lawres-cli/"+Version),
		client.WithLogger(clientLogger{logger}),
	)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, &CLIContext{
		Client:       c,
		Logger:       logger,
		OutputFormat: opts.OutputFormat,
	}))
	return nil
}

// serverAddr resolves the API URL: --server, then the port of the loaded
// config.
func serverAddr(opts *RootOptions) (string, error) {
	if opts.ServerAddr != "" {
		return opts.ServerAddr, nil
	}
	cfg := config.NewDefaultConfig()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return "", err
		}
		cfg = loaded
	}
	return fmt.Sprintf("http://localhost:%d", cfg.Server.Port), nil
}

// GetCLIContext returns the context installed by the root command.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	if ctx := cmd.Context(); ctx != nil {
		if cc, ok := ctx.Value(cliContextKey{}).(*CLIContext); ok && cc != nil {
			return cc, nil
		}
	}
	return nil, errors.Internal("cli: command context not initialised")
}

// Execute runs the root command against os.Args.
func Execute() error {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		PrintError(root, err)
		return err
	}
	return nil
}

// clientLogger adapts the structured logger to the SDK's printf interface.
type clientLogger struct{ l logging.Logger }

func (c clientLogger) Debugf(format string, args ...interface{}) { c.l.Debug(fmt.Sprintf(format, args...)) }
func (c clientLogger) Infof(format string, args ...interface{})  { c.l.Info(fmt.Sprintf(format, args...)) }
func (c clientLogger) Errorf(format string, args ...interface{}) { c.l.Warn(fmt.Sprintf(format, args...)) }

// ─────────────────────────────────────────────────────────────────────────────
// Output helpers
// ─────────────────────────────────────────────────────────────────────────────

// PrintError writes err to stderr. API errors show their code.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if apiErr.Detail != "" {
			msg += ": " + apiErr.Detail
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %s [%s]\n", color.RedString("Error:"), msg, apiErr.Code)
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", color.RedString("Error:"), err.Error())
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// render prints v as JSON or hands the writer to table.
func render(cmd *cobra.Command, v interface{}, table func(io.Writer)) error {
	cc, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	if cc.OutputFormat == OutputJSON {
		return printJSON(cmd.OutOrStdout(), v)
	}
	table(cmd.OutOrStdout())
	return nil
}

func newTable(w io.Writer, headers ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(headers)
	t.SetAutoWrapText(false)
	t.SetBorder(false)
	t.SetHeaderLine(true)
	t.SetColumnSeparator(" ")
	return t
}

func colorBadge(badge string) string {
	switch badge {
	case client.BadgeNegative:
		return color.RedString(badge)
	case client.BadgeCaution:
		return color.YellowString(badge)
	case client.BadgeGood:
		return color.GreenString(badge)
	default:
		return badge
	}
}

func colorSignal(signal string) string {
	switch signal {
	case "overruled", "abrogated":
		return color.RedString(signal)
	case "criticized", "questioned", "distinguished":
		return color.YellowString(signal)
	case "followed":
		return color.GreenString(signal)
	default:
		return signal
	}
}

func colorStatus(status string) string {
	switch status {
	case client.JobSucceeded:
		return color.GreenString(status)
	case client.JobFailed:
		return color.RedString(status)
	case client.JobPartial:
		return color.YellowString(status)
	default:
		return color.CyanString(status)
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// readText returns the text argument: the joined positional args, the file
// named by path, or stdin when path is "-".
func readText(cmd *cobra.Command, args []string, path string) (string, error) {
	var text string
	switch {
	case path == "-":
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", err
		}
		text = string(b)
	case path != "":
		b, err := os.ReadFile(path)
		if err != nil {
			return "", errors.Wrap(err, errors.ErrCodeBadRequest, "read "+path)
		}
		text = string(b)
	default:
		text = strings.Join(args, " ")
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.InvalidParam("no text given; pass it as arguments, --file PATH or --file -")
	}
	return text, nil
}

//Personal.AI order the ending
