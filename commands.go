package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/slighter12/appservice-mcp-go/client"
	"github.com/slighter12/appservice-mcp-go/config"
	"github.com/slighter12/appservice-mcp-go/logger"
	"github.com/slighter12/appservice-mcp-go/tools"
	"github.com/slighter12/appservice-mcp-go/transport"
	mcphttp "github.com/slighter12/appservice-mcp-go/transport/http"
)

const (
	defaultRemoteURL   = "http://localhost:8787/mcp"
	remoteCallTimeout  = 30 * time.Second
	transportFlagUsage = "transport of the remote server: sse or streamable"
)

type serveOptions struct {
	configPath string
	host       string
	port       int
	debug      bool
}

func newServeCmd() *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on the configured HTTP transports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "config file (default: $MCP_CONFIG_PATH or config/mcp_config.{yaml,json})")
	cmd.Flags().StringVar(&opts.host, "host", "", "override server.host")
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "override server.port")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "enable debug mode")
	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, opts serveOptions) error {
	path, err := loadablePath(opts.configPath)
	if err != nil {
		return err
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if cmd.Flags().Changed("host") {
		cfg.Server.Host = opts.host
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = opts.port
	}
	debug := opts.debug || os.Getenv("MCP_DEBUG") == "true"
	applyDebug(cfg, debug)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logger.Init(logger.GetLevelFromString(cfg.Logging.Level), logger.Format(cfg.Logging.Format), cfg.Logging.Path); err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}

	registry, err := newRegistry()
	if err != nil {
		return err
	}
	server, err := mcphttp.NewServer(cfg, tools.NewInvoker(registry))
	if err != nil {
		return err
	}

	if err := config.Watch(ctx, path, reloadLogLevel(debug)); err != nil {
		logger.Warn("Config hot reload disabled", "path", path, "error", err)
	}

	return server.Run(ctx)
}

// applyDebug forces debug mode and level when requested on the command line
// or through MCP_DEBUG.
func applyDebug(cfg *config.Config, debug bool) {
	if !debug {
		return
	}
	cfg.Server.Debug = true
	cfg.Logging.Level = "debug"
}

// reloadLogLevel applies the log level of a reloaded config. The debug
// override keeps winning over the file.
func reloadLogLevel(debug bool) func(*config.Config) {
	return func(next *config.Config) {
		applyDebug(next, debug)
		level := logger.GetLevelFromString(next.Logging.Level)
		logger.SetLevel(level)
		logger.Info("Log level updated", "level", level.String())
	}
}

// loadablePath resolves the config path, creating a default file when the
// path was not given explicitly and nothing exists yet.
func loadablePath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	path, err := config.ResolveConfigPath()
	if err != nil {
		return "", err
	}
	if err := config.EnsureDefaultConfig(path); err != nil {
		return "", fmt.Errorf("create default config: %w", err)
	}
	return path, nil
}

type remoteOptions struct {
	url       string
	transport string
}

func (o *remoteOptions) bind(cmd *cobra.Command, urlFlag string) {
	cmd.Flags().StringVar(&o.url, urlFlag, "", "endpoint URL of a running server (default "+defaultRemoteURL+")")
	cmd.Flags().StringVarP(&o.transport, "transport", "t", "streamable", transportFlagUsage)
}

func (o *remoteOptions) connect(ctx context.Context) (*client.Client, error) {
	kind, err := parseKind(o.transport)
	if err != nil {
		return nil, err
	}
	endpoint := o.url
	if endpoint == "" {
		endpoint = defaultRemoteURL
	}
	return client.Connect(ctx, endpoint, kind, nil)
}

func parseKind(raw string) (transport.Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sse":
		return transport.KindSSE, nil
	case "streamable", "streamable_http", "http":
		return transport.KindStreamable, nil
	default:
		return "", fmt.Errorf("unknown transport %q (want sse or streamable)", raw)
	}
}

type toolSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func newToolsCmd() *cobra.Command {
	var (
		remote remoteOptions
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the registered tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				summaries []toolSummary
				err       error
			)
			if cmd.Flags().Changed("remote") {
				summaries, err = remoteTools(cmd.Context(), &remote)
			} else {
				summaries, err = localTools()
			}
			if err != nil {
				return err
			}
			return printTools(cmd.OutOrStdout(), summaries, asJSON)
		},
	}
	remote.bind(cmd, "remote")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func localTools() ([]toolSummary, error) {
	registry, err := newRegistry()
	if err != nil {
		return nil, err
	}
	var out []toolSummary
	for info := range registry.List() {
		out = append(out, toolSummary{Name: info.Name, Description: info.Description})
	}
	return out, nil
}

func remoteTools(ctx context.Context, remote *remoteOptions) ([]toolSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, remoteCallTimeout)
	defer cancel()

	c, err := remote.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	listed, err := c.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]toolSummary, 0, len(listed))
	for _, t := range listed {
		out = append(out, toolSummary{Name: t.Name, Description: t.Description})
	}
	return out, nil
}

func printTools(w io.Writer, summaries []toolSummary, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDESCRIPTION")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\n", s.Name, s.Description)
	}
	return tw.Flush()
}

var errToolReportedFailure = errors.New("tool reported an error")

func newCallCmd() *cobra.Command {
	var (
		remote  remoteOptions
		rawArgs []string
	)
	cmd := &cobra.Command{
		Use:   "call TOOL",
		Short: "Call a tool on a running server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arguments, err := parseToolArgs(rawArgs)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), remoteCallTimeout)
			defer cancel()

			c, err := remote.connect(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			res, err := c.CallTool(ctx, args[0], arguments)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Text)
			if res.IsError {
				return errToolReportedFailure
			}
			return nil
		},
	}
	remote.bind(cmd, "url")
	cmd.Flags().StringArrayVarP(&rawArgs, "arg", "a", nil, "tool argument as key=value (repeatable)")
	return cmd
}

// parseToolArgs turns key=value pairs into tool arguments. Every value is
// sent as a string; the server coerces it for number and boolean params.
func parseToolArgs(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --arg %q: want key=value", pair)
		}
		out[key] = value
	}
	return out, nil
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var (
		path  string
		force bool
	)
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target := path
			if target == "" {
				resolved, err := config.ResolveConfigPath()
				if err != nil {
					return err
				}
				target = resolved
			}
			if _, err := os.Stat(target); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", target)
			}
			if err := config.SaveConfig(config.NewConfig(), target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", target)
			return nil
		},
	}
	initCmd.Flags().StringVar(&path, "path", "", "destination file (.yaml, .yml or .json)")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	cmd.AddCommand(initCmd)
	return cmd
}
