package main

import (
	"time"

	"github.com/spf13/cobra"
)

func buildLoginCmd() *cobra.Command {
	var token, tenant string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a bearer token as the current session",
		Long: `Decode a Newton access token and store it as the session for the active
profile. Use --token - to read the token from stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, token, tenant)
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Bearer token (default $NEWTON_TOKEN, - for stdin)")
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant id, for tokens without a tenant_id claim")
	return cmd
}

func buildLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(cmd)
		},
	}
}

func buildWhoamiCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWhoami(cmd, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the session as JSON")
	return cmd
}

type listenOptions struct {
	leadID      string
	history     int
	count       int
	metrics     bool
	metricsAddr string
	watch       bool
}

func buildListenCmd() *cobra.Command {
	var opts listenOptions
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Stream realtime inbox activity as JSON lines",
		Long: `Connect the tenant notification channel, and the conversation channel
for --lead when given, and print every inbox update as one JSON object per
line until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListen(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.leadID, "lead", "", "Also open the conversation for this lead")
	cmd.Flags().IntVar(&opts.history, "history", 0, "Ask the server to replay this many recent messages for --lead")
	cmd.Flags().IntVar(&opts.count, "count", 0, "Exit after this many updates (0 = run until interrupted)")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", false, "Serve Prometheus metrics and /healthz (also metrics.enabled)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Metrics listen address (default metrics.addr)")
	cmd.Flags().BoolVar(&opts.watch, "watch-config", true, "Apply logging.level changes from the config file without restarting")
	return cmd
}

type sendOptions struct {
	leadID   string
	text     string
	file     string
	mimetype string
	caption  string
	duration float64
	retries  int
	wait     time.Duration
}

func buildSendCmd() *cobra.Command {
	var opts sendOptions
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a text or media message to a lead",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.leadID, "lead", "", "Lead id (required)")
	cmd.Flags().StringVar(&opts.text, "text", "", "Text message")
	cmd.Flags().StringVar(&opts.file, "file", "", "Send a file: image, video, audio or PDF")
	cmd.Flags().StringVar(&opts.mimetype, "mime", "", "Override the detected MIME type of --file")
	cmd.Flags().StringVar(&opts.caption, "caption", "", "Caption for image, video or PDF")
	cmd.Flags().Float64Var(&opts.duration, "duration", 0, "Audio duration in seconds")
	cmd.Flags().IntVar(&opts.retries, "retries", 3, "Connection attempts before giving up")
	cmd.Flags().DurationVar(&opts.wait, "wait", 5*time.Second, "Wait this long for the server confirmation (0 = don't wait)")
	_ = cmd.MarkFlagRequired("lead")
	return cmd
}

func buildConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration file",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "validate",
			Short: "Load and validate the configuration file",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runConfigValidate(cmd)
			},
		},
		&cobra.Command{
			Use:   "schema",
			Short: "Print the configuration JSON Schema",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runConfigSchema(cmd)
			},
		},
	)
	return cmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("newton %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
