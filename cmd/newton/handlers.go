package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/haasonsaas/newton/internal/auth"
	"github.com/haasonsaas/newton/internal/backoff"
	"github.com/haasonsaas/newton/internal/channels"
	"github.com/haasonsaas/newton/internal/config"
	"github.com/haasonsaas/newton/internal/media"
	"github.com/haasonsaas/newton/internal/messaging"
	"github.com/haasonsaas/newton/internal/observability"
	"github.com/haasonsaas/newton/pkg/models"
)

// envToken supplies the login token when --token is not given.
const envToken = "NEWTON_TOKEN"

func runLogin(cmd *cobra.Command, token, tenant string) error {
	ctx := cmd.Context()
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}

	token, err = readToken(cmd, token)
	if err != nil {
		return err
	}
	session, err := auth.Decoder{Secret: []byte(a.cfg.Session.VerifySecret)}.Decode(token, tenant)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Save(ctx, session); err != nil {
		return err
	}

	a.logger.Info("session stored", "tenant_id", session.TenantID, "user_id", session.User.ID, "store", a.cfg.Session.Store)
	cmd.Printf("Logged in to tenant %s as %s\n", session.TenantID, displayName(session.User))
	return nil
}

func readToken(cmd *cobra.Command, token string) (string, error) {
	token = strings.TrimSpace(token)
	switch token {
	case "":
		token = strings.TrimSpace(os.Getenv(envToken))
	case "-":
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read token: %w", err)
		}
		token = strings.TrimSpace(line)
	}
	if token == "" {
		return "", fmt.Errorf("a token is required: pass --token or set %s", envToken)
	}
	return token, nil
}

func displayName(u models.User) string {
	switch {
	case u.Name != "":
		return u.Name
	case u.Email != "":
		return u.Email
	case u.ID != "":
		return u.ID
	}
	return messaging.DefaultSenderName
}

func runLogout(cmd *cobra.Command) error {
	ctx := cmd.Context()
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Clear(ctx); err != nil {
		return err
	}
	cmd.Println("Logged out")
	return nil
}

func runWhoami(cmd *cobra.Command, asJSON bool) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	session, err := a.loadSession(cmd.Context())
	if err != nil {
		return err
	}

	if asJSON {
		out := *session
		out.Token = ""
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Tenant:  %s\n", session.TenantID)
	fmt.Fprintf(out, "User:    %s\n", displayName(session.User))
	if session.User.Email != "" {
		fmt.Fprintf(out, "Email:   %s\n", session.User.Email)
	}
	if session.User.Role != "" {
		fmt.Fprintf(out, "Role:    %s\n", session.User.Role)
	}
	if session.ExpiresAt.IsZero() {
		fmt.Fprintln(out, "Expires: never")
	} else {
		fmt.Fprintf(out, "Expires: %s (in %s)\n", session.ExpiresAt.Format(time.RFC3339), time.Until(session.ExpiresAt).Round(time.Second))
	}
	fmt.Fprintf(out, "Profile: %s\n", a.cfg.Session.Profile)
	return nil
}

// updateLine is the JSON form of one inbox update printed by listen.
type updateLine struct {
	Kind     messaging.UpdateKind `json:"kind"`
	LeadID   string               `json:"lead_id,omitempty"`
	Message  *models.Message      `json:"message,omitempty"`
	Messages int                  `json:"messages"`
	Unread   int                  `json:"unread,omitempty"`
	Error    string               `json:"error,omitempty"`
}

func runListen(cmd *cobra.Command, opts listenOptions) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	session, err := a.loadSession(ctx)
	if err != nil {
		return err
	}

	var hooks channels.Hooks
	var registry *prometheus.Registry
	if opts.metrics || a.cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		hooks = observability.NewRealtimeMetrics(registry)
	}

	rt, err := a.newRealtime(session, hooks)
	if err != nil {
		return err
	}
	defer rt.inbox.Stop()

	updates := make(chan messaging.Update, 64)
	unsubscribe := rt.inbox.Subscribe(func(u messaging.Update) {
		select {
		case updates <- u:
		case <-ctx.Done():
		}
	})
	defer unsubscribe()

	if registry != nil {
		addr := opts.metricsAddr
		if addr == "" {
			addr = a.cfg.Metrics.Addr
		}
		srv, err := startMetricsServer(addr, a.cfg.Metrics.Path, registry, rt.health, a.logger)
		if err != nil {
			return err
		}
		defer stopMetricsServer(srv, a.logger)
	}

	if opts.watch {
		go watchLogLevel(ctx, a)
	}

	if err := rt.inbox.Start(); err != nil {
		return err
	}
	a.logger.Info("listening", "tenant_id", session.TenantID)

	if opts.leadID != "" {
		if err := rt.inbox.Open(opts.leadID, "", nil); err != nil {
			return err
		}
		if opts.history > 0 {
			go func() {
				if waitConnected(ctx, rt.conv.Conn(), 2*a.cfg.Realtime.HandshakeTimeout) == nil {
					rt.inbox.RequestHistory(opts.history)
				}
			}()
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	printed := 0
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case u := <-updates:
			if err := enc.Encode(updateLine{
				Kind:     u.Kind,
				LeadID:   u.LeadID,
				Message:  u.Message,
				Messages: len(u.Messages),
				Unread:   u.Unread,
				Error:    u.Error,
			}); err != nil {
				return err
			}
			printed++
			if opts.count > 0 && printed >= opts.count {
				return nil
			}
		}
	}
}

// watchLogLevel applies logging.level edits from the config file until ctx
// ends. A missing config file is not watched.
func watchLogLevel(ctx context.Context, a *app) {
	if _, err := os.Stat(a.path); err != nil {
		return
	}
	err := config.Watch(ctx, a.path, a.logger, func(cfg *config.Config) {
		level := observability.LogLevelFromString(cfg.Logging.Level)
		if level != a.level.Level() {
			a.level.Set(level)
			a.logger.Info("log level changed", "level", level.String())
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Warn("config watch stopped", "error", err)
	}
}

func runSend(cmd *cobra.Command, opts sendOptions) error {
	ctx := cmd.Context()
	if (opts.text == "") == (opts.file == "") {
		return errors.New("exactly one of --text or --file is required")
	}
	if opts.retries < 1 {
		opts.retries = 1
	}

	var attachment *media.Attachment
	if opts.file != "" {
		var err error
		if attachment, err = media.LoadFile(opts.file, opts.mimetype); err != nil {
			return err
		}
	}

	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	session, err := a.loadSession(ctx)
	if err != nil {
		return err
	}
	rt, err := a.newRealtime(session, nil)
	if err != nil {
		return err
	}
	defer rt.inbox.Stop()

	confirmed := make(chan messaging.Update, 4)
	unsubscribe := rt.inbox.Subscribe(func(u messaging.Update) {
		if u.Kind != messaging.UpdateConfirmed && u.Kind != messaging.UpdateError {
			return
		}
		select {
		case confirmed <- u:
		default:
		}
	})
	defer unsubscribe()

	if err := openConversation(ctx, a, rt, opts.leadID, opts.retries); err != nil {
		return err
	}

	var msg models.Message
	if attachment != nil {
		var duration *float64
		if opts.duration > 0 {
			duration = &opts.duration
		}
		msg, err = attachment.Send(rt.inbox, opts.caption, duration)
	} else {
		msg, err = rt.inbox.SendText(opts.text)
	}
	if err != nil {
		return err
	}
	a.logger.Debug("message sent", "lead_id", opts.leadID, "temp_id", msg.ID, "type", msg.Type)

	if opts.wait > 0 {
		timer := time.NewTimer(opts.wait)
		defer timer.Stop()
		select {
		case u := <-confirmed:
			if u.Kind == messaging.UpdateError {
				return fmt.Errorf("server error: %s", u.Error)
			}
			if u.Message != nil {
				msg = *u.Message
			}
		case <-timer.C:
			a.logger.Warn("no confirmation received", "lead_id", opts.leadID, "wait", opts.wait)
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	msg.Metadata = trimMetadata(msg.Metadata)
	return json.NewEncoder(cmd.OutOrStdout()).Encode(msg)
}

// openConversation opens leadID and waits for its socket, retrying with
// backoff. Setup errors are returned at once.
func openConversation(ctx context.Context, a *app, rt *realtime, leadID string, attempts int) error {
	retryCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var permanent error
	timeout := 2 * a.cfg.Realtime.HandshakeTimeout
	_, err := backoff.Retry(retryCtx, a.reconnect().Policy, attempts, func(attempt int) error {
		if attempt > 1 {
			a.logger.Info("retrying conversation connect", "lead_id", leadID, "attempt", attempt)
		}
		if err := rt.inbox.Open(leadID, "", nil); err != nil {
			if channels.GetErrorCode(err) == channels.ErrCodeSetup {
				permanent = err
				cancel()
			}
			return err
		}
		if err := waitConnected(retryCtx, rt.conv.Conn(), timeout); err != nil {
			rt.conv.Disconnect()
			return err
		}
		return nil
	})
	if permanent != nil {
		return permanent
	}
	if err != nil {
		return fmt.Errorf("connect conversation %s: %w", leadID, err)
	}
	return nil
}

// trimMetadata drops inline file data so printed messages stay readable.
func trimMetadata(md *models.MessageMetadata) *models.MessageMetadata {
	if md == nil || !strings.HasPrefix(md.FileURL, "data:") {
		return md
	}
	out := *md
	out.FileURL = ""
	return &out
}

func runConfigValidate(cmd *cobra.Command) error {
	path := resolveConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	cmd.Printf("%s: ok (version %d, session store %s)\n", path, cfg.Version, cfg.Session.Store)
	return nil
}

func runConfigSchema(cmd *cobra.Command) error {
	schema, err := config.JSONSchema()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(schema))
	return err
}
