package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/newton/internal/auth"
	"github.com/haasonsaas/newton/internal/backoff"
	"github.com/haasonsaas/newton/internal/channels"
	"github.com/haasonsaas/newton/internal/channels/conversation"
	"github.com/haasonsaas/newton/internal/channels/notifications"
	"github.com/haasonsaas/newton/internal/config"
	"github.com/haasonsaas/newton/internal/messaging"
	"github.com/haasonsaas/newton/internal/observability"
	"github.com/haasonsaas/newton/internal/storage"
	"github.com/haasonsaas/newton/pkg/models"
)

// errNotLoggedIn is returned by commands that need a stored session.
var errNotLoggedIn = errors.New("not logged in: run `newton login` first")

// app bundles what every command loads before doing its work.
type app struct {
	path   string
	cfg    *config.Config
	level  *slog.LevelVar
	logger *slog.Logger
}

func resolveConfigPath() string {
	if p := strings.TrimSpace(configPath); p != "" {
		return p
	}
	return config.DefaultPath()
}

func loadApp(cmd *cobra.Command) (*app, error) {
	path := resolveConfigPath()
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	if p := strings.TrimSpace(profileName); p != "" {
		cfg.Session.Profile = p
	}

	level := new(slog.LevelVar)
	logger := observability.NewLogger(observability.LogConfig{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Output:    cmd.ErrOrStderr(),
		AddSource: cfg.Logging.AddSource,
		LevelVar:  level,
	})
	return &app{path: path, cfg: cfg, level: level, logger: logger}, nil
}

func (a *app) openStore(ctx context.Context) (storage.SessionStore, error) {
	sc := a.cfg.Session
	switch sc.Store {
	case config.StoreMemory:
		return storage.NewMemorySessionStore(), nil
	case config.StoreRedis:
		return storage.OpenRedis(ctx, sc.RedisURL, sc.Profile)
	case config.StoreSQLite, "":
		if err := os.MkdirAll(filepath.Dir(sc.Path), 0o700); err != nil {
			return nil, fmt.Errorf("create session directory: %w", err)
		}
		return storage.OpenSQLite(ctx, sc.Path, sc.Profile)
	default:
		return nil, fmt.Errorf("unknown session store %q", sc.Store)
	}
}

// loadSession returns the stored session, rejecting missing and expired ones.
func (a *app) loadSession(ctx context.Context) (*models.Session, error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	session, err := store.Load(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, errNotLoggedIn
	}
	if err != nil {
		return nil, err
	}
	if session.Expired(time.Now()) {
		return nil, fmt.Errorf("%w: log in again", auth.ErrTokenExpired)
	}
	return session, nil
}

func (a *app) reconnect() channels.ReconnectConfig {
	rc := a.cfg.Realtime.Reconnect
	return channels.ReconnectConfig{
		MaxAttempts: rc.MaxAttempts,
		Policy: backoff.Policy{
			Initial: rc.InitialDelay,
			Max:     rc.MaxDelay,
			Factor:  2,
		},
	}
}

func (a *app) dialer() channels.Dialer {
	rt := a.cfg.Realtime
	return &channels.WebSocketDialer{
		HandshakeTimeout: rt.HandshakeTimeout,
		WriteTimeout:     rt.WriteTimeout,
		ReadLimit:        rt.ReadLimit,
	}
}

// realtime is an inbox together with the channels it drives.
type realtime struct {
	inbox  *messaging.Inbox
	conv   *conversation.Channel
	notify *notifications.Channel
}

// newRealtime builds both channels and the inbox for session. hooks may be
// nil.
func (a *app) newRealtime(session *models.Session, hooks channels.Hooks) (*realtime, error) {
	rt := a.cfg.Realtime
	conv, err := conversation.New(conversation.Config{
		BaseURL:           rt.BaseURL,
		HeartbeatInterval: rt.HeartbeatInterval,
		HandshakeTimeout:  rt.HandshakeTimeout,
		Reconnect:         a.reconnect(),
		Dialer:            a.dialer(),
		Logger:            a.logger,
		Hooks:             hooks,
	})
	if err != nil {
		return nil, err
	}
	notify, err := notifications.New(notifications.Config{
		BaseURL:           rt.BaseURL,
		HeartbeatInterval: rt.HeartbeatInterval,
		HandshakeTimeout:  rt.HandshakeTimeout,
		Reconnect:         a.reconnect(),
		Dialer:            a.dialer(),
		Logger:            a.logger,
		Hooks:             hooks,
	})
	if err != nil {
		return nil, err
	}
	inbox, err := messaging.New(messaging.Config{
		Conversation:  conv,
		Notifications: notify,
		Credentials:   auth.NewSessionProvider(session),
		Identity:      session.User,
		Logger:        a.logger,
	})
	if err != nil {
		return nil, err
	}
	return &realtime{inbox: inbox, conv: conv, notify: notify}, nil
}

// health reports both channels. The notification channel decides the HTTP
// status since it stays open for the whole session.
func (rt *realtime) health(ctx context.Context) (map[string]channels.HealthStatus, bool) {
	report := map[string]channels.HealthStatus{
		channels.KindNotifications: rt.notify.Conn().Health(ctx),
		channels.KindConversation:  rt.conv.Conn().Health(ctx),
	}
	return report, report[channels.KindNotifications].Healthy
}

// waitConnected blocks until conn is connected, reports an error, or timeout
// passes.
func waitConnected(ctx context.Context, conn *channels.Conn, timeout time.Duration) error {
	statuses := make(chan models.ConnectionStatus, 8)
	unsubscribe := conn.OnStatus(func(s models.ConnectionStatus) {
		select {
		case statuses <- s:
		default:
		}
	})
	defer unsubscribe()

	if conn.Ready() {
		return nil
	}
	if conn.Status() == models.ConnectionStatusError {
		select {
		case statuses <- models.ConnectionStatusError:
		default:
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case s := <-statuses:
			switch s {
			case models.ConnectionStatusConnected:
				return nil
			case models.ConnectionStatusError:
				if msg := conn.LastError(); msg != "" {
					return errors.New(msg)
				}
				return errors.New("connection error")
			}
		case <-timer.C:
			return fmt.Errorf("%s channel not connected after %s", conn.Kind(), timeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
