package cmd

import (
	"context"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/GenivalfSilva/Sistema-Compras/internal/client"
	"github.com/GenivalfSilva/Sistema-Compras/internal/events"
	"github.com/GenivalfSilva/Sistema-Compras/internal/logging"
	"github.com/GenivalfSilva/Sistema-Compras/internal/metrics"
	"github.com/GenivalfSilva/Sistema-Compras/internal/session"
	"github.com/GenivalfSilva/Sistema-Compras/internal/storage"
	"github.com/GenivalfSilva/Sistema-Compras/pkg/output"
)

// app is what one command invocation needs to talk to the API.
type app struct {
	profile   string
	store     storage.Store
	publisher events.Publisher
	metrics   *metrics.Metrics
	session   *session.Manager
	client    *client.Client
	nav       *terminalNavigator
	unsub     func()
}

// terminalNavigator stands in for the login screen: it tells the user to
// log in again, once per process.
type terminalNavigator struct {
	profile string

	mu       sync.Mutex
	location string
}

func (n *terminalNavigator) Location() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.location
}

func (n *terminalNavigator) RedirectToLogin() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.location = session.LoginPath
	if n.profile != "" && n.profile != "default" {
		output.Warn("Faça login novamente: compras login --profile %s", n.profile)
		return
	}
	output.Warn("Faça login novamente: compras login")
}

var sessionSubjects = map[session.EventType]string{
	session.EventLogin:     events.SubjectSessionLogin,
	session.EventLogout:    events.SubjectSessionLogout,
	session.EventRefreshed: events.SubjectSessionRefreshed,
	session.EventExpired:   events.SubjectSessionExpired,
}

// openApp wires storage, events, metrics, the session manager and the API
// client for the selected profile and restores any persisted session.
func openApp(cmd *cobra.Command) (*app, error) {
	ctx := cmd.Context()
	name := cfg.ProfileName(profileName)

	store, err := storage.Open(ctx, cfg.StorageOptions(name))
	if err != nil {
		return nil, err
	}

	publisher, err := events.Open(cfg.Events.NATSURL, logger.Logger)
	if err != nil {
		// Event delivery is optional; the command still runs.
		logger.WarnContext(ctx, "event publishing disabled", logging.Error(err))
		publisher = events.Noop{}
	}

	a := &app{
		profile:   name,
		store:     store,
		publisher: publisher,
		metrics:   metrics.New(),
		nav:       &terminalNavigator{profile: name},
	}
	a.session = session.NewManager(session.Config{
		BaseURL:   cfg.APIURL(name),
		Timeout:   cfg.HTTP.Timeout,
		Storage:   session.NewAuthStorage(store),
		Navigator: a.nav,
		Logger:    logger,
		Metrics:   a.metrics,
	})
	a.unsub = a.session.Subscribe(a.forward(ctx))
	a.client = client.New(a.session, client.Options{
		Timeout:   cfg.HTTP.Timeout,
		Publisher: publisher,
		Metrics:   a.metrics,
		Logger:    logger,
	})

	if err := a.session.Restore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// forward republishes session lifecycle events on the broker.
func (a *app) forward(ctx context.Context) func(session.Event) {
	return func(ev session.Event) {
		subject, ok := sessionSubjects[ev.Type]
		if !ok {
			return
		}
		username := ev.Username
		if username == "" && ev.Session != nil && ev.Session.Profile != nil {
			username = ev.Session.Profile.Username
		}
		err := events.Emit(ctx, a.publisher, events.Event{Subject: subject, Username: username, Detail: a.profile})
		if err != nil {
			logger.WarnContext(ctx, "failed to publish session event", logging.Error(err))
		}
	}
}

// Close flushes metrics and releases the broker and store connections.
func (a *app) Close() {
	if a.unsub != nil {
		a.unsub()
	}
	if path := cfg.Metrics.Textfile; path != "" {
		if err := a.metrics.WriteTextfile(path); err != nil {
			logger.Warn("failed to write metrics textfile", logging.Error(err))
		}
	}
	if err := a.publisher.Close(); err != nil {
		logger.Warn("failed to close event publisher", logging.Error(err))
	}
	if c, ok := a.store.(io.Closer); ok {
		c.Close()
	}
}

// requireSession fails early when no session is stored for the profile.
func (a *app) requireSession() error {
	if a.session.Authenticated() {
		return nil
	}
	return errNotLoggedIn
}
