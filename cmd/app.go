package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/planperfect/planperfect/internal/api"
	"github.com/planperfect/planperfect/internal/config"
	"github.com/planperfect/planperfect/internal/notify"
	"github.com/planperfect/planperfect/internal/preview"
	"github.com/planperfect/planperfect/internal/realtime"
	"github.com/planperfect/planperfect/internal/server"
	"github.com/planperfect/planperfect/internal/session"
	"github.com/planperfect/planperfect/internal/ui"
	"github.com/planperfect/planperfect/types"
)

// appOptions picks which long-lived services a command needs.
type appOptions struct {
	// Interactive routes toasts into a bubbletea program instead of stderr.
	Interactive bool
	// Preview starts the loopback preview server.
	Preview bool
	// Realtime connects the configured realtime driver.
	Realtime bool
}

// App is the dependency graph shared by the commands. Every state holder is
// created here once and handed to the components that need it.
type App struct {
	Config   *types.AppConfig
	API      *api.Client
	Notifier *notify.Service
	Toasts   *ui.ProgramSink
	Users    *session.UserStore
	Auth     *session.Auth
	Saved    *session.RecommendationsFlag
	Previews *preview.Registry
	Realtime realtime.Store

	server    *server.Server
	serverWG  sync.WaitGroup
	serverErr chan error
}

// newApp builds the graph from the loaded configuration.
func newApp(ctx context.Context, opts appOptions) (*App, error) {
	cfg := GetConfig()

	client, err := api.NewClient(api.Config{
		BaseURL: cfg.API.BaseURL,
		APIKey:  cfg.API.Key,
		Timeout: time.Duration(cfg.API.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("create api client: %w", err)
	}

	a := &App{
		Config:   cfg,
		API:      client,
		Saved:    session.NewRecommendationsFlag(),
		Previews: preview.NewRegistry(""),
	}

	sinks := []notify.Sink{notify.LogSink{}}
	if opts.Interactive {
		a.Toasts = &ui.ProgramSink{}
		sinks = append(sinks, a.Toasts)
	} else if !isJSON() {
		sinks = append(sinks, ui.NewWriterSink(os.Stderr))
	}
	a.Notifier = notify.New(sinks...)

	users, err := session.NewUserStore(cfg.Data.Dir)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	a.Users = users
	a.Auth = session.NewAuth(users)
	if err := a.Auth.Restore(); err != nil {
		slog.Warn("could not restore session", "error", err)
	}

	if opts.Preview {
		if err := a.startPreviewServer(); err != nil {
			a.Close()
			return nil, err
		}
	}

	if opts.Realtime {
		store, err := openRealtime(ctx, cfg.Realtime)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Realtime = store
	}

	return a, nil
}

func (a *App) startPreviewServer() error {
	a.server = server.New(a.Config.Preview.Addr, a.Previews)
	baseURL, err := a.server.Listen()
	if err != nil {
		return fmt.Errorf("start preview server: %w", err)
	}
	a.Previews.SetBaseURL(baseURL)
	a.serverErr = make(chan error, 1)
	a.server.Start(&a.serverWG, a.serverErr)
	return nil
}

// openRealtime connects the configured driver.
func openRealtime(ctx context.Context, rc types.RealtimeConfig) (realtime.Store, error) {
	switch rc.Driver {
	case config.RealtimeFirebase:
		return realtime.NewFirebase(rc.URL, rc.AuthToken, &http.Client{}), nil
	case config.RealtimeNATS:
		url := rc.URL
		if url == "" {
			url = defaultNATSURL
		}
		store, err := realtime.NewNATS(ctx, url, rc.Bucket)
		if err != nil {
			return nil, fmt.Errorf("open realtime store: %w", err)
		}
		return store, nil
	default:
		return realtime.NewMemory(), nil
	}
}

// defaultNATSURL matches nats.DefaultURL.
const defaultNATSURL = "nats://127.0.0.1:4222"

// RequireUser is the signed-in user or session.ErrNotLoggedIn.
func (a *App) RequireUser() (session.User, error) {
	return a.Auth.RequireUser()
}

// Close releases everything newApp opened, in reverse order.
func (a *App) Close() {
	if a.Realtime != nil {
		if err := a.Realtime.Close(); err != nil {
			slog.Debug("close realtime store", "error", err)
		}
	}
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Debug("preview server shutdown", "error", err)
		}
		cancel()
		a.serverWG.Wait()
		select {
		case err := <-a.serverErr:
			slog.Warn("preview server stopped", "error", err)
		default:
		}
	}
	if st := a.Previews.Stats(); st.Created != st.Revoked {
		slog.Debug("previews still live at exit", "created", st.Created, "revoked", st.Revoked)
	}
	if a.Users != nil {
		if err := a.Users.Close(); err != nil {
			slog.Debug("close session store", "error", err)
		}
	}
}
