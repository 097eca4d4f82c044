package di

import (
	"context"
	"io"
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"
	gmailv1 "google.golang.org/api/gmail/v1"

	"gmailsorter/internal/config"
	"gmailsorter/internal/gmail"
	"gmailsorter/internal/logging"
	"gmailsorter/internal/sorter"
	"gmailsorter/internal/store"
)

// Params carries what the container cannot build itself.
type Params struct {
	Context context.Context
	Config  *config.Config
	Prompt  io.Writer // OAuth consent instructions
	Input   io.Reader // pasted auth code
}

// BuildContainer registers every component. Nothing is constructed until a
// caller invokes a function that needs it, so commands that only touch the
// rule table never trigger Gmail authentication.
func BuildContainer(p Params) (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(func() *config.Config { return p.Config }); err != nil {
		return nil, err
	}

	// Register cleanup registry
	if err := container.Provide(func() *Closers { return &Closers{} }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(cfg *config.Config, closers *Closers) (*zap.Logger, error) {
		logger, err := logging.InitLogger(cfg)
		if err != nil {
			return nil, err
		}
		// Sync on a terminal stderr fails with EINVAL; nothing to report.
		closers.Add(func() error {
			_ = logger.Sync()
			return nil
		})
		return logger, nil
	}); err != nil {
		return nil, err
	}

	// Register rule table and run history
	if err := container.Provide(func(cfg *config.Config, closers *Closers) (*store.SQLiteStore, error) {
		st, err := store.NewSQLiteStore(cfg.DBPath())
		if err != nil {
			return nil, err
		}
		closers.Add(st.Close)
		return st, nil
	}); err != nil {
		return nil, err
	}

	// Register authenticated Gmail service
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (*gmailv1.Service, error) {
		timeout, err := time.ParseDuration(cfg.GetString("gmail.redirect_timeout"))
		if err != nil {
			timeout = 0
		}
		return gmail.NewService(p.Context, gmail.AuthConfig{
			ConfigDir:       cfg.ConfigDir(),
			RedirectTimeout: timeout,
			Prompt:          p.Prompt,
			Input:           p.Input,
			OpenBrowser:     cfg.GetBool("gmail.open_browser"),
		}, logger)
	}); err != nil {
		return nil, err
	}

	// Register mailbox
	if err := container.Provide(func(svc *gmailv1.Service, cfg *config.Config, logger *zap.Logger) *gmail.Mailbox {
		return gmail.NewMailbox(svc, gmail.Options{
			User:        cfg.GetString("gmail.user"),
			InboxLabel:  cfg.GetString("gmail.inbox_label"),
			PageSize:    int64(cfg.GetInt("gmail.page_size")),
			MaxMessages: cfg.GetInt("gmail.max_messages"),
		}, logger.Named("gmail"))
	}); err != nil {
		return nil, err
	}

	// Register cleanup service
	if err := container.Provide(func(mb *gmail.Mailbox, st *store.SQLiteStore, cfg *config.Config, logger *zap.Logger) *sorter.Service {
		opts := []sorter.Option{
			sorter.WithServiceDryRun(cfg.GetBool("run.dry_run")),
			sorter.WithServiceInboxLabel(cfg.GetString("gmail.inbox_label")),
		}
		if cfg.GetBool("run.record_history") {
			opts = append(opts, sorter.WithRecorder(st))
		}
		return sorter.NewService(mb, st, logger.Named("sorter"), opts...)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// Closers collects release functions of constructed components.
type Closers struct {
	fns []func() error
}

// Add registers fn to run on Close.
func (c *Closers) Add(fn func() error) {
	c.fns = append(c.fns, fn)
}

// Close releases whatever the container has built, newest first. Only the
// first error is returned.
func Close(container *dig.Container) error {
	var first error
	err := container.Invoke(func(c *Closers) {
		for i := len(c.fns) - 1; i >= 0; i-- {
			if err := c.fns[i](); err != nil && first == nil {
				first = err
			}
		}
		c.fns = nil
	})
	if err != nil {
		return err
	}
	return first
}
