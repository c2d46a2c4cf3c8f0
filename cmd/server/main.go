package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/welldanyogia/webrana-mail-digest/internal/api"
	"github.com/welldanyogia/webrana-mail-digest/internal/api/handlers"
	"github.com/welldanyogia/webrana-mail-digest/internal/config"
	"github.com/welldanyogia/webrana-mail-digest/internal/database"
	"github.com/welldanyogia/webrana-mail-digest/internal/logger"
	"github.com/welldanyogia/webrana-mail-digest/internal/mailbox"
	"github.com/welldanyogia/webrana-mail-digest/internal/mailer"
	"github.com/welldanyogia/webrana-mail-digest/internal/metrics"
	"github.com/welldanyogia/webrana-mail-digest/internal/pipeline"
	"github.com/welldanyogia/webrana-mail-digest/internal/report"
	"github.com/welldanyogia/webrana-mail-digest/internal/repository"
	"github.com/welldanyogia/webrana-mail-digest/internal/scheduler"
	"github.com/welldanyogia/webrana-mail-digest/internal/smtpsink"
	"github.com/welldanyogia/webrana-mail-digest/internal/storage"
	"github.com/welldanyogia/webrana-mail-digest/internal/summarizer"
	"github.com/welldanyogia/webrana-mail-digest/internal/tokenstore"
	"github.com/welldanyogia/webrana-mail-digest/internal/websocket"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg, err := config.LoadWithValidation()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(os.Stdout, cfg.AppEnv, cfg.LogLevel)
	slog.SetDefault(log)

	slog.Info("Starting Mail Digest Server...")
	cfg.LogConfig(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("Server stopped")
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(database.Options{
		Driver:     cfg.DatabaseDriver,
		DSN:        cfg.DatabaseURL,
		Production: cfg.IsProduction(),
	})
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		return err
	}

	runs := repository.NewReportRunRepository(db)
	if n, err := runs.FailStale(ctx, "interrupted by server restart", time.Now().UTC()); err != nil {
		log.Warn("failed to close stale report runs", slog.String("error", err.Error()))
	} else if n > 0 {
		log.Warn("closed stale report runs", slog.Int64("count", n))
	}

	reader, consent, err := newMailboxReader(cfg, log)
	if err != nil {
		return err
	}

	llm := summarizer.NewGroqClient(summarizer.GroqOptions{
		APIKey:            cfg.GroqAPIKey,
		BaseURL:           cfg.GroqBaseURL,
		Model:             cfg.GroqModel,
		Temperature:       cfg.LLMTemperature,
		MaxTokens:         cfg.LLMMaxTokens,
		Timeout:           cfg.LLMTimeout,
		RequestsPerMinute: cfg.LLMRequestsPerMinute,
		Logger:            log,
	})

	renderer, err := report.NewRenderer()
	if err != nil {
		return fmt.Errorf("failed to load report templates: %w", err)
	}

	smtpOpts := mailer.Options{
		Host:     cfg.SMTPServer,
		Port:     cfg.SMTPPort,
		Security: cfg.SMTPSecurity,
		Username: cfg.EmailAddress,
		Password: cfg.EmailPass,
		FromName: "Mail Digest",
		Timeout:  cfg.SMTPTimeout,
		Renderer: renderer,
		Logger:   log,
	}

	var sink *smtpsink.Sink
	if cfg.SMTPSinkEnabled {
		sink, err = smtpsink.Start(smtpsink.Options{Addr: cfg.SMTPSinkAddr, Logger: log})
		if err != nil {
			return err
		}
		defer sink.Close()

		// Point the sender at the sink; it accepts any credentials
		smtpOpts.Host, smtpOpts.Port = sink.HostPort()
		smtpOpts.Security = mailer.SecurityNone
		if smtpOpts.Username == "" {
			smtpOpts.Username = "digest@localhost"
		}
		if smtpOpts.Password == "" {
			smtpOpts.Password = "sink"
		}
		log.Warn("outgoing mail is captured by the SMTP sink", slog.String("addr", sink.Addr()))
	}
	sender := mailer.NewSMTPSender(smtpOpts)

	archive, err := storage.NewLocalArchive(cfg.ReportArchivePath)
	if err != nil {
		return err
	}

	hub := websocket.NewHub(log)
	go hub.Run(ctx)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(metrics.DefaultNamespace, registry)

	p, err := pipeline.New(pipeline.Config{
		Recipient:     cfg.ReportRecipient,
		Window:        cfg.ReportWindow,
		Concurrency:   cfg.SummaryConcurrency,
		FailurePolicy: cfg.FetchFailurePolicy,
		Timeout:       cfg.ReportRunTimeout,
		Retention:     cfg.ReportRetention,
	}, pipeline.Deps{
		Reader:     reader,
		Summarizer: llm,
		Sender:     sender,
		Runs:       runs,
		Notifier:   hub,
		Metrics:    m,
		Archive:    archive,
		Renderer:   renderer,
		Logger:     log,
	})
	if err != nil {
		return err
	}

	sched := scheduler.New(p, scheduler.Config{
		ReportInterval: cfg.ReportInterval,
		Debug:          cfg.Debug,
		DebugInterval:  cfg.DebugReportInterval,
	}, log)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	routerCfg := &api.RouterConfig{
		DB:             db,
		Logger:         log,
		Runner:         p,
		RunState:       p,
		Scheduler:      sched,
		Sender:         sender,
		Summarizer:     llm,
		Runs:           runs,
		Archive:        archive,
		Hub:            hub,
		Metrics:        m,
		APIKey:         cfg.APIKey,
		AllowedOrigins: cfg.Origins(),
		Production:     cfg.IsProduction(),
		RateLimit:      cfg.RateLimitRequests,
		RateBurst:      cfg.RateLimitBurst,
	}
	if sink != nil {
		routerCfg.Sink = sink
	}
	if consent != nil {
		routerCfg.GmailConsent = consent
	}
	e := api.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	sched.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if sink != nil {
		if err := sink.Shutdown(shutdownCtx); err != nil {
			log.Warn("SMTP sink shutdown failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

// newMailboxReader builds the configured reader. For Gmail it also returns the
// consent flow; missing credentials leave the reader wired but failing every fetch.
func newMailboxReader(cfg *config.Config, log *slog.Logger) (mailbox.Reader, handlers.GmailConsent, error) {
	if cfg.MailboxProvider == config.ProviderIMAP {
		return mailbox.NewIMAPReader(mailbox.IMAPOptions{
			Host:       cfg.IMAPServer,
			Port:       cfg.IMAPPort,
			Username:   cfg.IMAPUsername,
			Password:   cfg.IMAPPassword,
			Mailbox:    cfg.IMAPMailbox,
			TLS:        cfg.IMAPTLS,
			MaxResults: cfg.FetchMaxResults,
			Logger:     log,
		}), nil, nil
	}

	store, err := tokenstore.New(tokenstore.Options{
		Kind:           cfg.TokenStore,
		FilePath:       cfg.GmailTokenPath,
		KeyringService: cfg.KeyringService,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open token store: %w", err)
	}

	gmailOpts := mailbox.GmailOptions{MaxResults: int64(cfg.FetchMaxResults), Logger: log}

	oauthCfg, err := mailbox.LoadGmailOAuthConfig(cfg.GmailCredentialsPath, cfg.GmailRedirectURL)
	if err != nil {
		log.Warn("gmail reader unavailable", slog.String("error", err.Error()))
		return mailbox.NewGmailReader(mailbox.UnavailableSource(err), gmailOpts), nil, nil
	}

	auth := mailbox.NewGmailAuthenticator(oauthCfg, store, log)
	return mailbox.NewGmailReader(auth, gmailOpts), auth, nil
}
