package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"ksl-notify/config"
	"ksl-notify/mailer"
	"ksl-notify/scraper/ksl"
	"ksl-notify/services"
	"ksl-notify/storage"
	"ksl-notify/utils"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Close()

	// Interactive fallbacks for anything flags and env left unset.
	if cfg.Email == "" {
		if cfg.Email, err = promptEmail(); err != nil {
			logger.Error("Failed to read email address: %v", err)
			os.Exit(1)
		}
	}
	if cfg.SMTPServer == "" {
		if cfg.SMTPServer, err = mailer.GuessServer(cfg.Email); err != nil {
			logger.Error("%v", err)
			os.Exit(1)
		}
	}
	if cfg.Password == "" {
		if cfg.Password, err = promptPassword(cfg.Email); err != nil {
			logger.Error("Failed to read password: %v", err)
			os.Exit(1)
		}
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}

	m, err := mailer.New(cfg.Email, cfg.Password, cfg.SMTPServer, logger)
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}

	// Prove the credentials work before entering the loop; a rejection
	// here is unrecoverable and must not be retried for hours.
	if err := m.VerifyLogin(); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}

	logger.Info("=== ksl-notify starting ===")
	logger.Info("Config — queries: %d | interval: %dm | engine: %s | alert threshold: %d",
		len(cfg.Queries()), cfg.IntervalMinutes, cfg.Engine, cfg.EmailExceptions*10)

	client := ksl.New(newEngine(cfg, logger), logger)

	archivers, cleanup := newArchivers(cfg, logger)
	defer cleanup()

	acct := services.NewFailureAccountant(
		services.DefaultAccountantConfig(cfg.EmailExceptions), cfg.QueryKeys(), m, logger)
	poller := services.NewPoller(cfg.Queries(), client, m, acct, archivers,
		time.Duration(cfg.IntervalMinutes)*time.Minute, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := poller.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("Shut down on interrupt")
			return
		}
		logger.Error("Poll loop terminated: %v", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) (*utils.Logger, error) {
	var logger *utils.Logger
	if cfg.LogFile != "" {
		var err error
		if logger, err = utils.NewFileLogger(cfg.LogFile); err != nil {
			return nil, err
		}
	} else {
		logger = utils.NewLogger()
	}

	level, err := utils.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)
	return logger, nil
}

func newEngine(cfg *config.Config, logger *utils.Logger) ksl.Engine {
	timeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	if cfg.Engine == "browser" {
		return ksl.NewBrowserEngine(cfg.ChromeBin, timeout, logger)
	}
	return ksl.NewHTTPEngine(timeout, logger)
}

// newArchivers wires up the optional audit sinks. A sink that fails to
// initialise is skipped with a warning; archiving is best-effort and must
// never keep the notifier from starting.
func newArchivers(cfg *config.Config, logger *utils.Logger) ([]services.Archiver, func()) {
	var archivers []services.Archiver
	var writers []storage.ArchiveWriter

	if cfg.ArchiveCSVPath != "" {
		w, err := storage.NewCSVWriter(cfg.ArchiveCSVPath)
		if err != nil {
			logger.Warn("CSV archive disabled: %v", err)
		} else {
			logger.Info("Archiving reported listings to %s", cfg.ArchiveCSVPath)
			archivers = append(archivers, w)
			writers = append(writers, w)
		}
	}

	if cfg.ArchiveToDB {
		w, err := storage.NewPostgresWriter(cfg.DSN(), logger)
		if err != nil {
			logger.Warn("PostgreSQL archive disabled: %v", err)
		} else {
			logger.Info("Archiving reported listings to PostgreSQL (table: reported_listings)")
			archivers = append(archivers, w)
			writers = append(writers, w)
		}
	}

	cleanup := func() {
		for _, w := range writers {
			if err := w.Close(); err != nil {
				logger.Warn("Closing archive writer: %v", err)
			}
		}
	}
	return archivers, cleanup
}

func promptEmail() (string, error) {
	fmt.Print("Enter email address to use: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func promptPassword(email string) (string, error) {
	fmt.Printf("Enter password for sending email from %s: ", email)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pw), nil
}
