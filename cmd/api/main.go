package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"neurocare.org/internal/auth"
	"neurocare.org/internal/httpapi"
	"neurocare.org/internal/mail"
	"neurocare.org/internal/obs"
	"neurocare.org/internal/store/memory"
	"neurocare.org/internal/store/mongostore"
	"neurocare.org/internal/store/pg"
	"neurocare.org/internal/store/redisstore"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	secret := os.Getenv("NEUROCARE_AUTH_SECRET")
	if secret == "" {
		log.Fatal("NEUROCARE_AUTH_SECRET is required")
	}
	tokens, err := auth.NewTokenService([]byte(secret))
	if err != nil {
		log.Fatalf("token service: %v", err)
	}

	ctx := context.Background()

	store, db, closeStore, err := openStore(ctx)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer closeStore()

	revoked := openRevocationList()
	mailer, err := openMailer()
	if err != nil {
		log.Fatalf("mailer: %v", err)
	}

	svc, err := auth.NewService(store, tokens, revoked, mailer)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, svc)

	addr := os.Getenv("NEUROCARE_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting neurocare-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)
	log.Println("Stopped")
}

// openStore selects the user store backend: Mongo when NEUROCARE_MONGO_URI is
// set, Postgres when NEUROCARE_PG_DSN is set, in-memory otherwise. The
// returned *sql.DB is non-nil only for Postgres so /readyz can ping it.
func openStore(ctx context.Context) (auth.UserStore, *sql.DB, func(), error) {
	if uri := os.Getenv("NEUROCARE_MONGO_URI"); uri != "" {
		dbName := os.Getenv("NEUROCARE_MONGO_DB")
		if dbName == "" {
			dbName = "neurocare"
		}
		openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		store, err := mongostore.Open(openCtx, uri, dbName)
		if err != nil {
			return nil, nil, nil, err
		}
		log.Printf("user store: mongodb (%s)", dbName)
		return store, nil, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = store.Close(closeCtx)
		}, nil
	}

	if dsn := os.Getenv("NEUROCARE_PG_DSN"); dsn != "" {
		store, err := pg.Open(dsn)
		if err != nil {
			return nil, nil, nil, err
		}
		log.Print("user store: postgres")
		return store, store.DB(), func() { _ = store.Close() }, nil
	}

	log.Print("user store: in-memory")
	return memory.New(), nil, func() {}, nil
}

// openRevocationList backs the revocation registry with Redis when
// NEUROCARE_REDIS_ADDR is set; entries expire together with the tokens they
// block. Falls back to the in-process list.
func openRevocationList() auth.RevocationList {
	addr := os.Getenv("NEUROCARE_REDIS_ADDR")
	if addr == "" {
		log.Print("revocation list: in-memory")
		return auth.NewMemoryRevocationList()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("NEUROCARE_REDIS_PASSWORD"),
	})
	log.Printf("revocation list: redis (%s)", addr)
	return redisstore.New(client, auth.DefaultTokenTTL)
}

// openMailer selects the reset-code delivery channel: SendGrid, then SMTP,
// then a log-only sender for development.
func openMailer() (auth.Mailer, error) {
	var sender mail.Sender

	switch {
	case os.Getenv("NEUROCARE_SENDGRID_API_KEY") != "":
		s, err := mail.NewSendGridSender(
			os.Getenv("NEUROCARE_SENDGRID_API_KEY"),
			os.Getenv("NEUROCARE_MAIL_FROM_NAME"),
			os.Getenv("NEUROCARE_MAIL_FROM"),
		)
		if err != nil {
			return nil, err
		}
		log.Print("mailer: sendgrid")
		sender = s
	case os.Getenv("NEUROCARE_SMTP_HOST") != "":
		s, err := mail.NewSMTPSender(mail.SMTPConfig{
			Host:     os.Getenv("NEUROCARE_SMTP_HOST"),
			Port:     os.Getenv("NEUROCARE_SMTP_PORT"),
			Username: os.Getenv("NEUROCARE_SMTP_USERNAME"),
			Password: os.Getenv("NEUROCARE_SMTP_PASSWORD"),
			From:     os.Getenv("NEUROCARE_MAIL_FROM"),
		})
		if err != nil {
			return nil, err
		}
		log.Print("mailer: smtp")
		sender = s
	default:
		log.Print("mailer: log-only (set NEUROCARE_SENDGRID_API_KEY or NEUROCARE_SMTP_HOST)")
		sender = mail.LogSender{}
	}

	return mail.NewOTPMailer(sender)
}
