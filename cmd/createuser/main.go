// Command createuser registers an account from the command line using the
// same username and password rules as the registration form.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"tracker/internal/auth"
	"tracker/internal/config"
	"tracker/internal/logging"
	"tracker/internal/models"
	"tracker/internal/storage/sqlite"
)

func main() {
	cfg, err := config.LoadOffline()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	dbFlag := flag.String("db", cfg.DBPath, "Path to sqlite database file")
	username := flag.String("username", "", "Username for the new account")
	flag.Parse()

	password := os.Getenv("TRACKER_NEW_PASSWORD")
	if *username == "" || password == "" {
		fmt.Fprintln(os.Stderr, "usage: TRACKER_NEW_PASSWORD=... createuser -username NAME [-db PATH]")
		os.Exit(2)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	store, err := sqlite.Open(*dbFlag, logger)
	if err != nil {
		logger.Error("unable to open database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	svc, err := auth.NewService(store, auth.Options{
		Secret:     []byte(cfg.SessionSecret),
		SessionTTL: cfg.SessionTTL,
		BcryptCost: cfg.BcryptCost,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("unable to start auth service", slog.String("error", err.Error()))
		os.Exit(1)
	}

	user, err := svc.Register(context.Background(), auth.RegisterInput{
		Username:        *username,
		Password:        password,
		PasswordConfirm: password,
	})
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		fields := make([]string, 0, len(verr.Fields))
		for f := range verr.Fields {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			fmt.Fprintf(os.Stderr, "%s: %s\n", f, verr.Fields[f])
		}
		os.Exit(1)
	}
	if err != nil {
		logger.Error("create user failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	fmt.Printf("user created id=%d username=%s\n", user.ID, user.Username)
}
