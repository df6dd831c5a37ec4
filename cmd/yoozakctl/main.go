// Command yoozakctl runs maintenance tasks against the Yoozak database.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/yoozak/yoozak-backend/pkg/config"
	"github.com/yoozak/yoozak-backend/pkg/database"
	"github.com/yoozak/yoozak-backend/pkg/logger"
	"github.com/yoozak/yoozak-backend/pkg/messaging"
)

const serviceName = "yoozakctl"

var (
	verbose   bool
	withEvent bool
)

var rootCmd = &cobra.Command{
	Use:           "yoozakctl",
	Short:         "Yoozak maintenance commands",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// env holds what every command needs once configuration is loaded
type env struct {
	cfg *config.Config
	log *logger.Logger
	db  *database.DB
	rmq *messaging.RabbitMQ
}

func (e *env) Close() {
	if e.rmq != nil {
		e.rmq.Close()
	}
	e.db.Close()
}

// setup loads configuration and opens the database. The broker is only
// dialled when --events is set.
func setup() (*env, error) {
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	log := logger.New(serviceName, cfg.Server.Environment)
	if !verbose {
		log = log.AtLeast(zerolog.WarnLevel)
	}

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	e := &env{cfg: cfg, log: log, db: db}
	if withEvent {
		rmq, err := messaging.New(&cfg.RabbitMQ, log)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("connect RabbitMQ: %w", err)
		}
		e.rmq = rmq
	}
	return e, nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable info logging")
	rootCmd.PersistentFlags().BoolVar(&withEvent, "events", false, "Publish domain events to RabbitMQ")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(createAdminCmd)
	rootCmd.AddCommand(hashPasswordCmd)
	rootCmd.AddCommand(importOrdersCmd)
	rootCmd.AddCommand(exportStockCmd)
	rootCmd.AddCommand(recomputePricesCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
