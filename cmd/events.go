/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/admitportal/apiserver/config"
	"github.com/admitportal/apiserver/internal/mq"
	"github.com/admitportal/apiserver/internal/services"
	"github.com/spf13/cobra"
)

// eventsCmd drains the event channel of an external broker into the log.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Log portal events from the message broker",
	Long: `Subscribes to MQ_CHANNEL on the configured broker and writes every
portal event (messages sent and replied, documents uploaded) to the log.
Usage:

	MQ_BACKEND=rabbitmq apiserver events

The memory broker lives inside the server process, which logs its own
events; this command needs rabbitmq or pubsub.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log := newLogger(cfg)

		switch cfg.MQ.Backend {
		case "", "none":
			return errors.New("MQ_BACKEND is none; there are no events to read")
		case "memory":
			return errors.New("the memory broker is only reachable inside the server process")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		queue, err := mq.FromConfig(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		defer queue.Close()

		log.Info(ctx, "consuming events", "backend", cfg.MQ.Backend, "channel", cfg.MQ.Channel)
		notifier := services.NewNotifier(queue, cfg.MQ.Channel, log)
		if err := notifier.Consume(ctx, services.LogEvent(log)); err != nil {
			return fmt.Errorf("consuming %s: %w", cfg.MQ.Channel, err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
}
