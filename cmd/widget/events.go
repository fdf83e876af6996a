package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/companin/widget/internal/model"
	natsclient "github.com/companin/widget/internal/nats"
)

func newEventsCommand(load configLoader) *cobra.Command {
	var clientID, assistantID string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail widget lifecycle events for one assistant",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			defer log.Sync()
			if cfg.NATSURL == "" {
				return errors.New("NATS_URL is required to tail events")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			nc, err := natsclient.Connect(ctx, natsConfig(cfg), log)
			if err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}
			defer nc.Close()

			filter := natsclient.AssistantFilter(clientID, assistantID)
			log.Info("tailing widget events", zap.String("filter", filter))

			enc := json.NewEncoder(cmd.OutOrStdout())
			err = natsclient.NewStreamManager(nc).Tail(ctx, filter, func(event model.WidgetEvent) error {
				return enc.Encode(event)
			})
			if err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&clientID, "client", "", "client id")
	cmd.Flags().StringVar(&assistantID, "assistant", "", "assistant id")
	cmd.MarkFlagRequired("client")
	cmd.MarkFlagRequired("assistant")
	return cmd
}
