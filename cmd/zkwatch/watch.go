package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/thinker0/go.zkensemble/pkg/zkclient"
)

func watchCommand(root *rootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <path>...",
		Short: "Log data and children changes of nodes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := root.factory.GetClient()
			if err != nil {
				return err
			}

			client.SubscribeConnectionState(func(state zkclient.ConnectionState) {
				log.Info().Str("ensemble", client.ConnectionString()).Stringer("state", state).Msg("connection state changed")
			})

			for _, path := range args {
				if _, err := client.SubscribeDataChange(path, func(change zkclient.DataChange) {
					log.Info().
						Str("path", change.Path).
						Stringer("event", change.Type).
						Bytes("data", change.Data).
						Msg("data changed")
				}); err != nil {
					return fmt.Errorf("unable to watch data of %s: %w", path, err)
				}

				if _, err := client.SubscribeChildrenChange(path, func(change zkclient.ChildrenChange) {
					log.Info().
						Str("path", change.Path).
						Stringer("event", change.Type).
						Strs("children", change.Children).
						Msg("children changed")
				}); err != nil {
					return fmt.Errorf("unable to watch children of %s: %w", path, err)
				}
				log.Info().Str("path", path).Msg("watching")
			}

			waitForSignal()
			return nil
		},
	}
}
