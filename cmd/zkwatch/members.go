package main

import (
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/thinker0/go.zkensemble/pkg/serversets"
)

func membersCommand(root *rootCommand) *cobra.Command {
	var register string
	var port int

	cmd := &cobra.Command{
		Use:   "members <role> <environment> <service>",
		Short: "Log the alive endpoints of a server set",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := root.factory.GetClient()
			if err != nil {
				return err
			}
			set := serversets.New(args[0], args[1], args[2], client)

			if register != "" {
				ep, err := set.RegisterEndpoint(register, port)
				if err != nil {
					return err
				}
				defer ep.Close()
			}

			watch, err := set.Watch()
			if err != nil {
				return err
			}
			defer watch.Close()

			log.Info().Str("endpoints", strings.Join(watch.Endpoints(), ",")).Msg("current members")
			go func() {
				for range watch.Event() {
					log.Info().
						Str("endpoints", strings.Join(watch.Endpoints(), ",")).
						Int("updates", watch.EventCount()).
						Msg("members changed")
				}
			}()

			waitForSignal()
			return nil
		},
	}
	cmd.Flags().StringVar(&register, "register", "", "also register this host as a member")
	cmd.Flags().IntVar(&port, "port", 8080, "port of the registered member")
	return cmd
}
