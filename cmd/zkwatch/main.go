// Command zkwatch connects to the configured zookeeper ensembles and logs
// changes of nodes and server set members until it is interrupted.
package main

import (
	"os"

	"github.com/rs/zerolog/log"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Error().Err(err).Msg("zkwatch failed")
		os.Exit(1)
	}
}
