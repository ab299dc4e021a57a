package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/promptguild/promptguild/promptservice"
)

func main() {
	if err := promptservice.Run(); err != nil {
		log.Error().Err(err).Msg("prompt-service exited with error")
		os.Exit(1)
	}
}
