package main

import (
	"github.com/Kadoshita/SkyWayMultiVoiceChat/cmd"
	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/logging"
)

func main() {
	logging.Init()
	cmd.Execute()
}
