package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/ui"
	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/version"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "voicechat",
	Short:   "Group voice chat over a peer-to-peer WebRTC mesh",
	Long:    `voicechat joins a named voice-chat room from the terminal. Audio flows directly between every member of the room, and a small text chat runs alongside it. Rooms are shared with the browser client through links of the form <site>/chat?room=<name>.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}
