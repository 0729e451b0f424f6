package cmd

import (
	"fmt"

	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/config"
	"github.com/spf13/cobra"
)

var (
	flagLinkDomain  string
	flagLinkEnvFile string
)

var linkCmd = &cobra.Command{
	Use:   "link <room|link>",
	Short: "Print the shareable link for a room",
	Long: `Print the canonical link for a room, the one the browser client opens.

Examples:
  voicechat link lobby
  voicechat link lobby --domain chat.example.com`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(config.Options{
			EnvFile:  flagLinkEnvFile,
			Domain:   flagLinkDomain,
			SkipAuth: true,
		})
		if err != nil {
			return err
		}
		// Only the argument counts here, not a stored room.
		cfg.Room = ""

		target, err := ResolveRoom(cfg, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), target.Link)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(linkCmd)

	linkCmd.Flags().StringVarP(&flagLinkDomain, "domain", "d", "", "Site domain")
	linkCmd.Flags().StringVar(&flagLinkEnvFile, "env-file", "", "Read environment variables from this file (default ./.env)")
}
