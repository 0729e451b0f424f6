package cmd

import (
	"context"

	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/config"
	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/ui"
	"github.com/spf13/cobra"
)

var (
	flagEnvFile   string
	flagAPIKey    string
	flagDomain    string
	flagSTUN      string
	flagTURN      string
	flagTURNUser  string
	flagTURNPass  string
	flagRelay     bool
	flagRoom      string
	flagName      string
	flagDevice    string
	flagRecordDir string
	flagPlain     bool
)

var joinCmd = &cobra.Command{
	Use:     "join [room|link]",
	Aliases: []string{"j"},
	Short:   "Join a voice-chat room",
	Long: `Join a voice-chat room and talk to everyone in it.

The room is taken from --room (or VOICECHAT_ROOM) first, then from the
argument, which may be a plain room name or a link carrying ?room=<name>.

Examples:
  voicechat join lobby --name Alice
  voicechat join "https://chat.example.com/chat?room=lobby"
  voicechat join lobby --device ./greeting.ogg --record-dir ./recordings
  voicechat join lobby --relay --turn turn:relay.example.com --turn-user u --turn-pass p`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var arg string
		if len(args) > 0 {
			arg = args[0]
		}
		return joinRoom(cmd.Context(), arg)
	},
}

func joinRoom(ctx context.Context, arg string) error {
	cfg, err := LoadConfig(config.Options{
		EnvFile:       flagEnvFile,
		APIKey:        flagAPIKey,
		Domain:        flagDomain,
		STUNServer:    flagSTUN,
		TURNServer:    flagTURN,
		TURNUser:      flagTURNUser,
		TURNPass:      flagTURNPass,
		ForceRelay:    flagRelay,
		Room:          flagRoom,
		UserName:      flagName,
		InputDeviceID: flagDevice,
		RecordDir:     flagRecordDir,
	})
	if err != nil {
		return err
	}

	target, err := ResolveRoom(cfg, arg)
	if err != nil {
		if isNoRoom(err) {
			ui.PrintInfo("Usage: voicechat join <room|link>")
		}
		return err
	}
	if target.Replaced {
		ui.PrintInfof("Share this room: %s", target.Link)
	}

	return RunSession(ctx, NewSession(cfg, target.Room), target, flagPlain || !interactive())
}

func init() {
	rootCmd.AddCommand(joinCmd)

	f := joinCmd.Flags()
	f.StringVar(&flagEnvFile, "env-file", "", "Read environment variables from this file (default ./.env)")
	f.StringVarP(&flagAPIKey, "api-key", "k", "", "Signalling service API key")
	f.StringVarP(&flagDomain, "domain", "d", "", "Signalling server domain")
	f.StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	f.StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	f.StringVarP(&flagTURNUser, "turn-user", "u", "", "TURN username")
	f.StringVarP(&flagTURNPass, "turn-pass", "p", "", "TURN password")
	f.BoolVarP(&flagRelay, "relay", "r", false, "Force relay mode")
	f.StringVar(&flagRoom, "room", "", "Room to join, taking precedence over the argument")
	f.StringVarP(&flagName, "name", "n", "", "Name shown to the other members (default: your peer id)")
	f.StringVar(&flagDevice, "device", "", "Audio input: an Ogg/Opus file to loop instead of silence")
	f.StringVar(&flagRecordDir, "record-dir", "", "Record each received stream to this directory")
	f.BoolVar(&flagPlain, "plain", false, "Line-oriented output instead of the interactive screen")
}
