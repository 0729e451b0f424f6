package version

// Version is the current version of the voicechat client.
// This value can be overridden at build time using:
//   go build -ldflags="-X 'github.com/Kadoshita/SkyWayMultiVoiceChat/internal/version.Version=v1.0.0'"
var Version = "dev"
