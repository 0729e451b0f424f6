package mesh

import (
	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/config"
	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/netutil"
	pion "github.com/pion/webrtc/v4"
)

// ICEConfiguration builds the pion configuration for one peer connection.
func ICEConfiguration(cfg *config.Config, relayHint func() bool) pion.Configuration {
	iceServers := []pion.ICEServer{{URLs: cfg.GetSTUNServers()}}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, pion.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	// Relay only when TURN is available; otherwise try direct first.
	policy := pion.ICETransportPolicyAll
	if turnServers != nil && (cfg.ForceRelay || relayHint()) {
		policy = pion.ICETransportPolicyRelay
	}

	return pion.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	}
}

func newPeerConnection(cfg *config.Config) (*pion.PeerConnection, error) {
	pc, err := pion.NewPeerConnection(ICEConfiguration(cfg, netutil.ShouldForceRelay))
	if err != nil {
		return nil, NewError("create peer connection", err)
	}
	return pc, nil
}
