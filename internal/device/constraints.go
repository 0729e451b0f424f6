package device

// Default capture settings requested for every microphone.
const (
	DefaultSampleSize       = 16
	DefaultEchoCancellation = true
)

// Preference is the previously selected audio input.
type Preference struct {
	InputDeviceID string
}

// Audio describes the microphone the caller wants.
type Audio struct {
	SampleSize       int    `json:"sampleSize"`
	EchoCancellation bool   `json:"echoCancellation"`
	DeviceID         string `json:"deviceId,omitempty"`
}

// HasDevice reports whether a specific input was requested.
func (a Audio) HasDevice() bool {
	return a.DeviceID != ""
}

// Constraints builds the capture constraints for pref. Without a device id
// the default input is used.
func Constraints(pref Preference) Audio {
	if pref.InputDeviceID != "" {
		return Audio{
			SampleSize:       DefaultSampleSize,
			EchoCancellation: DefaultEchoCancellation,
			DeviceID:         pref.InputDeviceID,
		}
	}
	return Audio{
		SampleSize:       DefaultSampleSize,
		EchoCancellation: DefaultEchoCancellation,
	}
}
