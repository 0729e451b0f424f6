package device

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstraintsWithDevice(t *testing.T) {
	got := Constraints(Preference{InputDeviceID: "cam1"})

	assert.Equal(t, Audio{SampleSize: 16, EchoCancellation: true, DeviceID: "cam1"}, got)
	assert.True(t, got.HasDevice())
}

func TestConstraintsWithoutDeviceOmitsID(t *testing.T) {
	got := Constraints(Preference{})

	assert.False(t, got.HasDevice())

	raw, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"sampleSize":16,"echoCancellation":true}`, string(raw))
}
