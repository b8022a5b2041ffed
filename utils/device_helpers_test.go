package utils

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestNewDevice(t *testing.T) {
	t.Run("DefaultsToSerial", func(t *testing.T) {
		device, err := NewDevice("")
		require.NoError(t, err)
		defer device.Free()
		assert.Equal(t, "Serial", device.Mode())
	})

	t.Run("ExplicitProperties", func(t *testing.T) {
		device, err := NewDevice(`{"mode": "Serial"}`)
		require.NoError(t, err)
		defer device.Free()
		assert.Equal(t, "Serial", device.Mode())
	})
}

func TestCreateTestDevice(t *testing.T) {
	t.Run("EnvironmentOverride", func(t *testing.T) {
		t.Setenv(DeviceEnv, `{"mode": "Serial"}`)
		device := CreateTestDevice()
		defer device.Free()
		assert.Equal(t, "Serial", device.Mode())
	})

	t.Run("Fallback", func(t *testing.T) {
		t.Setenv(DeviceEnv, "")
		device := CreateTestDevice()
		defer device.Free()
		assert.Contains(t, []string{"OpenMP", "CUDA", "Serial"}, device.Mode())
	})
}
