package utils

import (
	"fmt"
	"github.com/notargets/gocca"
	"github.com/rs/zerolog/log"
	"os"
)

// DeviceEnv names the environment variable that overrides the test device
// properties, e.g. BATCHKERNEL_DEVICE='{"mode": "CUDA", "device_id": 0}'
const DeviceEnv = "BATCHKERNEL_DEVICE"

// NewDevice opens an OCCA device from a JSON property string
func NewDevice(props string) (*gocca.OCCADevice, error) {
	if props == "" {
		props = `{"mode": "Serial"}`
	}
	device, err := gocca.NewDevice(props)
	if err != nil {
		return nil, fmt.Errorf("failed to create device %s: %w", props, err)
	}
	return device, nil
}

// CreateTestDevice creates a Device for testing, preferring parallel backends
func CreateTestDevice() *gocca.OCCADevice {
	backends := []string{
		`{"mode": "OpenMP"}`,
		`{"mode": "CUDA", "device_id": 0}`,
		`{"mode": "Serial"}`,
	}
	if props := os.Getenv(DeviceEnv); props != "" {
		backends = append([]string{props}, backends...)
	}

	for _, props := range backends {
		device, err := NewDevice(props)
		if err == nil {
			log.Debug().Str("mode", device.Mode()).Msg("created test device")
			return device
		}
	}

	// Should not reach here
	panic("Failed to create any Device")
}
