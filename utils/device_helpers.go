package utils

import (
	"fmt"

	"github.com/notargets/gocca"
	"go.uber.org/zap"
)

// fallbackBackends are tried in order when no device properties are given.
var fallbackBackends = []string{
	`{"mode": "OpenMP"}`,
	`{"mode": "CUDA", "device_id": 0}`,
	`{"mode": "Serial"}`,
}

// CreateDevice opens the device described by props, or the first available
// parallel backend when props is empty.
func CreateDevice(props string, logger *zap.Logger) (*gocca.OCCADevice, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	backends := fallbackBackends
	if props != "" {
		backends = []string{props}
	}
	var lastErr error
	for _, p := range backends {
		device, err := gocca.NewDevice(p)
		if err == nil {
			logger.Info("created device", zap.String("mode", device.Mode()))
			return device, nil
		}
		logger.Debug("device unavailable", zap.String("props", p), zap.Error(err))
		lastErr = err
	}
	return nil, fmt.Errorf("no OCCA device available: %w", lastErr)
}

// CreateTestDevice creates a Device for testing, preferring parallel backends
func CreateTestDevice() *gocca.OCCADevice {
	device, err := CreateDevice("", nil)
	if err != nil {
		// Serial is always built into OCCA
		panic(err)
	}
	fmt.Printf("Created %s Device\n", device.Mode())
	return device
}
