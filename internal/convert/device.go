package convert

import (
	"os"
	"strings"

	"github.com/rs/zerolog"

	"server/internal/engine"
)

// DeviceEnvVar forces the compute backend regardless of what hardware is
// present. Recognized values: cuda, gpu, cpu (case-insensitive). Anything
// else is ignored.
const DeviceEnvVar = "PAPERREADER_DEVICE"

// AcceleratorProbe reports whether an accelerator runtime is usable. A probe
// must never fail loudly; returning false is the only failure mode.
type AcceleratorProbe func() bool

// DeviceSelector resolves which compute backend a converter should run its
// model on. Resolution is recomputed per converter construction unless the
// caller pins a device explicitly.
type DeviceSelector struct {
	Probe  AcceleratorProbe
	Getenv func(string) string
	Log    zerolog.Logger
}

// Resolve applies, in priority order: the environment override, the
// accelerator probe, and finally the CPU fallback. It has no side effects
// beyond logging.
func (s DeviceSelector) Resolve() engine.Device {
	getenv := s.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	switch strings.ToLower(strings.TrimSpace(getenv(DeviceEnvVar))) {
	case "cuda", "gpu":
		s.Log.Info().Str("source", "env").Str("device", string(engine.DeviceCUDA)).Msg("device forced")
		return engine.DeviceCUDA
	case "cpu":
		s.Log.Info().Str("source", "env").Str("device", string(engine.DeviceCPU)).Msg("device forced")
		return engine.DeviceCPU
	}

	probe := s.Probe
	if probe == nil {
		probe = DefaultAcceleratorProbe
	}
	if probe() {
		s.Log.Info().Str("device", string(engine.DeviceCUDA)).Msg("accelerator detected")
		return engine.DeviceCUDA
	}

	s.Log.Info().Str("device", string(engine.DeviceCPU)).Msg("no accelerator, using cpu")
	return engine.DeviceCPU
}

// DefaultAcceleratorProbe checks the NVIDIA kernel driver's proc interface
// for at least one GPU. Probing failures count as unavailable.
func DefaultAcceleratorProbe() bool {
	entries, err := os.ReadDir("/proc/driver/nvidia/gpus")
	if err != nil {
		return false
	}
	return len(entries) > 0
}
