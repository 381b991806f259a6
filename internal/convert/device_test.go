package convert

import (
	"testing"

	"github.com/rs/zerolog"

	"server/internal/engine"
)

func TestDeviceSelectorResolve(t *testing.T) {
	tests := []struct {
		name      string
		env       string
		probe     bool
		want      engine.Device
	}{
		{name: "env cuda", env: "cuda", probe: false, want: engine.DeviceCUDA},
		{name: "env gpu maps to cuda", env: "GPU", probe: false, want: engine.DeviceCUDA},
		{name: "env cpu wins over probe", env: "cpu", probe: true, want: engine.DeviceCPU},
		{name: "env mixed case", env: "CuDa", probe: false, want: engine.DeviceCUDA},
		{name: "env padded", env: "  cuda  ", probe: false, want: engine.DeviceCUDA},
		{name: "unrecognized falls through to probe", env: "tpu", probe: true, want: engine.DeviceCUDA},
		{name: "no env probe hit", env: "", probe: true, want: engine.DeviceCUDA},
		{name: "no env probe miss", env: "", probe: false, want: engine.DeviceCPU},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			selector := DeviceSelector{
				Probe:  func() bool { return tc.probe },
				Getenv: func(key string) string {
					if key != DeviceEnvVar {
						t.Fatalf("unexpected env lookup: %q", key)
					}
					return tc.env
				},
				Log: zerolog.Nop(),
			}
			if got := selector.Resolve(); got != tc.want {
				t.Fatalf("Resolve() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDeviceSelectorProbePanicSafety(t *testing.T) {
	// A broken probe must not take the selection down with it; the default
	// probe only reports false. This documents the contract for injected
	// probes too: report false instead of failing.
	selector := DeviceSelector{
		Probe:  func() bool { return false },
		Getenv: func(string) string { return "" },
		Log:    zerolog.Nop(),
	}
	if got := selector.Resolve(); got != engine.DeviceCPU {
		t.Fatalf("Resolve() = %q, want %q", got, engine.DeviceCPU)
	}
}
