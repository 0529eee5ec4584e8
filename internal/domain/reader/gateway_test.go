package reader

import (
	"errors"
	"testing"
	"time"

	"github.com/abdrou13-pixel/ReadCard/internal/domain/engine/sim"
	errs "github.com/abdrou13-pixel/ReadCard/internal/platform/errors"
	"github.com/abdrou13-pixel/ReadCard/internal/platform/logging"
)

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	logger, err := logging.New(logging.Config{Level: "error", Dir: t.TempDir(), Filename: "test.log"})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger
}

func TestGatewayOpenConfigured(t *testing.T) {
	eng := sim.New(sim.Script{Devices: []string{"CR-500", "CR-900"}}, testLogger(t))
	g := NewGateway(eng, "", testLogger(t))
	defer g.Close()

	if err := g.OpenConfigured("CR-900"); err != nil {
		t.Fatalf("OpenConfigured: %v", err)
	}
	if got := g.Device().Name(); got != "CR-900" {
		t.Errorf("device name = %q, want CR-900", got)
	}
	if got := g.DeviceName(); got != "CR-900" {
		t.Errorf("remembered name = %q, want CR-900", got)
	}
}

func TestGatewayOpenDefaultsToFirstDevice(t *testing.T) {
	eng := sim.New(sim.Script{Devices: []string{"CR-500", "CR-900"}}, testLogger(t))
	g := NewGateway(eng, "", testLogger(t))
	defer g.Close()

	if err := g.OpenConfigured(""); err != nil {
		t.Fatalf("OpenConfigured: %v", err)
	}
	if got := g.Device().Name(); got != "CR-500" {
		t.Errorf("device name = %q, want first device CR-500", got)
	}
}

func TestGatewayDeviceNotFound(t *testing.T) {
	eng := sim.New(sim.Script{Devices: []string{"CR-500"}}, testLogger(t))
	g := NewGateway(eng, "", testLogger(t))
	defer g.Close()

	err := g.OpenConfigured("NOPE")
	if !errs.IsKind(err, errs.KindDeviceNotFound) {
		t.Errorf("err = %v, want kind device_not_found", err)
	}

	eng.SetScript(sim.Script{})
	if err := g.OpenConfigured(""); !errs.IsKind(err, errs.KindDeviceNotFound) {
		t.Errorf("err with no devices = %v, want kind device_not_found", err)
	}
}

func TestGatewayDeviceOpenFailed(t *testing.T) {
	eng := sim.New(sim.Script{
		Devices: []string{"CR-500"},
		OpenErr: errors.New("usb stall"),
	}, testLogger(t))
	g := NewGateway(eng, "CR-500", testLogger(t))
	defer g.Close()

	if err := g.OpenConfigured(""); !errs.IsKind(err, errs.KindDeviceOpenFailed) {
		t.Errorf("err = %v, want kind device_open_failed", err)
	}
}

func TestGatewayEnsureOpensLazily(t *testing.T) {
	eng := sim.New(sim.Script{Devices: []string{"CR-500"}}, testLogger(t))
	g := NewGateway(eng, "CR-500", testLogger(t))
	defer g.Close()

	if g.Device() != nil {
		t.Fatal("device should not be open before Ensure")
	}
	dev, err := g.Ensure()
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if dev == nil || dev.Name() != "CR-500" {
		t.Errorf("Ensure returned %v, want CR-500", dev)
	}
}

func TestGatewayReopensOnReconnect(t *testing.T) {
	eng := sim.New(sim.Script{Devices: []string{"CR-500"}}, testLogger(t))
	g := NewGateway(eng, "CR-500", testLogger(t))
	defer g.Close()

	if err := g.OpenConfigured(""); err != nil {
		t.Fatalf("OpenConfigured: %v", err)
	}

	eng.SimulateConnectionChange("CR-500", false)
	eng.Bus().WaitAsync()
	waitFor(t, func() bool { return g.Device() == nil }, "device released on disconnect")

	eng.SimulateConnectionChange("CR-500", true)
	eng.Bus().WaitAsync()
	waitFor(t, func() bool { return g.Device() != nil }, "device reopened on reconnect")
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
