package reader

import (
	"errors"
	"sync"

	"github.com/abdrou13-pixel/ReadCard/internal/domain/engine"
	errs "github.com/abdrou13-pixel/ReadCard/internal/platform/errors"
	"github.com/abdrou13-pixel/ReadCard/internal/platform/logging"
)

// Gateway owns the long-lived device connection. One instance lives for the
// whole process; it reopens the last configured device when the engine
// reports the hardware coming back.
type Gateway struct {
	engine engine.Engine
	logger *logging.Logger

	mu     sync.Mutex
	name   string
	device engine.Device

	onConnection func(ev engine.ConnectionEvent)
}

// NewGateway wires a gateway to the engine's connection events. It does not
// open anything; call OpenConfigured or let Ensure open lazily.
func NewGateway(eng engine.Engine, deviceName string, logger *logging.Logger) *Gateway {
	g := &Gateway{
		engine: eng,
		logger: logger,
		name:   deviceName,
	}
	g.onConnection = g.handleConnectionChanged
	if err := eng.Bus().SubscribeAsync(engine.TopicConnectionChanged, g.onConnection); err != nil {
		logger.WarnTag("[DEVICE]", "subscribe connection events: %v", err)
	}
	return g
}

func (g *Gateway) handleConnectionChanged(ev engine.ConnectionEvent) {
	if !ev.Connected {
		g.logger.WarnTag("[DEVICE]", "device disconnected: %s", ev.DeviceName)
		g.mu.Lock()
		if g.device != nil {
			if err := g.device.Close(); err != nil {
				g.logger.WarnTag("[DEVICE]", "close on disconnect: %v", err)
			}
			g.device = nil
		}
		g.mu.Unlock()
		return
	}

	g.logger.InfoTag("[DEVICE]", "device reconnected, reopening: %s", ev.DeviceName)
	if err := g.OpenConfigured(""); err != nil {
		g.logger.ErrorTag("[DEVICE]", "reopen after reconnect: %v", err)
	}
}

// OpenConfigured opens the named device, replacing any currently open one.
// An empty name keeps the last configured name; if none was ever set, the
// first enumerated device is used.
func (g *Gateway) OpenConfigured(name string) error {
	const op = "gateway.open"

	g.mu.Lock()
	defer g.mu.Unlock()

	if name == "" {
		name = g.name
	}
	if name == "" {
		devices, err := g.engine.ListDevices()
		if err != nil {
			return errs.Wrap(errs.KindDeviceOpenFailed, op, "list devices", err)
		}
		if len(devices) == 0 {
			return errs.New(errs.KindDeviceNotFound, op, "no reader devices attached")
		}
		name = devices[0]
	}

	dev, err := g.engine.OpenDevice(name)
	if err != nil {
		if errors.Is(err, engine.ErrDeviceNotFound) {
			return errs.Wrap(errs.KindDeviceNotFound, op, "device not attached: "+name, err)
		}
		return errs.Wrap(errs.KindDeviceOpenFailed, op, "open device: "+name, err)
	}

	if g.device != nil {
		if cerr := g.device.Close(); cerr != nil {
			g.logger.WarnTag("[DEVICE]", "close previous device: %v", cerr)
		}
	}
	g.device = dev
	g.name = name
	g.logger.InfoTag("[DEVICE]", "device open: %s", name)
	return nil
}

// Ensure returns the open device, opening it lazily if needed.
func (g *Gateway) Ensure() (engine.Device, error) {
	g.mu.Lock()
	dev := g.device
	g.mu.Unlock()
	if dev != nil {
		return dev, nil
	}
	if err := g.OpenConfigured(""); err != nil {
		return nil, err
	}
	g.mu.Lock()
	dev = g.device
	g.mu.Unlock()
	return dev, nil
}

// Device returns the currently open device, or nil.
func (g *Gateway) Device() engine.Device {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.device
}

// DeviceName returns the configured or last opened device name.
func (g *Gateway) DeviceName() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.name
}

// ListReaders enumerates the card readers exposed by the engine.
func (g *Gateway) ListReaders() ([]engine.CardReader, error) {
	readers, err := g.engine.ListReaders()
	if err != nil {
		return nil, errs.Wrap(errs.KindEngine, "gateway.list_readers", "list card readers", err)
	}
	return readers, nil
}

// Close releases the device and stops listening for connection events.
func (g *Gateway) Close() {
	if err := g.engine.Bus().Unsubscribe(engine.TopicConnectionChanged, g.onConnection); err != nil {
		g.logger.DebugTag("[DEVICE]", "unsubscribe connection events: %v", err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.device != nil {
		if err := g.device.Close(); err != nil {
			g.logger.WarnTag("[DEVICE]", "close device: %v", err)
		}
		g.device = nil
	}
}
