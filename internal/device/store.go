package device

import "sync"

// Logger is the minimal logging interface the store needs. It is
// satisfied by logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Store holds the in-memory device set keyed by serial number.
//
// Thread Safety: all methods are safe for concurrent use. The store
// guards only the map itself; field-level mutation of a Device is
// serialized externally by the coordinator.
type Store struct {
	mu      sync.RWMutex
	devices map[string]*Device
	logger  Logger
}

// NewStore creates an empty device store.
func NewStore() *Store {
	return &Store{
		devices: make(map[string]*Device),
		logger:  noopLogger{},
	}
}

// SetLogger installs a logger. Passing nil restores the no-op logger.
func (s *Store) SetLogger(l Logger) {
	if l == nil {
		l = noopLogger{}
	}
	s.mu.Lock()
	s.logger = l
	s.mu.Unlock()
}

// GetOrCreate returns the device for serial, creating it with the
// given variant on first sight.
func (s *Store) GetOrCreate(serial string, variant Variant) *Device {
	s.mu.RLock()
	d, ok := s.devices[serial]
	s.mu.RUnlock()
	if ok {
		return d
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.devices[serial]; ok {
		return d
	}
	d = New(serial, variant)
	s.devices[serial] = d
	s.logger.Debug("device registered", "serial", serial, "variant", string(variant))
	return d
}

// Get returns the device for serial, or ErrDeviceNotFound.
func (s *Store) Get(serial string) (*Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.devices[serial]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return d, nil
}

// Remove drops the device for serial. Unknown serials are a no-op.
func (s *Store) Remove(serial string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.devices[serial]; ok {
		delete(s.devices, serial)
		s.logger.Debug("device unloaded", "serial", serial)
	}
}

// Serials returns the serial numbers of all loaded devices.
func (s *Store) Serials() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	serials := make([]string, 0, len(s.devices))
	for serial := range s.devices {
		serials = append(serials, serial)
	}
	return serials
}

// Len returns the number of loaded devices.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.devices)
}
