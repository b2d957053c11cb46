package serialmux

import (
	"go.bug.st/serial"
)

// NewRealSerialMux creates a SerialMux backed by a real serial port at the
// given path using the provided serial options. The opener the mux keeps for
// Reopen reuses the same path and mode, so a faulted link comes back with
// identical settings.
func NewRealSerialMux(path string, opts PortOptions) (*SerialMux[serial.Port], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	open := func() (serial.Port, error) {
		return serial.Open(path, mode)
	}

	port, err := open()
	if err != nil {
		return nil, err
	}

	return NewSerialMux(port, open), nil
}
