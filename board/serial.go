package board

import (
	"go.bug.st/serial"
)

// SerialOpener opens a named serial port and adapts it to Channel
// (spec.md C15). It is the only piece of this package that touches real
// hardware; every other board operation is tested against an in-memory
// Channel instead.
type SerialOpener struct {
	Baud int
}

const defaultBaud = 115200

// Open opens portName and returns it as a Channel.
func (o SerialOpener) Open(portName string) (Channel, error) {
	baud := o.Baud
	if baud <= 0 {
		baud = defaultBaud
	}

	port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, err
	}
	return serialChannel{port}, nil
}

// serialChannel adapts go.bug.st/serial.Port to Channel.
type serialChannel struct {
	serial.Port
}
