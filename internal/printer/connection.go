package printer

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/tarm/serial"
)

const (
	defaultRawPort = "9100"
	defaultBaud    = 9600
	dialTimeout    = 5 * time.Second
)

// Connection is an open channel to a printer.
type Connection interface {
	Write(data []byte) (int, error)
	Close() error
}

// NetworkConnection is a raw TCP connection, usually to port 9100.
type NetworkConnection struct {
	conn net.Conn
	mu   sync.Mutex
}

// ConnectNetwork dials address; a missing port defaults to 9100.
func ConnectNetwork(address string) (*NetworkConnection, error) {
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, defaultRawPort)
	}

	conn, err := net.DialTimeout("tcp", address, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to network printer: %w", err)
	}
	return &NetworkConnection{conn: conn}, nil
}

func (c *NetworkConnection) Write(data []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Write(data)
}

func (c *NetworkConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// SerialConnection is a printer on a serial port.
type SerialConnection struct {
	port *serial.Port
	mu   sync.Mutex
}

// ConnectSerial opens device at baud; zero uses 9600, the usual default for
// thermal label printers.
func ConnectSerial(device string, baud int) (*SerialConnection, error) {
	if baud == 0 {
		baud = defaultBaud
	}

	port, err := serial.OpenPort(&serial.Config{Name: device, Baud: baud})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	return &SerialConnection{port: port}, nil
}

func (c *SerialConnection) Write(data []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.port.Write(data)
}

func (c *SerialConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.port != nil {
		return c.port.Close()
	}
	return nil
}
