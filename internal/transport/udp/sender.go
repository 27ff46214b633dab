package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"

	applog "audiomap/internal/log"
)

var errSenderClosed = errors.New("UDP sender is closed")

// UDPSender handles sending data packets over UDP.
type UDPSender struct {
	conn   *net.UDPConn
	mu     sync.Mutex // Protects conn during Close
	closed bool
}

// NewUDPSender creates a new UDPSender targeting the specified address.
// The address should be in the format "host:port", e.g., "127.0.0.1:9090".
func NewUDPSender(targetAddress string) (*UDPSender, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP target address '%s': %w", targetAddress, err)
	}

	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial UDP for target '%s': %w", targetAddress, err)
	}

	applog.Infof("UDP Sender: Connection established to %s", conn.RemoteAddr())
	return &UDPSender{conn: conn}, nil
}

// Send transmits the given byte slice as a UDP packet.
func (s *UDPSender) Send(data []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errSenderClosed
	}
	_, err := s.conn.Write(data)
	s.mu.Unlock()

	if err != nil {
		applog.Debugf("UDP Sender: Error sending packet: %v", err)
		return fmt.Errorf("failed to send UDP packet: %w", err)
	}
	return nil
}

// Close closes the underlying UDP connection.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	applog.Debugf("UDP Sender: Closing connection to %s", s.conn.RemoteAddr())
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close UDP connection: %w", err)
	}
	return nil
}

var _ interface{ Close() error } = (*UDPSender)(nil)
