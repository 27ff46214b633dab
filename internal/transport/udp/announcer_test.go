// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/json"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	applog "audiomap/internal/log"
)

func TestMain(m *testing.M) {
	applog.Discard()
	os.Exit(m.Run())
}

type genMessage struct {
	Type       string `json:"type"`
	Generation uint64 `json:"generation"`
}

func (m genMessage) GenerationNumber() uint64 { return m.Generation }

func listen(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Skipf("cannot listen on UDP: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readPacket(t *testing.T, conn *net.UDPConn) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 65536)
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("read packet: %v", err)
	}
	return buf[:n]
}

func TestAnnouncer_SendAndRepeat(t *testing.T) {
	conn := listen(t)
	sender, err := NewUDPSender(conn.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}
	a, err := NewAnnouncer(20*time.Millisecond, sender)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	if err := a.Send(genMessage{Type: "snapshot", Generation: 7}); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	seq, ts, gen, payload, err := DecodeHeader(readPacket(t, conn))
	if err != nil {
		t.Fatal(err)
	}
	if seq != 1 || gen != 7 || ts <= 0 {
		t.Errorf("header = seq %d ts %d gen %d", seq, ts, gen)
	}
	var m genMessage
	if err := json.Unmarshal(payload, &m); err != nil || m.Type != "snapshot" {
		t.Errorf("payload = %s, %v", payload, err)
	}

	a.Start()
	a.Start()
	seq2, _, gen2, _, err := DecodeHeader(readPacket(t, conn))
	if err != nil {
		t.Fatal(err)
	}
	if seq2 <= seq || gen2 != 7 {
		t.Errorf("repeat = seq %d gen %d", seq2, gen2)
	}
	a.Stop()
	a.Stop()
}

func TestAnnouncer_NothingBeforeFirstSend(t *testing.T) {
	conn := listen(t)
	sender, err := NewUDPSender(conn.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}
	a, _ := NewAnnouncer(10*time.Millisecond, sender)
	a.Start()
	time.Sleep(50 * time.Millisecond)
	a.Close()

	conn.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	if n, _, err := conn.ReadFromUDP(make([]byte, 64)); err == nil {
		t.Errorf("announcer sent %d bytes without a payload", n)
	}
}

func TestAnnouncer_Errors(t *testing.T) {
	if _, err := NewAnnouncer(time.Second, nil); err == nil {
		t.Error("expected error for nil sender")
	}

	conn := listen(t)
	sender, _ := NewUDPSender(conn.LocalAddr().String())
	a, _ := NewAnnouncer(0, sender)
	if a.interval != 2*time.Second {
		t.Errorf("default interval = %s", a.interval)
	}
	if err := a.Send(make(chan int)); err == nil {
		t.Error("expected encode error")
	}
	big := make([]byte, MaxPayload)
	if err := a.Send(big); err != ErrPayloadTooLarge {
		t.Errorf("Send(big) = %v, want ErrPayloadTooLarge", err)
	}
	// Encodes to MaxPayload+2 bytes: under the 16-bit length field but over
	// what one datagram can carry with the header.
	justOver := strings.Repeat("a", MaxPayload)
	if err := a.Send(justOver); err != ErrPayloadTooLarge {
		t.Errorf("Send(%d-byte body) = %v, want ErrPayloadTooLarge", len(justOver)+2, err)
	}
	if err := a.Send(strings.Repeat("a", MaxPayload-2)); err == ErrPayloadTooLarge {
		t.Error("a body of exactly MaxPayload bytes should be accepted")
	}
	a.Close()
	if err := sender.Send([]byte("x")); err == nil {
		t.Error("expected error after Close")
	}
}

func TestDecodeHeader_Malformed(t *testing.T) {
	if _, _, _, _, err := DecodeHeader([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for short packet")
	}
	p := make([]byte, HeaderSize+1)
	p[21] = 5
	if _, _, _, _, err := DecodeHeader(p); err == nil {
		t.Error("expected length mismatch error")
	}
}
