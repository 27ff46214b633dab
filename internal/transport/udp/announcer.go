// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	applog "audiomap/internal/log"
)

// HeaderSize is the length of the fixed header preceding the payload.
const HeaderSize = 4 + 8 + 8 + 2

// MaxDatagram is the largest UDP payload over IPv4.
const MaxDatagram = 65507

// MaxPayload is the largest JSON body an announcement may carry.
const MaxPayload = MaxDatagram - HeaderSize

// ErrPayloadTooLarge is returned by Send when the encoded message does not
// fit in one datagram.
var ErrPayloadTooLarge = fmt.Errorf("announcement payload exceeds %d bytes", MaxPayload)

// Announcer re-broadcasts the most recent directory message over UDP at a
// fixed interval. It only repeats what it was given through Send; it never
// triggers discovery itself.
type Announcer struct {
	sender   *UDPSender
	interval time.Duration

	mu         sync.Mutex
	payload    []byte
	generation uint64
	seq        uint32
	buf        bytes.Buffer

	ticker   *time.Ticker
	doneChan chan struct{}
	wg       sync.WaitGroup
}

// Generationer is implemented by messages that carry a snapshot generation.
type Generationer interface {
	GenerationNumber() uint64
}

// NewAnnouncer creates an Announcer. An interval <= 0 defaults to 2s.
func NewAnnouncer(interval time.Duration, sender *UDPSender) (*Announcer, error) {
	if sender == nil {
		return nil, fmt.Errorf("announcer: UDP sender cannot be nil")
	}
	if interval <= 0 {
		interval = 2 * time.Second
		applog.Warnf("announcer: invalid interval, defaulting to %s", interval)
	}
	return &Announcer{sender: sender, interval: interval}, nil
}

// Send records data as the payload to announce and sends it immediately.
func (a *Announcer) Send(data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("announcer: encode payload: %w", err)
	}
	if len(body) > MaxPayload {
		return ErrPayloadTooLarge
	}

	a.mu.Lock()
	a.payload = body
	if g, ok := data.(Generationer); ok {
		a.generation = g.GenerationNumber()
	}
	a.mu.Unlock()

	return a.announce()
}

/*
Packet layout (BigEndian):

|<- 4 ->|<--- 8 --->|<---- 8 ---->|<- 2 ->|<-- N -->|
+-------+-----------+-------------+-------+---------+
|  Seq  | Timestamp | Generation  |   N   |  JSON   |
|uint32 |  int64 ns |   uint64    |uint16 | payload |
+-------+-----------+-------------+-------+---------+
*/

func (a *Announcer) announce() error {
	a.mu.Lock()
	if a.payload == nil {
		a.mu.Unlock()
		return nil
	}
	a.seq++
	a.buf.Reset()
	binary.Write(&a.buf, binary.BigEndian, a.seq)
	binary.Write(&a.buf, binary.BigEndian, time.Now().UnixNano())
	binary.Write(&a.buf, binary.BigEndian, a.generation)
	binary.Write(&a.buf, binary.BigEndian, uint16(len(a.payload)))
	a.buf.Write(a.payload)
	packet := bytes.Clone(a.buf.Bytes())
	seq := a.seq
	a.mu.Unlock()

	if err := a.sender.Send(packet); err != nil {
		return err
	}
	applog.Debugf("announcer: sent packet %d (%d bytes)", seq, len(packet))
	return nil
}

// Start begins periodic re-announcement. Calling Start twice is a no-op.
func (a *Announcer) Start() {
	a.mu.Lock()
	if a.ticker != nil {
		a.mu.Unlock()
		return
	}
	a.ticker = time.NewTicker(a.interval)
	a.doneChan = make(chan struct{})
	ticker, done := a.ticker, a.doneChan
	a.mu.Unlock()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-ticker.C:
				if err := a.announce(); err != nil {
					applog.Debugf("announcer: %v", err)
				}
			case <-done:
				return
			}
		}
	}()
}

// Stop halts periodic announcements and waits for the loop to exit.
func (a *Announcer) Stop() {
	a.mu.Lock()
	if a.ticker == nil {
		a.mu.Unlock()
		return
	}
	a.ticker.Stop()
	a.ticker = nil
	close(a.doneChan)
	a.mu.Unlock()
	a.wg.Wait()
}

// Close stops the announcer and its sender.
func (a *Announcer) Close() error {
	a.Stop()
	return a.sender.Close()
}

// DecodeHeader splits a packet into its header fields and payload.
func DecodeHeader(packet []byte) (seq uint32, ts int64, generation uint64, payload []byte, err error) {
	if len(packet) < HeaderSize {
		return 0, 0, 0, nil, fmt.Errorf("packet too short: %d bytes", len(packet))
	}
	seq = binary.BigEndian.Uint32(packet[0:4])
	ts = int64(binary.BigEndian.Uint64(packet[4:12]))
	generation = binary.BigEndian.Uint64(packet[12:20])
	n := int(binary.BigEndian.Uint16(packet[20:22]))
	if len(packet) != HeaderSize+n {
		return 0, 0, 0, nil, fmt.Errorf("payload length %d does not match packet size %d", n, len(packet))
	}
	return seq, ts, generation, packet[HeaderSize:], nil
}
