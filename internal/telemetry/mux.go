package telemetry

import (
	"bufio"
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
)

// ErrWriteFailed is returned by SendCommand on a short write.
var ErrWriteFailed = errors.New("telemetry: failed to write to serial port")

// Mux reads lines from one serial port and fans them out to any number of
// subscribers. The ingestor is the primary subscriber; the status
// server's live tail and the session recorder attach their own.
type Mux struct {
	port Port

	subscriberMu sync.Mutex
	subscribers  map[string]chan string

	commandMu sync.Mutex

	closingMu sync.Mutex
	closing   bool
}

// NewMux creates a Mux over an open port.
func NewMux(port Port) *Mux {
	return &Mux{
		port:        port,
		subscribers: make(map[string]chan string),
	}
}

func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe creates a channel receiving every line read from the port.
// The returned ID identifies the channel for Unsubscribe.
func (m *Mux) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string, 64)
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	m.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes and closes a subscriber channel.
func (m *Mux) Unsubscribe(id string) {
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	if ch, ok := m.subscribers[id]; ok {
		close(ch)
		delete(m.subscribers, id)
	}
}

// SendCommand writes one command line to the control board.
func (m *Mux) SendCommand(command string) error {
	m.commandMu.Lock()
	defer m.commandMu.Unlock()
	if !strings.HasSuffix(command, "\n") {
		command += "\n"
	}
	n, err := m.port.Write([]byte(command))
	if err != nil {
		return err
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// Monitor reads lines from the port and delivers them to subscribers
// until the context is cancelled or the port fails. A subscriber whose
// channel is full misses lines rather than stalling the reader: telemetry
// is only useful fresh.
func (m *Mux) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(m.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// The blocking Scan runs in its own goroutine so the outer loop can
	// observe context cancellation.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return err

		case line, ok := <-lineChan:
			if !ok {
				if err := scan.Err(); err != nil {
					return err
				}
				return nil
			}

			m.closingMu.Lock()
			if m.closing {
				m.closingMu.Unlock()
				return nil
			}
			m.closingMu.Unlock()

			m.subscriberMu.Lock()
			for _, ch := range m.subscribers {
				select {
				case ch <- line:
				default:
				}
			}
			m.subscriberMu.Unlock()
		}
	}
}

// Close closes every subscriber channel and the underlying port.
func (m *Mux) Close() error {
	m.closingMu.Lock()
	m.closing = true
	m.closingMu.Unlock()

	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	for id, ch := range m.subscribers {
		close(ch)
		delete(m.subscribers, id)
	}
	return m.port.Close()
}
