// Package receiver owns the UDP socket the sensor board sends its records to.
package receiver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/ponytojas/go-udp-sensor/internal/models"
	"github.com/ponytojas/go-udp-sensor/internal/protocol"
)

// BufferSize is the largest datagram read in one receive; longer ones are truncated
const BufferSize = 1024

// pollInterval bounds every receive so cancellation is observed between packets
const pollInterval = 250 * time.Millisecond

// Sink receives every successfully decoded reading
type Sink interface {
	Store(ctx context.Context, r models.Reading) error
}

// Receiver reads sensor records from a single UDP socket
type Receiver struct {
	conn    *net.UDPConn
	printer *Printer
	sinks   []Sink
	now     func() time.Time

	closeOnce sync.Once
	closeErr  error
}

// Listen binds an IPv4 UDP socket. Nothing is retried: a bind failure is returned as is.
func Listen(addr string, printer *Printer, sinks ...Sink) (*Receiver, error) {
	udpAddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve listen address %s: %w", addr, err)
	}

	conn, err := net.ListenUDP("udp4", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind UDP socket on %s: %w", addr, err)
	}

	return &Receiver{
		conn:    conn,
		printer: printer,
		sinks:   sinks,
		now:     time.Now,
	}, nil
}

// LocalAddr returns the address the socket is bound to
func (r *Receiver) LocalAddr() *net.UDPAddr {
	return r.conn.LocalAddr().(*net.UDPAddr)
}

// Run receives datagrams until ctx is cancelled, then prints the stop line.
// The socket is closed before Run returns, whatever the exit path.
func (r *Receiver) Run(ctx context.Context) error {
	defer r.Close()

	buf := make([]byte, BufferSize)
	for {
		if ctx.Err() != nil {
			r.printer.Stopped()
			return nil
		}

		if err := r.conn.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
			if ctx.Err() != nil {
				r.printer.Stopped()
				return nil
			}
			return fmt.Errorf("failed to set read deadline: %w", err)
		}

		n, from, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				if ctx.Err() != nil {
					r.printer.Stopped()
					return nil
				}
				return fmt.Errorf("socket closed while receiving: %w", err)
			}
			log.Printf("Error reading datagram: %v", err)
			continue
		}

		r.handle(ctx, buf[:n], from)
	}
}

// Close releases the socket. Only the first call closes it.
func (r *Receiver) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.conn.Close()
	})
	return r.closeErr
}

func (r *Receiver) handle(ctx context.Context, payload []byte, from *net.UDPAddr) {
	record, err := protocol.Decode(payload)
	if err != nil {
		r.printer.UnexpectedLength(from, len(payload))
		return
	}

	reading := models.Reading{
		SensorReading: record,
		Source:        from,
		ReceivedAt:    r.now(),
	}
	r.printer.Reading(reading)

	for _, sink := range r.sinks {
		if err := sink.Store(ctx, reading); err != nil {
			log.Printf("Error storing reading from %s: %v", reading.SourceIP(), err)
		}
	}
}
