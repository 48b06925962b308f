package receiver

import (
	"fmt"
	"io"
	"net"

	"github.com/ponytojas/go-udp-sensor/internal/models"
)

// Printer writes the operator-facing console lines
type Printer struct {
	out io.Writer
}

// NewPrinter creates a Printer writing to out
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// Banner announces the listening port and the board we expect data from
func (p *Printer) Banner(port int, expectedSender string) {
	fmt.Fprintf(p.out, "UDP Server listening on port %d...\n", port)
	fmt.Fprintf(p.out, "Waiting for data from Nucleo board (%s)...\n", expectedSender)
}

// Reading prints one decoded datagram
func (p *Printer) Reading(r models.Reading) {
	fmt.Fprintf(p.out, "[%s] From %s: Temp=%.2f°C, Hum=%.2f%%, Time=%dms\n",
		r.ReceivedAt.Local().Format("15:04:05"),
		r.SourceIP(),
		r.Temperature,
		r.Humidity,
		r.DeviceTimestamp,
	)
}

// UnexpectedLength prints the warning for a datagram that is not a record.
// The sender is shown as an (ip, port) pair.
func (p *Printer) UnexpectedLength(from *net.UDPAddr, n int) {
	var ip string
	var port int
	if from != nil {
		ip, port = from.IP.String(), from.Port
	}
	fmt.Fprintf(p.out, "From ('%s', %d): Unexpected data length %d bytes\n", ip, port, n)
}

// Stopped prints the shutdown confirmation
func (p *Printer) Stopped() {
	fmt.Fprint(p.out, "\nServer stopped\n")
}
