// Package sender plays the part of the sensor board: it samples a source and
// sends packed records to the receiver over UDP.
package sender

import (
	"fmt"
	"net"

	"github.com/ponytojas/go-udp-sensor/internal/models"
	"github.com/ponytojas/go-udp-sensor/internal/protocol"
)

// Client is a connected UDP socket aimed at the receiver
type Client struct {
	conn *net.UDPConn
}

// Dial creates a UDP client for the receiver at addr
func Dial(addr string) (*Client, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("invalid receiver address %s: %w", addr, err)
	}

	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create UDP client for %s: %w", addr, err)
	}

	return &Client{conn: conn}, nil
}

// Send writes one encoded reading as a single datagram
func (c *Client) Send(r models.SensorReading) error {
	return c.SendRaw(protocol.Encode(r))
}

// SendRaw writes payload as a single datagram without encoding it
func (c *Client) SendRaw(payload []byte) error {
	n, err := c.conn.Write(payload)
	if err != nil {
		return fmt.Errorf("send failed: %w", err)
	}
	if n != len(payload) {
		return fmt.Errorf("partial send: %d of %d bytes", n, len(payload))
	}
	return nil
}

// LocalAddr returns the source address datagrams are sent from
func (c *Client) LocalAddr() *net.UDPAddr {
	return c.conn.LocalAddr().(*net.UDPAddr)
}

// Close closes the socket
func (c *Client) Close() error {
	return c.conn.Close()
}
