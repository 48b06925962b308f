package receiver

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ponytojas/go-udp-sensor/internal/models"
	"github.com/ponytojas/go-udp-sensor/internal/sender"
)

// syncBuffer lets the test read what the receive goroutine has printed so far
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	text := strings.TrimRight(b.buf.String(), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func (b *syncBuffer) waitForLines(t *testing.T, n int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if lines := b.Lines(); len(lines) >= n {
			return lines
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %d lines, got %q", n, b.Lines())
	return nil
}

type recordingSink struct {
	mu       sync.Mutex
	readings []models.Reading
	err      error
}

func (s *recordingSink) Store(_ context.Context, r models.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, r)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.readings)
}

type harness struct {
	out    *syncBuffer
	rcv    *Receiver
	client *sender.Client
	cancel context.CancelFunc
	done   chan error
}

func startReceiver(t *testing.T, sinks ...Sink) *harness {
	t.Helper()
	out := &syncBuffer{}

	rcv, err := Listen("127.0.0.1:0", NewPrinter(out), sinks...)
	if err != nil {
		t.Fatalf("Listen returned error: %v", err)
	}

	client, err := sender.Dial(rcv.LocalAddr().String())
	if err != nil {
		rcv.Close()
		t.Fatalf("Dial returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{out: out, rcv: rcv, client: client, cancel: cancel, done: make(chan error, 1)}
	go func() { h.done <- rcv.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		client.Close()
		rcv.Close()
	})
	return h
}

func (h *harness) send(t *testing.T, r models.SensorReading) {
	t.Helper()
	if err := h.client.Send(r); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
}

func (h *harness) sendRaw(t *testing.T, payload []byte) {
	t.Helper()
	if err := h.client.SendRaw(payload); err != nil {
		t.Fatalf("SendRaw returned error: %v", err)
	}
}

func (h *harness) stop(t *testing.T) {
	t.Helper()
	h.cancel()
	select {
	case err := <-h.done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestReceiver_ValidRecord(t *testing.T) {
	sink := &recordingSink{}
	h := startReceiver(t, sink)

	err := h.client.Send(models.SensorReading{Temperature: 23.50, Humidity: 61.25, DeviceTimestamp: 123456})
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	lines := h.out.waitForLines(t, 1)
	want := "From 127.0.0.1: Temp=23.50°C, Hum=61.25%, Time=123456ms"
	if !strings.Contains(lines[0], want) {
		t.Errorf("Expected line containing %q, got %q", want, lines[0])
	}
	if !strings.HasPrefix(lines[0], "[") || lines[0][9] != ']' {
		t.Errorf("Expected [HH:MM:SS] prefix, got %q", lines[0])
	}

	h.stop(t)
	if sink.count() != 1 {
		t.Fatalf("Expected sink to get 1 reading, got %d", sink.count())
	}
	got := sink.readings[0]
	if got.DeviceTimestamp != 123456 || got.SourceIP() != "127.0.0.1" || got.ReceivedAt.IsZero() {
		t.Errorf("Unexpected reading handed to sink: %+v", got)
	}
}

func TestReceiver_UnexpectedLength(t *testing.T) {
	cases := []int{0, 11, 13, 100}

	for _, n := range cases {
		t.Run(strconv.Itoa(n)+" bytes", func(t *testing.T) {
			sink := &recordingSink{}
			h := startReceiver(t, sink)

			if err := h.client.SendRaw(make([]byte, n)); err != nil {
				t.Fatalf("SendRaw returned error: %v", err)
			}

			lines := h.out.waitForLines(t, 1)
			from := h.client.LocalAddr()
			want := "From ('127.0.0.1', " + strconv.Itoa(from.Port) + "): Unexpected data length " + strconv.Itoa(n) + " bytes"
			if lines[0] != want {
				t.Errorf("Expected %q, got %q", want, lines[0])
			}

			h.stop(t)
			if got := len(h.out.Lines()); got != 3 {
				t.Errorf("Expected exactly one warning plus stop lines, got %q", h.out.Lines())
			}
			if sink.count() != 0 {
				t.Errorf("Expected no reading to reach the sink, got %d", sink.count())
			}
		})
	}
}

func TestReceiver_OversizedDatagramIsTruncated(t *testing.T) {
	h := startReceiver(t)

	if err := h.client.SendRaw(make([]byte, 1500)); err != nil {
		t.Fatalf("SendRaw returned error: %v", err)
	}

	lines := h.out.waitForLines(t, 1)
	if !strings.HasSuffix(lines[0], "Unexpected data length 1024 bytes") {
		t.Errorf("Expected truncated length warning, got %q", lines[0])
	}
}

func TestReceiver_KeepsRunningAcrossPackets(t *testing.T) {
	h := startReceiver(t)

	h.send(t, models.SensorReading{Temperature: 20, Humidity: 40, DeviceTimestamp: 1000})
	h.out.waitForLines(t, 1)
	h.sendRaw(t, []byte{0xff})
	h.out.waitForLines(t, 2)
	h.send(t, models.SensorReading{Temperature: 21, Humidity: 41, DeviceTimestamp: 2000})

	lines := h.out.waitForLines(t, 3)
	if !strings.Contains(lines[0], "Time=1000ms") {
		t.Errorf("Expected first reading, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "Unexpected data length 1 bytes") {
		t.Errorf("Expected warning, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "Time=2000ms") {
		t.Errorf("Expected second reading, got %q", lines[2])
	}

	// several poll intervals with no traffic must not end the loop
	time.Sleep(3 * pollInterval)
	select {
	case err := <-h.done:
		t.Fatalf("Run returned on its own: %v", err)
	default:
	}
}

func TestReceiver_BackToBackRecordsInOrder(t *testing.T) {
	h := startReceiver(t)

	h.send(t, models.SensorReading{Temperature: 18.25, Humidity: 55, DeviceTimestamp: 10})
	h.send(t, models.SensorReading{Temperature: 18.5, Humidity: 56, DeviceTimestamp: 11})

	lines := h.out.waitForLines(t, 2)
	if !strings.Contains(lines[0], "Temp=18.25°C, Hum=55.00%, Time=10ms") {
		t.Errorf("Unexpected first line %q", lines[0])
	}
	if !strings.Contains(lines[1], "Temp=18.50°C, Hum=56.00%, Time=11ms") {
		t.Errorf("Unexpected second line %q", lines[1])
	}
	for _, line := range lines {
		if !strings.HasPrefix(line, "[") {
			t.Errorf("Expected timestamp header on %q", line)
		}
	}
}

func TestReceiver_SinkErrorDoesNotStopLoop(t *testing.T) {
	sink := &recordingSink{err: errors.New("database unavailable")}
	h := startReceiver(t, sink)

	h.send(t, models.SensorReading{DeviceTimestamp: 1})
	h.send(t, models.SensorReading{DeviceTimestamp: 2})
	h.out.waitForLines(t, 2)

	h.stop(t)
	if sink.count() != 2 {
		t.Errorf("Expected 2 store attempts, got %d", sink.count())
	}
}

func TestReceiver_InterruptReleasesSocket(t *testing.T) {
	h := startReceiver(t)
	addr := h.rcv.LocalAddr()

	h.stop(t)

	lines := h.out.Lines()
	if len(lines) != 2 || lines[0] != "" || lines[1] != "Server stopped" {
		t.Errorf("Expected blank line then %q, got %q", "Server stopped", lines)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		t.Fatalf("Expected port %d to be rebindable, got %v", addr.Port, err)
	}
	conn.Close()
}

func TestReceiver_CloseIsIdempotent(t *testing.T) {
	h := startReceiver(t)

	for i := 0; i < 5; i++ {
		h.cancel()
	}
	h.stop(t)

	if err := h.rcv.Close(); err != nil {
		t.Errorf("Expected repeated Close to return the first result, got %v", err)
	}
	if err := h.rcv.Close(); err != nil {
		t.Errorf("Expected repeated Close to return the first result, got %v", err)
	}
}

func TestListen_BindFailure(t *testing.T) {
	first, err := Listen("127.0.0.1:0", NewPrinter(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("Listen returned error: %v", err)
	}
	defer first.Close()

	_, err = Listen(first.LocalAddr().String(), NewPrinter(&bytes.Buffer{}))
	if err == nil {
		t.Fatal("Expected bind on a port in use to fail")
	}
}

func TestListen_IPv4Only(t *testing.T) {
	rcv, err := Listen("0.0.0.0:0", NewPrinter(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("Listen returned error: %v", err)
	}
	defer rcv.Close()

	if rcv.LocalAddr().IP.To4() == nil {
		t.Errorf("Expected an IPv4 socket, got local address %s", rcv.LocalAddr())
	}
}

func TestListen_RejectsIPv6Address(t *testing.T) {
	if _, err := Listen("[::1]:0", NewPrinter(&bytes.Buffer{})); err == nil {
		t.Error("Expected an IPv6 listen address to be rejected")
	}
}

func TestPrinter_UnexpectedLength(t *testing.T) {
	var out bytes.Buffer
	NewPrinter(&out).UnexpectedLength(&net.UDPAddr{IP: net.IPv4(192, 168, 1, 38), Port: 5000}, 11)

	want := "From ('192.168.1.38', 5000): Unexpected data length 11 bytes\n"
	if out.String() != want {
		t.Errorf("Expected %q, got %q", want, out.String())
	}
}

func TestPrinter_Banner(t *testing.T) {
	var out bytes.Buffer
	NewPrinter(&out).Banner(8888, "192.168.1.38")

	want := "UDP Server listening on port 8888...\nWaiting for data from Nucleo board (192.168.1.38)...\n"
	if out.String() != want {
		t.Errorf("Expected %q, got %q", want, out.String())
	}
}

func TestPrinter_Reading(t *testing.T) {
	var out bytes.Buffer
	received := time.Date(2025, 3, 1, 14, 5, 9, 0, time.Local)

	NewPrinter(&out).Reading(models.Reading{
		SensorReading: models.SensorReading{Temperature: -3.456, Humidity: 99.999, DeviceTimestamp: 4294967295},
		Source:        &net.UDPAddr{IP: net.IPv4(192, 168, 1, 38), Port: 49152},
		ReceivedAt:    received,
	})

	want := "[14:05:09] From 192.168.1.38: Temp=-3.46°C, Hum=100.00%, Time=4294967295ms\n"
	if out.String() != want {
		t.Errorf("Expected %q, got %q", want, out.String())
	}
}
