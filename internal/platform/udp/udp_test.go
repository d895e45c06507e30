package udp_test

import (
	"bytes"
	"crypto/rand"
	"errors"
	"net"
	"net/netip"
	"strconv"
	"testing"
	"time"

	"github.com/dmksnnk/snakelink/internal/platform"
	"github.com/dmksnnk/snakelink/internal/platform/udp"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestEndpoint(t *testing.T) {
	t.Run("nothing available", func(t *testing.T) {
		e1, _ := testPipe(t)

		start := time.Now()
		payload, from, err := e1.Receive()
		if err != nil {
			t.Fatalf("receive: %v", err)
		}
		if payload != nil {
			t.Errorf("expected no payload, got: %q", payload)
		}
		if from.IsValid() {
			t.Errorf("expected no sender, got: %s", from)
		}
		if elapsed := time.Since(start); elapsed > time.Second {
			t.Errorf("receive blocked for %s", elapsed)
		}
	})

	t.Run("simple", func(t *testing.T) {
		e1, e2 := testPipe(t)

		for i := range 10 {
			msg := []byte("hello " + strconv.Itoa(i))
			if err := e1.Send(msg, e2.LocalAddr()); err != nil {
				t.Fatalf("send: %v", err)
			}

			got, from := receive(t, e2)
			if !bytes.Equal(got, msg) {
				t.Fatalf("expected: %q, got: %q", msg, got)
			}
			if from != e1.LocalAddr() {
				t.Errorf("expected sender %s, got: %s", e1.LocalAddr(), from)
			}
		}
	})

	t.Run("reassembles large message", func(t *testing.T) {
		e1, e2 := testPipe(t)

		msg := make([]byte, 3*platform.MaxDatagramSize+100)
		rand.Read(msg)

		if err := e1.Send(msg, e2.LocalAddr()); err != nil {
			t.Fatalf("send: %v", err)
		}

		got, _ := receive(t, e2)
		if !bytes.Equal(got, msg) {
			t.Fatalf("message differs, want %d bytes, got %d bytes", len(msg), len(got))
		}
	})

	t.Run("exact multiple of datagram size", func(t *testing.T) {
		e1, e2 := testPipe(t)

		msg := make([]byte, 2*platform.MaxDatagramSize)
		rand.Read(msg)
		next := []byte("next")

		if err := e1.Send(msg, e2.LocalAddr()); err != nil {
			t.Fatalf("send: %v", err)
		}
		if err := e1.Send(next, e2.LocalAddr()); err != nil {
			t.Fatalf("send: %v", err)
		}

		got, _ := receive(t, e2)
		if !bytes.Equal(got, msg) {
			t.Fatalf("message differs, want %d bytes, got %d bytes", len(msg), len(got))
		}

		got, _ = receive(t, e2)
		if !bytes.Equal(got, next) {
			t.Fatalf("expected: %q, got: %q", next, got)
		}
	})

	t.Run("empty datagram is nothing", func(t *testing.T) {
		e1, e2 := testPipe(t)

		if err := e1.Send(nil, e2.LocalAddr()); err != nil {
			t.Fatalf("send: %v", err)
		}

		time.Sleep(10 * time.Millisecond) // let datagram arrive
		payload, _, err := e2.Receive()
		if err != nil {
			t.Fatalf("receive: %v", err)
		}
		if payload != nil {
			t.Errorf("expected no payload, got: %q", payload)
		}
	})

	t.Run("fragment source mismatch", func(t *testing.T) {
		e1, e2 := testPipe(t)

		intruder, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
		if err != nil {
			t.Fatalf("listen intruder: %v", err)
		}
		t.Cleanup(func() { intruder.Close() })

		full := make([]byte, platform.MaxDatagramSize)
		dst := net.UDPAddrFromAddrPort(e2.LocalAddr())
		if _, err := intruder.WriteToUDP(full, dst); err != nil {
			t.Fatalf("write first fragment: %v", err)
		}
		time.Sleep(10 * time.Millisecond) // keep order between senders
		if err := e1.Send([]byte("tail"), e2.LocalAddr()); err != nil {
			t.Fatalf("send tail: %v", err)
		}

		_, _, err = receiveErr(t, e2)
		if !errors.Is(err, udp.ErrFragmentSourceMismatch) {
			t.Fatalf("expected ErrFragmentSourceMismatch, got: %v", err)
		}
	})

	t.Run("incomplete message", func(t *testing.T) {
		lc := udp.ListenConfig{ContinuationTimeout: 10 * time.Millisecond}
		_, e2 := testPipeConfig(t, lc)

		raw, err := net.DialUDP("udp4", nil, net.UDPAddrFromAddrPort(e2.LocalAddr()))
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		t.Cleanup(func() { raw.Close() })

		// a lone full-size datagram, continuation never comes
		if _, err := raw.Write(make([]byte, platform.MaxDatagramSize)); err != nil {
			t.Fatalf("write: %v", err)
		}

		_, _, err = receiveErr(t, e2)
		if !errors.Is(err, udp.ErrIncompleteMessage) {
			t.Fatalf("expected ErrIncompleteMessage, got: %v", err)
		}
	})

	t.Run("close is idempotent", func(t *testing.T) {
		e1, e2, err := udp.Pipe()
		if err != nil {
			t.Fatalf("create pipe: %v", err)
		}
		for range 2 {
			if err := e1.Close(); err != nil {
				t.Errorf("close e1: %v", err)
			}
			if err := e2.Close(); err != nil {
				t.Errorf("close e2: %v", err)
			}
		}

		if _, _, err := e1.Receive(); !errors.Is(err, net.ErrClosed) {
			t.Errorf("expected net.ErrClosed, got: %v", err)
		}
	})
}

func TestFragment(t *testing.T) {
	t.Run("short", func(t *testing.T) {
		got := udp.Fragment([]byte("abc"))
		if len(got) != 1 || string(got[0]) != "abc" {
			t.Errorf("unexpected fragments: %q", got)
		}
	})

	t.Run("long", func(t *testing.T) {
		got := udp.Fragment(make([]byte, platform.MaxDatagramSize+1))
		if len(got) != 2 {
			t.Fatalf("expected 2 fragments, got: %d", len(got))
		}
		if len(got[0]) != platform.MaxDatagramSize || len(got[1]) != 1 {
			t.Errorf("unexpected fragment sizes: %d, %d", len(got[0]), len(got[1]))
		}
	})

	t.Run("exact", func(t *testing.T) {
		got := udp.Fragment(make([]byte, platform.MaxDatagramSize))
		if len(got) != 2 {
			t.Fatalf("expected 2 fragments, got: %d", len(got))
		}
		if len(got[1]) != 0 {
			t.Errorf("expected empty terminator, got %d bytes", len(got[1]))
		}
	})
}

// receive polls the endpoint until a message arrives.
func receive(t *testing.T, e *udp.Endpoint) ([]byte, netip.AddrPort) {
	t.Helper()

	payload, from, err := receiveErr(t, e)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}

	return payload, from
}

func receiveErr(t *testing.T, e *udp.Endpoint) ([]byte, netip.AddrPort, error) {
	t.Helper()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		payload, from, err := e.Receive()
		if err != nil || payload != nil {
			return payload, from, err
		}
	}

	t.Fatal("nothing received")
	return nil, netip.AddrPort{}, nil
}

func testPipe(t *testing.T) (*udp.Endpoint, *udp.Endpoint) {
	return testPipeConfig(t, udp.ListenConfig{})
}

func testPipeConfig(t *testing.T, lc udp.ListenConfig) (*udp.Endpoint, *udp.Endpoint) {
	t.Helper()

	e1, e2, err := lc.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	t.Cleanup(func() {
		if err := e1.Close(); err != nil {
			t.Errorf("failed to close e1: %v", err)
		}
		if err := e2.Close(); err != nil {
			t.Errorf("failed to close e2: %v", err)
		}
	})

	return e1, e2
}
