package session

import (
	"log/slog"
	"net/netip"

	"github.com/dmksnnk/snakelink/internal/protocol"
)

// dispatch routes a received message. Identify changes connection state and is consumed here,
// everything else goes to the inbound queue, whether the session is connected or not.
func (s *Session) dispatch(msg protocol.Message, from netip.AddrPort) {
	switch m := msg.(type) {
	case protocol.Identify:
		s.identify(m, from)
	case protocol.Update, protocol.Extra:
		s.inbound.Push(msg)
	case protocol.Unknown:
		// no version negotiation on the wire, let the game decide what to do with it
		s.logger.Debug("forwarding unknown message", slog.String("type", string(m.Type())))
		s.inbound.Push(msg)
	}
}

func (s *Session) identify(msg protocol.Identify, from netip.AddrPort) {
	sender := from.Addr()

	s.peerMu.Lock()
	if !s.peer.IsValid() {
		s.peer = sender
	}
	peer := s.peer
	s.peerMu.Unlock()

	if peer != sender {
		s.logger.Warn("ignore identify from unknown peer",
			slog.String("peer", peer.String()),
			slog.String("from", from.String()),
		)
		return
	}

	if !s.connected.Swap(true) {
		s.logger.Info("peer connected", slog.String("peer", peer.String()), slog.String("announced", msg.Address))
	}

	if !s.initiator.Load() {
		// answer, so the connecting side knows we are here
		s.outbound.Push(protocol.Identify{Address: s.local.Addr().String()})
	}
}
