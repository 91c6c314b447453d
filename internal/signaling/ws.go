package signaling

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/medicox/meeting-signaling/internal/metrics"
	"github.com/medicox/meeting-signaling/internal/ratelimit"
)

const wsWriteWait = 10 * time.Second

// wsPeer adapts a gorilla connection to Peer. writeLoop is the only writer;
// Send and Ping hand work to it through channels.
type wsPeer struct {
	conn *websocket.Conn
	send chan []byte
	ping chan struct{}
	done chan struct{}

	closeOnce   sync.Once
	closeCode   int
	closeReason string
}

func newWSPeer(conn *websocket.Conn, queueLen int) *wsPeer {
	return &wsPeer{
		conn: conn,
		send: make(chan []byte, queueLen),
		ping: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (p *wsPeer) Send(frame []byte) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.send <- frame:
		return true
	default:
		return false
	}
}

func (p *wsPeer) Ping() {
	select {
	case p.ping <- struct{}{}:
	default:
	}
}

func (p *wsPeer) Close() {
	p.closeWith(websocket.CloseNormalClosure, "")
}

func (p *wsPeer) closeWith(code int, reason string) {
	p.closeOnce.Do(func() {
		p.closeCode = code
		p.closeReason = reason
		close(p.done)
	})
}

func (p *wsPeer) writeLoop() {
	defer p.conn.Close()
	for {
		select {
		case frame := <-p.send:
			if err := p.write(frame); err != nil {
				p.closeWith(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-p.ping:
			if err := p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				p.closeWith(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-p.done:
			p.flush()
			_ = p.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(p.closeCode, p.closeReason), time.Now().Add(wsWriteWait))
			return
		}
	}
}

// flush writes frames queued before close, such as a final error frame.
func (p *wsPeer) flush() {
	for {
		select {
		case frame := <-p.send:
			if err := p.write(frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (p *wsPeer) write(frame []byte) error {
	_ = p.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return p.conn.WriteMessage(websocket.TextMessage, frame)
}

// serveConn runs the read side of one upgraded connection until it fails,
// then disconnects it from the relay.
func (s *Server) serveConn(conn *websocket.Conn) {
	peer := newWSPeer(conn, s.sendQueueLength())
	go peer.writeLoop()

	id := s.relay.Connect(peer)
	if id == "" {
		return
	}
	defer s.relay.Disconnect(id)

	idle := s.idleTimeout()
	conn.SetReadLimit(s.maxMessageBytes())
	_ = conn.SetReadDeadline(time.Now().Add(idle))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(idle))
		s.relay.MarkAlive(id)
		return nil
	})

	var limiter *ratelimit.TokenBucket
	if rate := s.cfg.MaxMessagesPerSecond; rate > 0 {
		limiter = ratelimit.NewPerSecond(nil, int64(rate))
	}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			switch {
			case errors.Is(err, websocket.ErrReadLimit):
				s.metrics.Inc(metrics.MessageTooLarge)
				s.log.Info("signaling frame too large", "conn_id", id)
			case isTimeout(err):
				s.log.Debug("signaling connection idle", "conn_id", id)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(idle))

		// The frame is read before the limit is applied so the close
		// handshake is not lost to unread bytes.
		if limiter != nil && !limiter.Allow(1) {
			s.metrics.Inc(metrics.MessageRateLimited)
			s.relay.SendError(id, "rate limit exceeded")
			peer.closeWith(websocket.ClosePolicyViolation, "rate limit exceeded")
			return
		}
		if msgType != websocket.TextMessage {
			s.relay.SendError(id, "expected a text frame containing JSON")
			continue
		}
		s.relay.HandleMessage(id, data)
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
