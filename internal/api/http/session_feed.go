package apihttp

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	feedWriteWait  = 10 * time.Second
	feedPongWait   = 60 * time.Second
	feedPingPeriod = 30 * time.Second
	feedReadLimit  = 512
	feedQueueSize  = 16
)

// feedFrame is one JSON message on /ws.
type feedFrame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type feedSubscriber struct {
	feed *sessionFeed
	conn *websocket.Conn
	out  chan []byte
}

// sessionFeed pushes transcode session changes to websocket subscribers.
// While the loop is busy only the newest frame per type is kept, so a burst
// of changes collapses into the final state.
type sessionFeed struct {
	mu      sync.Mutex
	pending map[string][]byte
	order   []string
	wake    chan struct{}

	subs  map[*feedSubscriber]struct{}
	count atomic.Int32
	join  chan *feedSubscriber
	leave chan *feedSubscriber

	done     chan struct{}
	doneOnce sync.Once
	logger   *slog.Logger
}

func newSessionFeed(logger *slog.Logger) *sessionFeed {
	return &sessionFeed{
		pending: make(map[string][]byte),
		wake:    make(chan struct{}, 1),
		subs:    make(map[*feedSubscriber]struct{}),
		join:    make(chan *feedSubscriber),
		leave:   make(chan *feedSubscriber),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

func (f *sessionFeed) run() {
	for {
		select {
		case <-f.done:
			for sub := range f.subs {
				_ = sub.conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(2*time.Second),
				)
				f.drop(sub)
			}
			return
		case sub := <-f.join:
			f.subs[sub] = struct{}{}
			f.count.Store(int32(len(f.subs)))
			f.logger.Debug("session feed subscriber joined", slog.Int("subscribers", len(f.subs)))
		case sub := <-f.leave:
			if _, ok := f.subs[sub]; ok {
				f.drop(sub)
				f.logger.Debug("session feed subscriber left", slog.Int("subscribers", len(f.subs)))
			}
		case <-f.wake:
			f.flush()
		}
	}
}

// flush fans the pending frames out. A subscriber whose queue is full is
// disconnected; it resyncs from the snapshot when it reconnects.
func (f *sessionFeed) flush() {
	f.mu.Lock()
	frames := make([][]byte, 0, len(f.order))
	for _, typ := range f.order {
		frames = append(frames, f.pending[typ])
	}
	clear(f.pending)
	f.order = f.order[:0]
	f.mu.Unlock()

	for _, frame := range frames {
		for sub := range f.subs {
			select {
			case sub.out <- frame:
			default:
				f.logger.Debug("session feed subscriber too slow, dropping")
				f.drop(sub)
			}
		}
	}
}

func (f *sessionFeed) drop(sub *feedSubscriber) {
	delete(f.subs, sub)
	close(sub.out)
	f.count.Store(int32(len(f.subs)))
}

// Close disconnects every subscriber and stops the loop.
func (f *sessionFeed) Close() {
	f.doneOnce.Do(func() { close(f.done) })
}

func (f *sessionFeed) subscribers() int {
	return int(f.count.Load())
}

// Publish queues a frame of msgType, replacing one of the same type that
// has not been sent yet.
func (f *sessionFeed) Publish(msgType string, data any) {
	if f.subscribers() == 0 {
		return
	}
	payload, err := json.Marshal(feedFrame{Type: msgType, Data: data})
	if err != nil {
		f.logger.Error("session feed marshal failed", slog.String("error", err.Error()))
		return
	}
	f.mu.Lock()
	if _, queued := f.pending[msgType]; !queued {
		f.order = append(f.order, msgType)
	}
	f.pending[msgType] = payload
	f.mu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
	}
}

func feedUpgrader(allowed []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || originAllowed(allowed, origin)
		},
	}
}

func (s *feedSubscriber) writeLoop() {
	ping := time.NewTicker(feedPingPeriod)
	defer func() {
		ping.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ping.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop only services pongs and close frames; clients never send data.
func (s *feedSubscriber) readLoop() {
	defer func() {
		select {
		case s.feed.leave <- s:
		case <-s.feed.done:
		}
		s.conn.Close()
	}()
	s.conn.SetReadLimit(feedReadLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(feedPongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(feedPongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}
