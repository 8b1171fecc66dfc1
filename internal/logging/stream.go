package logging

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// StreamLogger broadcasts log records to connected WebSocket clients and
// keeps a bounded replay history for late joiners.
type StreamLogger struct {
	mu        sync.RWMutex
	clients   map[*websocket.Conn]struct{}
	broadcast chan LogMessage
	stopCh    chan struct{}

	historyMu  sync.RWMutex
	history    []LogMessage
	historyCap int
	seq        uint64
}

// LogMessage is the wire format for streamed log records.
type LogMessage struct {
	ID        uint64                 `json:"id,omitempty"`
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

var (
	globalStreamLogger *StreamLogger
	streamLoggerOnce   sync.Once
)

// GetStreamLogger returns the process-wide stream logger, starting it on
// first use and attaching it to logrus as a hook.
func GetStreamLogger() *StreamLogger {
	streamLoggerOnce.Do(func() {
		globalStreamLogger = &StreamLogger{
			clients:    make(map[*websocket.Conn]struct{}),
			broadcast:  make(chan LogMessage, 256),
			stopCh:     make(chan struct{}),
			historyCap: 200,
		}
		go globalStreamLogger.run()
		log.AddHook(globalStreamLogger)
	})
	return globalStreamLogger
}

// Levels implements logrus.Hook.
func (s *StreamLogger) Levels() []log.Level {
	return []log.Level{log.ErrorLevel, log.WarnLevel, log.InfoLevel, log.DebugLevel}
}

// Fire implements logrus.Hook. Drops messages rather than blocking the
// logging path when the broadcast buffer is full.
func (s *StreamLogger) Fire(entry *log.Entry) error {
	fields := make(map[string]interface{}, len(entry.Data))
	for k, v := range entry.Data {
		fields[k] = v
	}
	msg := LogMessage{
		ID:        atomic.AddUint64(&s.seq, 1),
		Timestamp: entry.Time.Format(time.RFC3339Nano),
		Level:     entry.Level.String(),
		Message:   entry.Message,
		Fields:    fields,
	}
	select {
	case s.broadcast <- msg:
	default:
	}
	return nil
}

func (s *StreamLogger) run() {
	for {
		select {
		case <-s.stopCh:
			return
		case msg := <-s.broadcast:
			s.appendHistory(msg)
			var dead []*websocket.Conn
			s.mu.RLock()
			for conn := range s.clients {
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					dead = append(dead, conn)
				}
			}
			s.mu.RUnlock()
			for _, conn := range dead {
				s.drop(conn)
			}
		}
	}
}

func (s *StreamLogger) appendHistory(msg LogMessage) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	s.history = append(s.history, msg)
	if len(s.history) > s.historyCap {
		s.history = s.history[len(s.history)-s.historyCap:]
	}
}

func (s *StreamLogger) drop(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	_ = conn.Close()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(_ *http.Request) bool { return true },
}

// HandleConnection upgrades the request, replays history, and registers the
// client for live broadcasts until it disconnects.
func (s *StreamLogger) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	s.historyMu.RLock()
	replay := make([]LogMessage, len(s.history))
	copy(replay, s.history)
	s.historyMu.RUnlock()
	for _, msg := range replay {
		if err := conn.WriteJSON(msg); err != nil {
			_ = conn.Close()
			return
		}
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	// Reader loop only to observe close frames.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.drop(conn)
				return
			}
		}
	}()
}
