package notify

import (
	"net/http"
	"sync/atomic"
	"time"
	"trade_desk/internal/models"
	"trade_desk/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
	wsBacklog    = 50
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// LogStream — живая лента журнала по websocket: сначала хвост журнала, потом новые записи.
type LogStream struct {
	journal *Journal
	clients atomic.Int64
}

func NewLogStream(j *Journal) *LogStream {
	return &LogStream{journal: j}
}

func (s *LogStream) Clients() int64 { return s.clients.Load() }

func (s *LogStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("[WS] upgrade: %v", err)
		return
	}
	s.clients.Add(1)
	defer s.clients.Add(-1)
	defer conn.Close()

	backlog, entries, unsubscribe := s.journal.SubscribeWithBacklog(128, wsBacklog)
	defer unsubscribe()

	// читаем только чтобы заметить закрытие со стороны клиента
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for _, e := range backlog {
		if err := writeEntry(conn, e); err != nil {
			return
		}
	}

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case e, ok := <-entries:
			if !ok {
				return
			}
			if err := writeEntry(conn, e); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeEntry(conn *websocket.Conn, e models.LogEntry) error {
	payload, err := sonic.Marshal(e)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteMessage(websocket.TextMessage, payload)
}
