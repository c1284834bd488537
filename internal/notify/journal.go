package notify

import (
	"strings"
	"sync"
	"time"
	"trade_desk/internal/models"
	"trade_desk/pkg/logger"
)

const DefaultCapacity = 500

// Sink — куда пишут торговые события. Fire-and-forget, ошибок не возвращает.
type Sink interface {
	AddLog(message string, severity models.Severity)
}

// Journal — ограниченный журнал событий для дашборда.
// Каждая запись дублируется в zap и рассылается подписчикам (websocket, telegram).
type Journal struct {
	mu       sync.Mutex
	capacity int
	entries  []models.LogEntry
	subs     map[int]chan models.LogEntry
	nextID   int
	now      func() time.Time
}

func NewJournal(capacity int) *Journal {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Journal{
		capacity: capacity,
		entries:  make([]models.LogEntry, 0, capacity),
		subs:     make(map[int]chan models.LogEntry),
		now:      time.Now,
	}
}

func (j *Journal) AddLog(message string, severity models.Severity) {
	if severity == "" {
		severity = models.SeverityInfo
	}
	entry := models.LogEntry{Time: j.now(), Message: message, Severity: severity}

	switch severity {
	case models.SeverityError:
		logger.Error("[JOURNAL] %s", message)
	case models.SeverityWarning:
		logger.Warn("[JOURNAL] %s", message)
	default:
		logger.Info("[JOURNAL] %s: %s", severity, message)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	j.entries = append(j.entries, entry)
	if len(j.entries) > j.capacity {
		j.entries = append(j.entries[:0:0], j.entries[len(j.entries)-j.capacity:]...)
	}

	for _, ch := range j.subs {
		// медленный подписчик теряет запись, журнал не ждёт
		select {
		case ch <- entry:
		default:
		}
	}
}

// Entries — копия журнала, старые первыми.
func (j *Journal) Entries() []models.LogEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]models.LogEntry(nil), j.entries...)
}

// Subscribe отдаёт канал новых записей и функцию отписки.
func (j *Journal) Subscribe(buffer int) (<-chan models.LogEntry, func()) {
	_, ch, unsubscribe := j.SubscribeWithBacklog(buffer, 0)
	return ch, unsubscribe
}

// SubscribeWithBacklog — последние n записей и подписка на следующие, взятые под одной блокировкой:
// запись попадает либо в хвост, либо в канал, но не в оба.
func (j *Journal) SubscribeWithBacklog(buffer, n int) ([]models.LogEntry, <-chan models.LogEntry, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan models.LogEntry, buffer)

	j.mu.Lock()
	var backlog []models.LogEntry
	if n > 0 {
		start := len(j.entries) - n
		if start < 0 {
			start = 0
		}
		backlog = append(backlog, j.entries[start:]...)
	}
	id := j.nextID
	j.nextID++
	j.subs[id] = ch
	j.mu.Unlock()

	var once sync.Once
	return backlog, ch, func() {
		once.Do(func() {
			j.mu.Lock()
			delete(j.subs, id)
			j.mu.Unlock()
			close(ch)
		})
	}
}

// ParseSeverity: неизвестное значение трактуется как info.
func ParseSeverity(s string) models.Severity {
	switch sev := models.Severity(strings.ToLower(strings.TrimSpace(s))); sev {
	case models.SeveritySuccess, models.SeverityWarning, models.SeverityError:
		return sev
	default:
		return models.SeverityInfo
	}
}
