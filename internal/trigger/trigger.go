package trigger

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Trigger считает серию быстрых нажатий и срабатывает, когда счетчик
// достигает порога. Не потокобезопасен: доступ сериализует Registry.
type Trigger struct {
	window    time.Duration
	threshold int

	pressCount       int
	lastPressAt      time.Time
	hasPreviousPress bool
}

// NewTrigger создает счетчик с окном между нажатиями и порогом срабатывания
func NewTrigger(window time.Duration, threshold int) *Trigger {
	return &Trigger{
		window:    window,
		threshold: threshold,
	}
}

// Signal учитывает одно нажатие в момент at и сообщает, сработал ли триггер.
// Срабатывание происходит только при счетчике, равном порогу, счетчик после
// этого не сбрасывается.
func (t *Trigger) Signal(at time.Time) (count int, fired bool) {
	if t.hasPreviousPress && at.Sub(t.lastPressAt) < t.window {
		t.pressCount++
	} else {
		t.pressCount = 1
	}
	t.lastPressAt = at
	t.hasPreviousPress = true

	return t.pressCount, t.pressCount == t.threshold
}

// Count возвращает текущее значение счетчика
func (t *Trigger) Count() int {
	return t.pressCount
}

// Result - итог обработки одного сигнала. CaptureID заполнен только
// на сигнале, завершившем жест.
type Result struct {
	Count     int
	Triggered bool
	CaptureID uuid.UUID
}

// session - состояние жеста и выданное разрешение на отправку видео
type session struct {
	trigger          *Trigger
	captureID        uuid.UUID
	captureExpiresAt time.Time
}

func (s *session) hasCapture(now time.Time) bool {
	return s.captureID != uuid.Nil && now.Before(s.captureExpiresAt)
}

// idle - последнее нажатие вне окна и живого разрешения нет.
// Такое состояние ничем не отличается от отсутствующего.
func (s *session) idle(now time.Time, window time.Duration) bool {
	return now.Sub(s.trigger.lastPressAt) >= window && !s.hasCapture(now)
}

// Registry хранит состояние жеста для каждой активной сессии
type Registry struct {
	mu         sync.Mutex
	window     time.Duration
	threshold  int
	captureTTL time.Duration
	now        func() time.Time
	newID      func() uuid.UUID
	sessions   map[string]*session
	lastSweep  time.Time
}

// NewRegistry создает реестр счетчиков с общими параметрами окна и порога.
// captureTTL - время жизни идентификатора захвата, выданного при срабатывании.
func NewRegistry(window time.Duration, threshold int, captureTTL time.Duration) *Registry {
	return &Registry{
		window:     window,
		threshold:  threshold,
		captureTTL: captureTTL,
		now:        time.Now,
		newID:      uuid.New,
		sessions:   make(map[string]*session),
	}
}

// WithClock подменяет источник времени
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Signal учитывает нажатие в рамках сессии sessionID. При срабатывании
// выдается новый идентификатор захвата, предыдущий перестает действовать.
func (r *Registry) Signal(sessionID string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.sweep(now)

	s, ok := r.sessions[sessionID]
	if !ok {
		s = &session{trigger: NewTrigger(r.window, r.threshold)}
		r.sessions[sessionID] = s
	}
	count, fired := s.trigger.Signal(now)
	res := Result{Count: count, Triggered: fired}
	if fired {
		s.captureID = r.newID()
		s.captureExpiresAt = now.Add(r.captureTTL)
		res.CaptureID = s.captureID
	}
	return res
}

// Consume принимает идентификатор захвата один раз. Возвращает false, если
// идентификатор не выдавался этой сессии, истек или уже использован.
func (r *Registry) Consume(sessionID string, captureID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok || captureID == uuid.Nil {
		return false
	}
	now := r.now()
	if !s.hasCapture(now) || s.captureID != captureID {
		return false
	}
	s.captureID = uuid.Nil
	s.captureExpiresAt = time.Time{}
	if s.idle(now, r.window) {
		delete(r.sessions, sessionID)
	}
	return true
}

// Discard удаляет состояние завершенной сессии
func (r *Registry) Discard(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

// sweep удаляет простаивающие сессии не чаще раза в окно.
// Сессии, истекшие по SESSION_TTL без выхода, уходят отсюда же.
func (r *Registry) sweep(now time.Time) {
	if now.Sub(r.lastSweep) < r.window {
		return
	}
	r.lastSweep = now
	for id, s := range r.sessions {
		if s.idle(now, r.window) {
			delete(r.sessions, id)
		}
	}
}

func (r *Registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
