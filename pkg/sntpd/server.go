package sntpd

import (
	"context"
	"errors"
	"log"
	"net"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var ErrAlreadyRunning = errors.New("sntpd: already running")

type Config struct {
	ListenAddr string

	// Network selects the UDP flavor ("udp", "udp4", "udp6"). Defaults to "udp".
	Network string

	// Delay is added to the receive and transmit timestamps of every reply,
	// simulating a server clock that drifts ahead (or, if negative, behind)
	// of the wall clock.
	Delay time.Duration

	// Workers is the size of the reply worker pool. Defaults to 10.
	Workers int

	// QueueSize bounds the receiver-to-worker queue. Defaults to 1024.
	QueueSize int

	// Clock defaults to a system UTC clock.
	Clock Clock

	// Stratum defaults to 0: this server is not an authoritative source.
	Stratum uint8

	// RefID is the reference identifier, 0 unless set.
	RefID uint32

	// LeapIndicator defaults to 0 (no warning).
	LeapIndicator uint8

	// Precision defaults to 0.
	Precision int8

	// RootDelay and RootDispersion are optional fixed-point values.
	RootDelay      uint32
	RootDispersion uint32

	// ReferenceTime, if set, is encoded into the reference timestamp field.
	ReferenceTime time.Time

	// RateLimitPerSecond enables a per-IP limiter. Set to 0 to disable.
	RateLimitPerSecond float64
	RateLimitBurst     int

	// EventBuffer is the buffer size per subscriber.
	EventBuffer int
	// HistorySize is how many recent events are kept.
	HistorySize int

	// Hook is called by a worker after parsing and basic checks, before
	// responding. If it returns a non-empty string, the request is dropped.
	Hook PacketHook

	// Logger for debug/info messages. If nil, no logging is performed.
	Logger *log.Logger

	// Debug enables verbose debug logging.
	Debug bool
}

func (c Config) normalize() Config {
	out := c
	if out.ListenAddr == "" {
		out.ListenAddr = "0.0.0.0:123"
	}
	if out.Network == "" {
		out.Network = "udp"
	}
	if out.Clock == nil {
		out.Clock = systemClock{}
	}
	if out.Workers <= 0 {
		out.Workers = 10
	}
	if out.QueueSize <= 0 {
		out.QueueSize = 1024
	}
	if out.EventBuffer <= 0 {
		out.EventBuffer = 128
	}
	if out.HistorySize <= 0 {
		out.HistorySize = 500
	}
	if out.RateLimitBurst <= 0 {
		out.RateLimitBurst = 5
	}
	return out
}

func (c Config) response() responseConfig {
	return responseConfig{
		LeapIndicator:  c.LeapIndicator,
		Stratum:        c.Stratum,
		Precision:      c.Precision,
		RootDelay:      c.RootDelay,
		RootDispersion: c.RootDispersion,
		RefID:          c.RefID,
		ReferenceTime:  c.ReferenceTime,
	}
}

// Server binds one UDP socket and runs the receive-queue-reply pipeline
// over it: a single receiver goroutine reads and classifies datagrams, a
// fixed pool of workers sends the replies. The receiver only ever reads
// from the socket and the workers only ever write to it.
type Server struct {
	cfg Config

	mu      sync.RWMutex
	conn    *net.UDPConn
	running bool

	queue   *requestQueue
	hub     *eventHub
	metrics *metrics
	prom    *promMetrics
	limiter *limiter

	recvWG   sync.WaitGroup
	workWG   sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
}

func New(cfg Config) *Server {
	cfg = cfg.normalize()
	return &Server{
		cfg:     cfg,
		queue:   newRequestQueue(cfg.QueueSize),
		hub:     newEventHub(cfg.HistorySize),
		metrics: newMetrics(),
		prom:    newPromMetrics(),
		limiter: newLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
		stopCh:  make(chan struct{}),
	}
}

func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.stopOnce = sync.Once{}
	s.queue = newRequestQueue(s.cfg.QueueSize)
	s.mu.Unlock()

	udpAddr, err := net.ResolveUDPAddr(s.cfg.Network, s.cfg.ListenAddr)
	if err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	}

	conn, err := net.ListenUDP(s.cfg.Network, udpAddr)
	if err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.metrics.reset(time.Now().UTC())
	s.mu.Unlock()

	if s.cfg.Logger != nil {
		s.cfg.Logger.Printf("[INFO] SNTP server started on %s (delay %s, %d workers)",
			s.cfg.ListenAddr, s.cfg.Delay, s.cfg.Workers)
	}

	queue := s.queue
	stopCh := s.stopCh

	for i := 0; i < s.cfg.Workers; i++ {
		s.workWG.Add(1)
		go s.workerLoop(conn, queue, i)
	}

	s.recvWG.Add(1)
	go s.receiveLoop(conn, queue, stopCh)

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Stop()
		case <-stopCh:
		}
	}()
	return nil
}

// Addr returns the current bound local address if running, otherwise the
// configured ListenAddr.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.conn != nil {
		return s.conn.LocalAddr().String()
	}
	return s.cfg.ListenAddr
}

// Stop closes the socket exactly once, waits for the receiver to exit,
// then closes the queue and joins the workers. Items still queued at that
// point are drained by the workers; items never received are simply lost.
func (s *Server) Stop() error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		conn := s.conn
		queue := s.queue
		s.conn = nil
		s.running = false
		close(s.stopCh)
		s.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		s.recvWG.Wait()
		if queue != nil {
			queue.close()
		}
		if s.cfg.Logger != nil {
			s.cfg.Logger.Printf("[INFO] SNTP server stopped")
		}
	})

	s.workWG.Wait()
	return nil
}

func (s *Server) Subscribe() (<-chan RequestEvent, func()) {
	return s.hub.subscribe(s.cfg.EventBuffer)
}

func (s *Server) History() []RequestEvent {
	return s.hub.snapshotHistory()
}

func (s *Server) Metrics() MetricsSnapshot {
	return s.metrics.snapshot()
}

// QueueDepth reports how many requests are waiting for a worker.
func (s *Server) QueueDepth() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.queue == nil {
		return 0
	}
	return s.queue.depth()
}

// PromRegistry exposes the server's private Prometheus registry so a
// monitoring listener can serve it.
func (s *Server) PromRegistry() *prometheus.Registry {
	return s.prom.registry
}

func (s *Server) debugf(format string, args ...any) {
	if s.cfg.Debug && s.cfg.Logger != nil {
		s.cfg.Logger.Printf("[DEBUG] "+format, args...)
	}
}

func (s *Server) infof(format string, args ...any) {
	if s.cfg.Logger != nil {
		s.cfg.Logger.Printf("[INFO] "+format, args...)
	}
}
