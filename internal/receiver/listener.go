// Package receiver implements the TCP ingestion listener agents push their reports to.
package receiver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/internet-measurement-network/monitoring/internal/models"
	"github.com/internet-measurement-network/monitoring/internal/store"
	"github.com/internet-measurement-network/monitoring/internal/telemetry"
)

const (
	// maxLineBytes caps the report line, newline included
	maxLineBytes = 64 * 1024
	// maxLoggedLine caps how much of a rejected line is logged
	maxLoggedLine = 256

	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second

	journalTimeout   = 2 * time.Second
	journalQueueSize = 1024
)

// ErrLineTooLong is returned when no newline arrives within maxLineBytes
var ErrLineTooLong = errors.New("report line too long")

// Config holds the listener settings
type Config struct {
	Port int
	// MaxConnections bounds concurrently handled connections. Zero means unbounded.
	MaxConnections int
	// ReadTimeout bounds the wait for the report line. Zero means no timeout.
	ReadTimeout time.Duration
	// WriteTimeout bounds writing the acknowledgment. Zero means no timeout.
	WriteTimeout time.Duration
}

// AlertJournal receives a copy of every stored alert
type AlertJournal interface {
	RecordAlert(ctx context.Context, alert models.Alert) error
}

// Option configures a Listener
type Option func(*Listener)

// WithLogger sets the listener logger
func WithLogger(logger *zap.Logger) Option {
	return func(l *Listener) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMetrics records ingestion counters
func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(l *Listener) {
		l.metrics = metrics
	}
}

// WithJournal publishes every stored alert to journal
func WithJournal(journal AlertJournal) Option {
	return func(l *Listener) {
		l.journal = journal
	}
}

// Listener accepts agent connections and turns their reports into alerts
type Listener struct {
	cfg      Config
	registry *store.AgentStore
	alerts   *store.AlertStore
	logger   *zap.Logger
	metrics  *telemetry.Metrics
	journal  AlertJournal

	ln       net.Listener
	slots    chan struct{}
	done     chan struct{}
	loopDone chan struct{}

	stopping atomic.Bool
	stopOnce sync.Once
	handlers sync.WaitGroup

	journalQueue    chan models.Alert
	journalStop     chan struct{}
	journalDone     chan struct{}
	journalStopOnce sync.Once
}

// Start binds the ingestion port and starts accepting connections.
// registry may be nil, in which case reports only produce alerts.
func Start(cfg Config, registry *store.AgentStore, alerts *store.AlertStore, opts ...Option) (*Listener, error) {
	if alerts == nil {
		return nil, errors.New("alert store is required")
	}

	l := &Listener{
		cfg:      cfg,
		registry: registry,
		alerts:   alerts,
		logger:   zap.NewNop(),
		done:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	if cfg.MaxConnections > 0 {
		l.slots = make(chan struct{}, cfg.MaxConnections)
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on ingestion port %d: %w", cfg.Port, err)
	}
	l.ln = ln

	l.journalStop = make(chan struct{})
	l.journalDone = make(chan struct{})
	if l.journal != nil {
		l.journalQueue = make(chan models.Alert, journalQueueSize)
		go l.journalLoop()
	} else {
		close(l.journalDone)
	}

	l.logger.Info("Ingestion listener started",
		zap.String("addr", ln.Addr().String()),
		zap.Int("max_connections", cfg.MaxConnections),
		zap.Duration("read_timeout", cfg.ReadTimeout))

	go l.acceptLoop()

	return l, nil
}

// Addr returns the bound address
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Running reports whether the listener is still accepting connections
func (l *Listener) Running() bool {
	select {
	case <-l.loopDone:
		return false
	default:
		return true
	}
}

// Stop closes the listening socket and waits for in-flight handlers until ctx is done.
// The listener is stopped once Stop returns, even if some handlers are still running.
func (l *Listener) Stop(ctx context.Context) error {
	var closeErr error
	l.stopOnce.Do(func() {
		l.stopping.Store(true)
		close(l.done)
		if err := l.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			closeErr = fmt.Errorf("failed to close ingestion listener: %w", err)
		}
	})

	// No handler is added once the accept loop has exited
	<-l.loopDone

	drained := make(chan struct{})
	go func() {
		l.handlers.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-ctx.Done():
		l.logger.Warn("Ingestion listener stopped with handlers still running", zap.Error(ctx.Err()))
	}

	// The journal flushes what is queued until ctx is done
	l.journalStopOnce.Do(func() { close(l.journalStop) })
	select {
	case <-l.journalDone:
		l.logger.Info("Ingestion listener stopped")
	case <-ctx.Done():
		l.logger.Warn("Ingestion listener stopped with alerts still queued for the journal",
			zap.Int("queued", len(l.journalQueue)))
	}

	return closeErr
}

func (l *Listener) acceptLoop() {
	defer close(l.loopDone)

	var delay time.Duration
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if l.stopping.Load() || errors.Is(err, net.ErrClosed) {
				return
			}

			if delay == 0 {
				delay = minAcceptDelay
			} else {
				delay = min(delay*2, maxAcceptDelay)
			}
			l.logger.Warn("Failed to accept connection", zap.Error(err), zap.Duration("retry_in", delay))

			select {
			case <-time.After(delay):
			case <-l.done:
				return
			}
			continue
		}
		delay = 0

		// Wait for a free slot; further connections queue in the backlog meanwhile
		if !l.acquire() {
			conn.Close()
			return
		}

		l.handlers.Add(1)
		go func() {
			defer l.handlers.Done()
			defer l.release()
			l.handle(conn)
		}()
	}
}

// acquire waits for a connection slot; it returns false once the listener is stopping
func (l *Listener) acquire() bool {
	if l.slots == nil {
		return true
	}

	select {
	case l.slots <- struct{}{}:
		return true
	case <-l.done:
		return false
	}
}

func (l *Listener) release() {
	if l.slots != nil {
		<-l.slots
	}
}

func (l *Listener) handle(conn net.Conn) {
	ctx := context.Background()
	l.metrics.ConnectionOpened(ctx)
	defer l.metrics.ConnectionClosed(ctx)

	defer func() {
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			l.logger.Debug("Failed to close connection", zap.Error(err))
		}
	}()

	remote := remoteIP(conn.RemoteAddr())
	logger := l.logger.With(zap.String("remote", remote))

	if l.cfg.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(l.cfg.ReadTimeout))
	}

	line, err := readLine(conn)
	if err != nil {
		logger.Warn("Failed to read report", zap.Error(err))
		l.metrics.RecordRejected(ctx, rejectReason(err))
		return
	}

	report, err := ParseReport(line)
	if err != nil {
		logger.Warn("Rejected report", zap.String("line", truncate(line, maxLoggedLine)), zap.Error(err))
		l.metrics.RecordRejected(ctx, rejectReason(err))
		return
	}

	alert := report.Alert()
	l.alerts.Append(alert)
	if l.registry != nil {
		l.registry.Update(report.Sample(), remote)
	}
	l.metrics.RecordAlert(ctx, report.MetricType, alert.Severity)

	if l.cfg.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(l.cfg.WriteTimeout))
	}
	if _, err := io.WriteString(conn, Ack+"\n"); err != nil {
		logger.Warn("Failed to acknowledge report", zap.String("agent_id", report.AgentID), zap.Error(err))
	}

	logger.Info("Alert received",
		zap.String("agent_id", report.AgentID),
		zap.String("metric_type", report.MetricType),
		zap.Float64("value", report.Value),
		zap.String("severity", string(alert.Severity)))

	l.enqueueJournal(alert)
}

// enqueueJournal never blocks the connection; alerts are dropped when the queue is full
func (l *Listener) enqueueJournal(alert models.Alert) {
	if l.journalQueue == nil {
		return
	}

	select {
	case l.journalQueue <- alert:
	default:
		l.logger.Warn("Journal queue full, alert not journaled", zap.String("agent_id", alert.AgentID))
		l.metrics.RecordRejected(context.Background(), "journal_full")
	}
}

func (l *Listener) journalLoop() {
	defer close(l.journalDone)

	for {
		select {
		case alert := <-l.journalQueue:
			l.recordJournal(alert)
		case <-l.journalStop:
			for {
				select {
				case alert := <-l.journalQueue:
					l.recordJournal(alert)
				default:
					return
				}
			}
		}
	}
}

func (l *Listener) recordJournal(alert models.Alert) {
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()

	if err := l.journal.RecordAlert(ctx, alert); err != nil {
		l.logger.Warn("Failed to journal alert", zap.String("agent_id", alert.AgentID), zap.Error(err))
	}
}

// readLine reads a single report line of at most maxLineBytes.
// A final line without a newline is accepted once the peer closes its side.
func readLine(r io.Reader) (string, error) {
	reader := bufio.NewReaderSize(r, maxLineBytes)

	data, err := reader.ReadSlice('\n')
	switch {
	case errors.Is(err, bufio.ErrBufferFull):
		return "", fmt.Errorf("%w: no newline within %d bytes", ErrLineTooLong, maxLineBytes)
	case errors.Is(err, io.EOF) && len(data) > 0:
	case err != nil:
		return "", err
	}

	line := strings.TrimSuffix(string(data), "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidValue):
		return "invalid_value"
	case errors.Is(err, ErrLineTooLong):
		return "line_too_long"
	case errors.Is(err, ErrMalformedReport):
		return "malformed"
	default:
		return "read_error"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func remoteIP(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
