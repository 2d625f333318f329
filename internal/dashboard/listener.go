package dashboard

import (
	"bufio"
	"context"
	"net"
	"strconv"

	"github.com/google/uuid"
	"github.com/hotfire/controller/internal/applog"
	"github.com/hotfire/controller/internal/config"
	"go.uber.org/zap"
)

// Handler processes one parsed inbound message (*Actuate, *Ignition,
// or *EmergencyStop). Wired to internal/command's Dispatcher by the
// supervisor.
type Handler func(msg interface{})

// Listener accepts exactly one dashboard connection at a time on a
// fixed TCP port (spec.md §4.G: "single TCP connection"), grounded on
// the teacher's internal/websocket/hub.go Hub, ported from a WebSocket
// upgrade to a plain net.Listener.
type Listener struct {
	ln      net.Listener
	cfg     *config.Config
	outbox  *Outbox
	handler Handler
}

// Listen binds dashboard_port and returns a Listener ready to Run.
func Listen(cfg *config.Config, outbox *Outbox, handler Handler) (*Listener, error) {
	ln, err := net.Listen("tcp", addrForPort(cfg.DashboardPort))
	if err != nil {
		return nil, err
	}
	return &Listener{ln: ln, cfg: cfg, outbox: outbox, handler: handler}, nil
}

func addrForPort(port int) string {
	return ":" + strconv.Itoa(port)
}

// Run accepts connections one at a time until ctx is cancelled.
// Disconnection is not an error (spec.md §7: "the controller keeps
// running in headless mode and re-accepts") — Run loops back to Accept
// after every connection ends.
func (l *Listener) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		_ = l.ln.Close()
	}()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			applog.Warn("dashboard: accept failed", zap.Error(err))
			continue
		}
		l.handleConn(ctx, conn)
	}
}

// Close releases the bound listener socket.
func (l *Listener) Close() error { return l.ln.Close() }

// Addr returns the listener's bound network address, useful when
// dashboard_port is 0 and the kernel picked an ephemeral port.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

func (l *Listener) handleConn(ctx context.Context, conn net.Conn) {
	connID := uuid.New().String()
	log := applog.With("dashboard").With(zap.String("conn", connID))
	log.Info("dashboard connected")
	defer log.Info("dashboard disconnected")
	defer conn.Close()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Config must be the first message written to conn (spec.md
	// §4.G.1/§5), so it's sent synchronously here before writerLoop
	// starts draining the outbox — otherwise a backlog already sitting
	// in the safety lane could race ahead of it.
	if err := l.sendConfig(conn); err != nil {
		log.Warn("dashboard: failed to send initial config", zap.Error(err))
		return
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		l.writerLoop(connCtx, conn, log)
	}()

	l.readerLoop(conn, log)
	cancel()
	<-writerDone
}

func (l *Listener) sendConfig(conn net.Conn) error {
	return writeJSON(conn, NewConfigMsg(l.cfg))
}

func (l *Listener) writerLoop(ctx context.Context, conn net.Conn, log *zap.Logger) {
	done := ctx.Done()
	for {
		msg, ok := l.outbox.Next(done)
		if !ok {
			return
		}
		if err := writeJSON(conn, msg); err != nil {
			log.Warn("dashboard: write failed", zap.Error(err))
			return
		}
	}
}

func (l *Listener) readerLoop(conn net.Conn, log *zap.Logger) {
	scanner := bufio.NewScanner(bufio.NewReader(conn))
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	scanner.Split(scanJSONObjects)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		msg, err := ParseInbound(line)
		if err != nil {
			log.Warn("dashboard: malformed inbound message", zap.Error(err))
			l.outbox.EnqueueSafety(NewMalformedMsg(err.Error(), string(line)))
			continue
		}
		l.handler(msg)
	}
}
