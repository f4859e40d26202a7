package devnet

import (
	"context"
	"errors"
	"net"

	"github.com/sirupsen/logrus"
)

// Listener binds one TCP address and runs the accept loop (§4.7).
// Grounded in the teacher's Listener (aznet.go), stripped of its
// Transport/Driver abstraction (there is only ever one transport here:
// plain TCP) and its janitor goroutine (DeviceConn's own write task does
// the registry removal this spec requires).
type Listener struct {
	ln       net.Listener
	cfg      *Config
	store    Store
	registry *Registry
	dispatch CommandTable
	log      *logrus.Entry
}

// Listen binds cfg.listenAddr and returns a Listener ready to Serve.
func Listen(cfg *Config, store Store, dispatch CommandTable) (*Listener, error) {
	ln, err := net.Listen("tcp", cfg.listenAddr)
	if err != nil {
		return nil, err
	}
	return &Listener{
		ln:       ln,
		cfg:      cfg,
		store:    store,
		registry: NewRegistry(),
		dispatch: dispatch,
		log:      logrus.WithField("component", "devnet.listener"),
	}, nil
}

// Registry exposes the listener's connection registry, e.g. for an HTTP
// admin surface built on top of this package.
func (l *Listener) Registry() *Registry { return l.registry }

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close stops accepting new connections. Already-established
// connections are unaffected.
func (l *Listener) Close() error { return l.ln.Close() }

// Serve runs the accept loop until ctx is done or the listener is
// closed (§4.7: "Accept errors are logged; the loop does not exit").
// Each accepted socket is handed to doLogin in its own goroutine so a
// slow or hostile peer during the handshake never blocks Accept.
func (l *Listener) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = l.ln.Close()
	}()

	backoff := newAcceptBackoff()
	for {
		nc, err := l.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			l.log.WithError(err).Warn("accept failed, retrying")
			backoff.sleep()
			continue
		}
		backoff.reset()

		go func() {
			conn, err := doLogin(ctx, nc, l.cfg, l.store, l.registry, l.dispatch)
			if err != nil {
				l.log.WithError(err).WithField("addr", nc.RemoteAddr().String()).Debug("login failed")
				return
			}
			l.log.WithField("addr", conn.addr.String()).Debug("connection established")
		}()
	}
}
