package realtime

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chat-gateway/internal/protocol"
)

const (
	writeWait        = 10 * time.Second
	reconnectBackoff = time.Second
	maxBackoff       = 30 * time.Second
)

// Conn is one live websocket session. Writes are serialized; reads happen on
// the owner's read loop.
type Conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

// Dial opens an authenticated session. The token travels as a query
// parameter and is validated fresh on every connect.
func Dial(ctx context.Context, baseURL, accessToken, name string) (*Conn, error) {
	u, err := url.Parse(baseURL + "/ws")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("token", accessToken)
	if name != "" {
		q.Set("name", name)
	}
	u.RawQuery = q.Encode()

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	return &Conn{ws: ws}, nil
}

// Send writes one envelope.
func (c *Conn) Send(env *protocol.Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(env)
}

// ReadLoop decodes frames and hands them to the dispatcher until the
// connection drops. Always returns a non-nil error.
func (c *Conn) ReadLoop(handle func(*protocol.Envelope)) error {
	for {
		var env protocol.Envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			return err
		}
		handle(&env)
	}
}

func (c *Conn) Close() error {
	return c.ws.Close()
}

// TokenSource supplies the access token for each dial attempt; the tokens
// coordinator implements it.
type TokenSource interface {
	AccessToken() string
}

// Manager keeps a session alive, redialing with capped exponential backoff.
// Connection state transitions feed the offline queue and any other listener.
type Manager struct {
	baseURL string
	name    string
	source  TokenSource
	handle  func(*protocol.Envelope)
	onState func(connected bool)
	logger  *zap.Logger

	mu   sync.Mutex
	conn *Conn
}

func NewManager(baseURL, name string, source TokenSource, handle func(*protocol.Envelope), onState func(connected bool), logger *zap.Logger) *Manager {
	return &Manager{
		baseURL: baseURL,
		name:    name,
		source:  source,
		handle:  handle,
		onState: onState,
		logger:  logger,
	}
}

// Run dials and re-dials until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	backoff := reconnectBackoff
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := Dial(ctx, m.baseURL, m.source.AccessToken(), m.name)
		if err != nil {
			m.logger.Warn("dial failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		backoff = reconnectBackoff
		m.mu.Lock()
		m.conn = conn
		m.mu.Unlock()
		if m.onState != nil {
			m.onState(true)
		}

		err = conn.ReadLoop(m.handle)
		m.logger.Info("connection closed", zap.Error(err))
		conn.Close()

		m.mu.Lock()
		m.conn = nil
		m.mu.Unlock()
		if m.onState != nil {
			m.onState(false)
		}
	}
}

// Send writes to the live session; it fails when disconnected so callers
// fall back to the offline queue.
func (m *Manager) Send(env *protocol.Envelope) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.Send(env)
}
