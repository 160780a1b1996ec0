package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/voxstream/voxstream/protocol"
)

// State is the connection state of a session client.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second
)

// ErrSessionClosed is returned by control operations after the session
// has terminated. A new session is required to continue.
var ErrSessionClosed = errors.New("client: session is closed")

// ErrAlreadyConnected is returned by Connect on a client that already
// opened its socket once. Reconnecting requires a new client.
var ErrAlreadyConnected = errors.New("client: already connected")

// Transcript is one incremental or final recognition result.
type Transcript struct {
	Text  string
	Final bool
}

// Response is one reply delivery. Either Text (with optional Metrics and
// AudioURL) or Audio is populated, matching how the server interleaves
// the response event and the assembled audio run.
type Response struct {
	Text     string
	Metrics  *protocol.Metrics
	AudioURL string
	Audio    *ReplyAudio
}

// ServerError is an application-level error event reported by the server.
// It does not terminate the session.
type ServerError struct {
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %s: %s", e.Code, e.Message)
}

// Config configures one session client. URL is required; everything else
// has a usable zero value.
type Config struct {
	// URL is the session endpoint, e.g. ws://host/v1/session.
	URL string

	// SessionID identifies the session. Generated when empty.
	SessionID string

	// Token is an optional bearer credential. It is appended to the
	// connection target as a query parameter, never sent as a frame.
	Token string

	// ReplyMIME overrides the content type of assembled reply audio.
	ReplyMIME string

	Logger *zap.Logger
	Dialer *websocket.Dialer

	OnTranscript func(Transcript)
	OnResponse   func(Response)
	OnReset      func()
	OnError      func(error)
}

// Client owns one streaming session: it pumps captured audio frames out,
// demultiplexes inbound events, reassembles chunked reply audio, and
// reports through the configured callbacks.
//
// Exactly one logical writer (the capture pump, serialized through
// SendAudio) and one logical reader (the socket read loop) exist per
// session, so the client needs no locking beyond the write mutex the
// transport requires.
type Client struct {
	cfg       Config
	sessionID string
	logger    *zap.Logger
	dialer    *websocket.Dialer

	mu    sync.Mutex // guards state, conn, and socket writes
	state State
	conn  *websocket.Conn

	// asm is owned by the read loop; never touch it elsewhere.
	asm *assembler

	done     chan struct{}
	doneOnce sync.Once
}

// NewSessionID returns a fresh client-generated session identifier.
func NewSessionID() string {
	return "ws_" + uuid.NewString()
}

// New creates an idle session client. Call Connect to open the socket.
func New(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = NewSessionID()
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	return &Client{
		cfg:       cfg,
		sessionID: sessionID,
		logger:    logger.With(zap.String("sessionID", sessionID)),
		dialer:    dialer,
		state:     StateIdle,
		asm:       newAssembler(logger),
		done:      make(chan struct{}),
	}
}

// SessionID returns the identifier this session connects under.
func (c *Client) SessionID() string {
	return c.sessionID
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed once the session has terminated, whatever the cause.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Connect opens the duplex socket. It is the only blocking operation on
// the client and performs no automatic retry: on failure the caller
// decides whether to try again with a new client.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = StateConnecting
	c.mu.Unlock()

	target, err := c.connectionTarget()
	if err != nil {
		c.fail()
		return err
	}

	conn, _, err := c.dialer.DialContext(ctx, target, nil)
	if err != nil {
		c.fail()
		return fmt.Errorf("failed to open session socket: %w", err)
	}

	c.mu.Lock()
	if c.state != StateConnecting {
		// Closed while dialing.
		c.mu.Unlock()
		conn.Close()
		return ErrSessionClosed
	}
	c.conn = conn
	c.state = StateOpen
	c.mu.Unlock()

	c.logger.Info("Session connected", zap.String("url", c.cfg.URL))

	go c.readPump()

	return nil
}

// connectionTarget builds the dial URL with the session identifier and
// the optional bearer credential as query parameters.
func (c *Client) connectionTarget() (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("invalid session URL %q: %w", c.cfg.URL, err)
	}
	q := u.Query()
	q.Set("session_id", c.sessionID)
	if c.cfg.Token != "" {
		q.Set("token", c.cfg.Token)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) fail() {
	c.mu.Lock()
	c.state = StateError
	c.mu.Unlock()
	c.closeDone()
}

func (c *Client) closeDone() {
	c.doneOnce.Do(func() { close(c.done) })
}

// SendAudio transmits one binary audio frame if and only if the socket
// is currently open. Frames offered while not open are silently dropped:
// buffering stale audio would harm real-time interaction, so delivery is
// deliberately at-most-once.
func (c *Client) SendAudio(frame []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateOpen {
		c.logger.Debug("Dropping audio frame, session not open",
			zap.Stringer("state", c.state),
			zap.Int("size", len(frame)))
		return
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.BinaryMessage, protocol.EncodeAudio(frame)); err != nil {
		c.logger.Warn("Failed to send audio frame", zap.Error(err))
	}
}

// Commit signals that the current utterance is complete and a reply
// should be generated. Fire-and-forget.
func (c *Client) Commit() error {
	return c.sendControl(protocol.ControlCommit)
}

// Reset discards the server's in-progress state for this session and
// starts a fresh turn. The OnReset callback fires when the server
// acknowledges. Fire-and-forget.
func (c *Client) Reset() error {
	return c.sendControl(protocol.ControlReset)
}

func (c *Client) sendControl(command string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateOpen {
		return ErrSessionClosed
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, protocol.EncodeControl(command)); err != nil {
		return fmt.Errorf("failed to send %s: %w", command, err)
	}
	return nil
}

// Close terminates the session. Idempotent; no further frames are sent
// or received afterwards, and renewed communication requires a new
// session.
func (c *Client) Close() error {
	c.mu.Lock()
	switch c.state {
	case StateClosed, StateError:
		c.mu.Unlock()
		return nil
	case StateIdle, StateConnecting:
		c.state = StateClosed
		c.mu.Unlock()
		c.closeDone()
		return nil
	}

	c.state = StateClosed
	conn := c.conn
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := conn.Close()
	c.mu.Unlock()

	c.logger.Info("Session closed")
	return err
}

// readPump processes inbound events strictly in arrival order. It is the
// sole owner of the reassembly buffer and the only goroutine that fires
// callbacks.
func (c *Client) readPump() {
	defer c.closeDone()

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}

		if messageType != websocket.TextMessage {
			c.logger.Warn("Ignoring non-text inbound frame",
				zap.Int("type", messageType))
			continue
		}

		ev, ok := protocol.DecodeEvent(message)
		if !ok {
			// Tolerated keepalive or unknown type, see protocol.DecodeEvent.
			c.logger.Debug("Dropping unparseable inbound frame",
				zap.Int("size", len(message)))
			continue
		}

		c.handleEvent(ev)
	}
}

func (c *Client) handleEvent(ev protocol.Event) {
	switch ev.Type {
	case protocol.EventTranscript:
		if c.cfg.OnTranscript != nil {
			c.cfg.OnTranscript(Transcript{Text: ev.Text, Final: ev.Final})
		}

	case protocol.EventResponse:
		if c.cfg.OnResponse != nil {
			c.cfg.OnResponse(Response{
				Text:     ev.Text,
				Metrics:  ev.Metrics,
				AudioURL: ev.AudioURL,
			})
		}

	case protocol.EventReset:
		c.asm.discard()
		if c.cfg.OnReset != nil {
			c.cfg.OnReset()
		}

	case protocol.EventError:
		if c.cfg.OnError != nil {
			c.cfg.OnError(&ServerError{Code: ev.Code, Message: ev.Message})
		}

	case protocol.EventAudioStart:
		if c.asm.receiving() {
			c.logger.Warn("audio_start with a run already open, restarting buffer",
				zap.Int("discardedBytes", c.asm.pending()))
		}
		c.asm.start()

	case protocol.EventAudioChunk:
		c.asm.chunk(ev.Data)

	case protocol.EventAudioEnd:
		data, ok := c.asm.end()
		if !ok {
			return
		}
		if c.cfg.OnResponse != nil {
			c.cfg.OnResponse(Response{
				Audio: newReplyAudio(data, c.cfg.ReplyMIME),
			})
		}
	}
}

// handleReadError maps a socket-level failure onto session state. Errors
// after a caller-initiated Close are expected and not reported.
func (c *Client) handleReadError(err error) {
	c.mu.Lock()
	closedByCaller := c.state == StateClosed
	if !closedByCaller {
		c.state = StateError
		c.conn.Close()
	}
	c.mu.Unlock()

	if closedByCaller {
		return
	}

	if c.asm.receiving() {
		c.logger.Warn("Socket terminated mid-run, discarding partial reply audio",
			zap.Int("discardedBytes", c.asm.pending()))
		c.asm.discard()
	}

	if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
		c.logger.Error("Session socket error", zap.Error(err))
	}

	if c.cfg.OnError != nil {
		c.cfg.OnError(fmt.Errorf("session socket terminated: %w", err))
	}
}
