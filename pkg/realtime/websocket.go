package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-companion/pkg/audioio"
)

const (
	wsInputSampleRate = 24000
	wsPingInterval    = 30 * time.Second
	wsWriteTimeout    = 10 * time.Second
)

// WebSocketTransport runs the session over a websocket.
type WebSocketTransport struct {
	base
	opts   options
	dialer *websocket.Dialer

	sess *wsSession
}

type wsSession struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	router  *router
	mic     audioio.Source
	cancel  context.CancelFunc

	closeOnce sync.Once
}

// NewWebSocketTransport creates a websocket transport.
func NewWebSocketTransport(opts ...Option) *WebSocketTransport {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	t := &WebSocketTransport{
		opts:   o,
		dialer: &websocket.Dialer{HandshakeTimeout: 15 * time.Second, Proxy: http.ProxyFromEnvironment},
	}
	t.logger = o.logger.With("component", "realtime.websocket")
	return t
}

// URL returns the websocket endpoint for model.
func (t *WebSocketTransport) URL(model string) string {
	if model == "" {
		model = t.opts.model
	}
	u := t.opts.baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/realtime?model=" + url.QueryEscape(model)
}

// Connect dials the realtime endpoint with the ephemeral key.
func (t *WebSocketTransport) Connect(ctx context.Context, opts ConnectOptions) error {
	if err := validateConnect(opts); err != nil {
		return err
	}
	id, err := t.beginConnect()
	if err != nil {
		return err
	}

	sess, err := t.open(ctx, opts)
	if err != nil {
		t.failConnect(id)
		return err
	}

	if !t.finishConnect(id) {
		t.teardown(sess)
		return ErrConnectAborted
	}
	t.logger.Info("realtime session connected", "transport", "websocket", "agent", sess.router.agent(), "device", opts.DeviceID)
	return nil
}

func (t *WebSocketTransport) open(ctx context.Context, opts ConnectOptions) (*wsSession, error) {
	headers := http.Header{}
	headers.Set("Authorization", opts.Credential.Type()+" "+opts.Credential.AccessToken)
	headers.Set("OpenAI-Beta", "realtime=v1")

	conn, resp, err := t.dialer.DialContext(ctx, t.URL(opts.Model), headers)
	if err != nil {
		te := &TransportError{Op: "dial", Err: err}
		if resp != nil {
			te.StatusCode = resp.StatusCode
		}
		return nil, te
	}

	s := &wsSession{conn: conn}
	s.router = newRouter(t.logger, opts, s.sendEvent, func() error { return s.sendEvent(ResponseCancel()) }, t.emit)
	t.attach(s)

	go t.readLoop(s)

	if err := s.router.start(); err != nil {
		t.teardown(s)
		return nil, &TransportError{Op: "session update", Err: err}
	}

	micCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mic, err = openMic(micCtx, t.opts.sources, opts.DeviceID)
	if err != nil {
		t.teardown(s)
		return nil, err
	}
	if s.mic != nil {
		go pumpMic(micCtx, s.mic, &t.muted, s.writePCM, t.logger)
	} else {
		t.logger.Warn("no microphone source configured, session is text only")
	}
	go s.keepAlive(micCtx)
	return s, nil
}

func (t *WebSocketTransport) readLoop(s *wsSession) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.dropped(s, nil)
			} else {
				t.dropped(s, err)
			}
			return
		}
		s.router.handle(data)
	}
}

// Disconnect closes the websocket.
func (t *WebSocketTransport) Disconnect() error {
	t.mu.Lock()
	sess := t.sess
	t.sess = nil
	t.mu.Unlock()

	t.reset()
	if sess != nil {
		sess.close()
		t.logger.Info("realtime session disconnected", "transport", "websocket")
	}
	return nil
}

// SendEvent writes one client event.
func (t *WebSocketTransport) SendEvent(event any) error {
	sess := t.current()
	if sess == nil {
		return ErrNotConnected
	}
	return sess.sendEvent(event)
}

// Interrupt cancels the in-progress response.
func (t *WebSocketTransport) Interrupt() error {
	return t.SendEvent(ResponseCancel())
}

func (t *WebSocketTransport) current() *wsSession {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.status != StatusConnected {
		return nil
	}
	return t.sess
}

func (t *WebSocketTransport) teardown(s *wsSession) {
	t.mu.Lock()
	if t.sess == s {
		t.sess = nil
	}
	t.mu.Unlock()
	s.close()
}

// attach makes s the session that Disconnect and drop handling act on.
func (t *WebSocketTransport) attach(s *wsSession) {
	t.mu.Lock()
	t.sess = s
	t.mu.Unlock()
}

func (t *WebSocketTransport) dropped(s *wsSession, cause error) {
	t.mu.RLock()
	live := t.sess == s
	t.mu.RUnlock()
	if !live {
		return
	}

	if cause != nil {
		t.logger.Error("realtime connection lost", "error", cause)
	} else {
		t.logger.Info("realtime connection closed by server")
	}
	go func() {
		t.teardown(s)
		t.reset()
		if cause != nil {
			t.emit(Event{Kind: EventError, Err: &TransportError{Op: "read", Err: cause}})
		}
	}()
}

func (s *wsSession) sendEvent(event any) error {
	data, err := encodeEvent(event)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	return nil
}

func (s *wsSession) writePCM(samples []int16, rate int) error {
	pcm := audioio.SamplesToBytes(audioio.Resample(samples, rate, wsInputSampleRate))
	return s.sendEvent(InputAudioAppend(pcm))
}

func (s *wsSession) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
			s.writeMu.Unlock()
			if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
				return
			}
		}
	}
}

func (s *wsSession) close() {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		if s.mic != nil {
			s.mic.Close()
		}
		s.writeMu.Lock()
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		s.writeMu.Unlock()
		s.conn.Close()
		s.router.close()
	})
}

var _ Transport = (*WebSocketTransport)(nil)
