package realtime

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
	"golang.org/x/oauth2"
	"gopkg.in/hraban/opus.v2"

	"github.com/teslashibe/go-companion/pkg/audioio"
)

const (
	dataChannelLabel = "oai-events"
	opusSampleRate   = 48000
	opusFrame        = 20 * time.Millisecond
	opusFrameSamples = opusSampleRate / 50
)

// WebRTCTransport runs the session over a peer connection.
type WebRTCTransport struct {
	base
	opts options

	sess *webrtcSession
}

type webrtcSession struct {
	pc     *webrtc.PeerConnection
	dc     *webrtc.DataChannel
	track  *webrtc.TrackLocalStaticSample
	router *router
	mic    audioio.Source
	cancel context.CancelFunc

	writeMu sync.Mutex
	enc     *opus.Encoder
	pending []int16
	packet  []byte

	closeOnce sync.Once
	done      chan struct{}

	remotePackets atomic.Int64
	remoteBytes   atomic.Int64
}

// NewWebRTCTransport creates a WebRTC transport.
func NewWebRTCTransport(opts ...Option) *WebRTCTransport {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	t := &WebRTCTransport{opts: o}
	t.logger = o.logger.With("component", "realtime.webrtc")
	return t
}

// Connect negotiates the peer connection and waits for the data channel.
func (t *WebRTCTransport) Connect(ctx context.Context, opts ConnectOptions) error {
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
	t.logger.Info("realtime session connected", "transport", "webrtc", "agent", sess.router.agent(), "device", opts.DeviceID)
	return nil
}

func (t *WebRTCTransport) open(ctx context.Context, opts ConnectOptions) (*webrtcSession, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, &TransportError{Op: "peer connection", Err: err}
	}
	s := &webrtcSession{pc: pc, packet: make([]byte, 4000), done: make(chan struct{})}
	t.attach(s)
	fail := func(op string, status int, err error) (*webrtcSession, error) {
		t.teardown(s)
		return nil, &TransportError{Op: op, StatusCode: status, Err: err}
	}

	s.track, err = webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: opusSampleRate, Channels: 2},
		"audio", "companion-mic",
	)
	if err != nil {
		return fail("audio track", 0, err)
	}
	sender, err := pc.AddTrack(s.track)
	if err != nil {
		return fail("audio track", 0, err)
	}
	go drainRTCP(sender)

	// Remote audio is not played; drain it so the receiver keeps up.
	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		go s.drainRemote(remote)
	})

	s.dc, err = pc.CreateDataChannel(dataChannelLabel, nil)
	if err != nil {
		return fail("data channel", 0, err)
	}

	s.router = newRouter(t.logger, opts, s.sendEvent, func() error { return s.interrupt() }, t.emit)

	opened := make(chan struct{})
	var openOnce sync.Once
	s.dc.OnOpen(func() { openOnce.Do(func() { close(opened) }) })
	s.dc.OnMessage(func(msg webrtc.DataChannelMessage) { s.router.handle(msg.Data) })
	s.dc.OnClose(func() { t.dropped(s, "data channel closed") })
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		t.logger.Debug("peer connection state", "state", state.String())
		if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateClosed {
			t.dropped(s, "peer connection "+state.String())
		}
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return fail("create offer", 0, err)
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		return fail("set local description", 0, err)
	}
	select {
	case <-gathered:
	case <-s.done:
		return nil, ErrConnectAborted
	case <-ctx.Done():
		return fail("ice gathering", 0, ctx.Err())
	}

	answer, status, err := t.exchangeSDP(ctx, opts, pc.LocalDescription().SDP)
	if err != nil {
		return fail("sdp exchange", status, err)
	}
	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer}); err != nil {
		return fail("set remote description", 0, err)
	}

	select {
	case <-opened:
	case <-s.done:
		return nil, ErrConnectAborted
	case <-ctx.Done():
		return fail("data channel", 0, ctx.Err())
	}

	if err := s.router.start(); err != nil {
		return fail("session update", 0, err)
	}

	micCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mic, err = openMic(micCtx, t.opts.sources, opts.DeviceID)
	if err != nil {
		t.teardown(s)
		return nil, err
	}
	if s.mic != nil {
		s.enc, err = opus.NewEncoder(opusSampleRate, 1, opus.AppVoIP)
		if err != nil {
			return fail("opus encoder", 0, err)
		}
		go pumpMic(micCtx, s.mic, &t.muted, s.writePCM, t.logger)
	} else {
		t.logger.Warn("no microphone source configured, session is text only")
	}
	return s, nil
}

// exchangeSDP posts the offer with the ephemeral key and returns the answer.
func (t *WebRTCTransport) exchangeSDP(ctx context.Context, opts ConnectOptions, offer string) (string, int, error) {
	model := opts.Model
	if model == "" {
		model = t.opts.model
	}
	endpoint := t.opts.baseURL + "/realtime?model=" + url.QueryEscape(model)

	client := oauth2.NewClient(
		context.WithValue(ctx, oauth2.HTTPClient, t.opts.httpClient),
		oauth2.StaticTokenSource(opts.Credential),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(offer))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/sdp")

	resp, err := client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", resp.StatusCode, fmt.Errorf("%s", strings.TrimSpace(string(body)))
	}
	return string(body), resp.StatusCode, nil
}

// Disconnect closes the peer connection.
func (t *WebRTCTransport) Disconnect() error {
	t.mu.Lock()
	sess := t.sess
	t.sess = nil
	t.mu.Unlock()

	t.reset()
	if sess != nil {
		sess.close()
		t.logger.Info("realtime session disconnected", "transport", "webrtc")
	}
	return nil
}

// SendEvent sends one client event over the data channel.
func (t *WebRTCTransport) SendEvent(event any) error {
	sess := t.current()
	if sess == nil {
		return ErrNotConnected
	}
	return sess.sendEvent(event)
}

// Interrupt cancels the response and clears queued output audio.
func (t *WebRTCTransport) Interrupt() error {
	sess := t.current()
	if sess == nil {
		return ErrNotConnected
	}
	return sess.interrupt()
}

// RemoteStats returns packets and payload bytes received on the remote track.
func (t *WebRTCTransport) RemoteStats() (packets, bytes int64) {
	sess := t.current()
	if sess == nil {
		return 0, 0
	}
	return sess.remotePackets.Load(), sess.remoteBytes.Load()
}

func (t *WebRTCTransport) current() *webrtcSession {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.status != StatusConnected {
		return nil
	}
	return t.sess
}

func (t *WebRTCTransport) teardown(s *webrtcSession) {
	t.mu.Lock()
	if t.sess == s {
		t.sess = nil
	}
	t.mu.Unlock()
	s.close()
}

// attach makes s the session that Disconnect and drop handling act on.
func (t *WebRTCTransport) attach(s *webrtcSession) {
	t.mu.Lock()
	t.sess = s
	t.mu.Unlock()
}

// dropped handles a remote close of the live session.
func (t *WebRTCTransport) dropped(s *webrtcSession, reason string) {
	t.mu.RLock()
	live := t.sess == s
	t.mu.RUnlock()
	if !live {
		return
	}

	t.logger.Warn("realtime session dropped", "reason", reason)
	go func() {
		t.teardown(s)
		t.reset()
		t.emit(Event{Kind: EventError, Err: &TransportError{Op: "connection", Err: fmt.Errorf("%s", reason)}})
	}()
}

func (s *webrtcSession) sendEvent(event any) error {
	data, err := encodeEvent(event)
	if err != nil {
		return err
	}
	if err := s.dc.SendText(string(data)); err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	return nil
}

func (s *webrtcSession) interrupt() error {
	if err := s.sendEvent(ResponseCancel()); err != nil {
		return err
	}
	return s.sendEvent(TypedEvent{Type: "output_audio_buffer.clear"})
}

// writePCM resamples to 48kHz and sends whole 20ms Opus frames.
func (s *webrtcSession) writePCM(samples []int16, rate int) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.pending = append(s.pending, audioio.Resample(samples, rate, opusSampleRate)...)
	for len(s.pending) >= opusFrameSamples {
		n, err := s.enc.Encode(s.pending[:opusFrameSamples], s.packet)
		if err != nil {
			return fmt.Errorf("opus encode: %w", err)
		}
		s.pending = s.pending[opusFrameSamples:]
		if err := s.track.WriteSample(media.Sample{Data: append([]byte(nil), s.packet[:n]...), Duration: opusFrame}); err != nil {
			return err
		}
	}
	return nil
}

func (s *webrtcSession) drainRemote(track *webrtc.TrackRemote) {
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		s.countRemote(pkt)
	}
}

func (s *webrtcSession) countRemote(pkt *rtp.Packet) {
	s.remotePackets.Add(1)
	s.remoteBytes.Add(int64(len(pkt.Payload)))
}

func (s *webrtcSession) close() {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		if s.mic != nil {
			s.mic.Close()
		}
		if s.router != nil {
			s.router.close()
		}
		if s.dc != nil {
			_ = s.dc.Close()
		}
		_ = s.pc.Close()
		close(s.done)
	})
}

func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

var _ Transport = (*WebRTCTransport)(nil)
