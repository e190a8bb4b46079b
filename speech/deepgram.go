package speech

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"notecard/audio"

	"nhooyr.io/websocket"
)

const (
	deepgramListenURL = "wss://api.deepgram.com/v1/listen"
	deepgramModel     = "nova-3"
)

type DeepgramOptions struct {
	Model         string
	EndpointingMs int
	Device        *audio.DeviceInfo
	URL           string // listen endpoint, overridable for tests
}

// Deepgram streams microphone audio to Deepgram's live transcription API.
type Deepgram struct {
	apiKey string
	audio  audio.Context
	opts   DeepgramOptions
}

func NewDeepgram(apiKey string, actx audio.Context, opts DeepgramOptions) *Deepgram {
	if opts.Model == "" {
		opts.Model = deepgramModel
	}
	if opts.URL == "" {
		opts.URL = deepgramListenURL
	}
	return &Deepgram{apiKey: apiKey, audio: actx, opts: opts}
}

func (d *Deepgram) Name() string { return "deepgram" }

func (d *Deepgram) Start(ctx context.Context, cfg Config) (Session, error) {
	endpoint, err := d.endpoint(cfg)
	if err != nil {
		return nil, err
	}

	capture, err := d.audio.NewCapture(d.opts.Device, audio.DefaultCaptureConfig())
	if err != nil {
		return nil, fmt.Errorf("opening microphone: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+d.apiKey)

	s := newStreamSession(ctx, d.Name(), cfg, capture, func(ctx context.Context) (rawStream, error) {
		return dialDeepgram(ctx, endpoint, headers)
	})
	if err := s.start(); err != nil {
		capture.Close()
		return nil, err
	}
	return s, nil
}

func (d *Deepgram) endpoint(cfg Config) (string, error) {
	u, err := url.Parse(d.opts.URL)
	if err != nil {
		return "", fmt.Errorf("deepgram url: %w", err)
	}

	q := u.Query()
	q.Set("model", d.opts.Model)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(audio.SampleRate))
	q.Set("channels", strconv.Itoa(audio.Channels))
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	q.Set("interim_results", strconv.FormatBool(cfg.InterimResults))
	if cfg.Locale != "" {
		q.Set("language", cfg.Locale)
	}
	if cfg.MaxAlternatives > 1 {
		q.Set("alternatives", strconv.Itoa(cfg.MaxAlternatives))
	}
	if d.opts.EndpointingMs > 0 {
		q.Set("endpointing", strconv.Itoa(d.opts.EndpointingMs))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type deepgramResponse struct {
	Type        string `json:"type"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`
	Channel     struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func parseDeepgram(data []byte) (streamUpdate, error) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return streamUpdate{}, fmt.Errorf("deepgram response: %w", err)
	}
	if resp.Type != "" && resp.Type != "Results" {
		return streamUpdate{Control: true}, nil
	}

	u := streamUpdate{IsFinal: resp.IsFinal, SpeechFinal: resp.SpeechFinal}
	for _, a := range resp.Channel.Alternatives {
		u.Alternatives = append(u.Alternatives, Alternative{Transcript: a.Transcript, Confidence: a.Confidence})
	}
	return u, nil
}

type deepgramStream struct {
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
}

func dialDeepgram(ctx context.Context, endpoint string, headers http.Header) (rawStream, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	conn, _, err := websocket.Dial(streamCtx, endpoint, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		cancel()
		return nil, err
	}
	return &deepgramStream{conn: conn, ctx: streamCtx, cancel: cancel}, nil
}

func (s *deepgramStream) Send(pcm []byte) error {
	return s.conn.Write(s.ctx, websocket.MessageBinary, pcm)
}

func (s *deepgramStream) CloseSend() error {
	return s.conn.Write(s.ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`))
}

func (s *deepgramStream) Recv() (streamUpdate, error) {
	_, data, err := s.conn.Read(s.ctx)
	if err != nil {
		return streamUpdate{}, err
	}
	return parseDeepgram(data)
}

func (s *deepgramStream) Close() error {
	s.cancel()
	return s.conn.Close(websocket.StatusNormalClosure, "")
}
