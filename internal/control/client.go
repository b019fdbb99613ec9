package control

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/roman-kulish/radio-monitor/internal/spectrum"
)

const (
	// GainAuto lets the receiver pick its gain.
	GainAuto = "auto"

	defaultTimeout = 10 * time.Second
)

// APIError is a non-2xx response from the control API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("control api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("control api: status %d: %s", e.StatusCode, e.Message)
}

// StartRequest opens the receiver for analog streaming.
type StartRequest struct {
	FreqMHz float64       `json:"freq_mhz"`
	Mode    spectrum.Mode `json:"mode"`
	Gain    string        `json:"gain"`
}

// DigitalRequest starts the digital voice monitor.
type DigitalRequest struct {
	FreqMHz float64 `json:"freq_mhz"`
	Mode    string  `json:"mode"`
	Gain    string  `json:"gain"`
}

// ScanRequest sweeps a range looking for carriers above a threshold.
type ScanRequest struct {
	StartMHz    float64  `json:"start_mhz"`
	EndMHz      float64  `json:"end_mhz"`
	StepKHz     *float64 `json:"step_khz,omitempty"`
	ThresholdDB *float64 `json:"threshold_db,omitempty"`
}

// Signal is a carrier found by a scan.
type Signal struct {
	FreqMHz float64 `json:"freq_mhz"`
	PowerDB float64 `json:"power_db"`
}

// State is the server's view of the receiver.
type State struct {
	FreqMHz float64       `json:"freq_mhz"`
	Mode    spectrum.Mode `json:"mode"`
	Gain    any           `json:"gain"`
	Running bool          `json:"running"`
	Mock    bool          `json:"mock"`
}

// Preset is the tuning applied by a named band preset.
type Preset struct {
	FrequencyMHz float64       `json:"frequency_mhz"`
	Mode         spectrum.Mode `json:"mode"`
	Description  string        `json:"description"`
}

// SmartTuneResult tells which decoder the server picked for a frequency.
type SmartTuneResult struct {
	Decoder  string        `json:"decoder"` // "analog" or a digital decoder
	Mode     spectrum.Mode `json:"mode"`
	Protocol string        `json:"protocol"`
}

// Analog reports whether the stream carries demodulated analog audio.
func (r *SmartTuneResult) Analog() bool {
	return r.Decoder == "analog" && (r.Mode == spectrum.ModeWFM || r.Mode == spectrum.ModeAM)
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(h *http.Client) func(c *Client) {
	return func(c *Client) {
		c.http = h
	}
}

// WithLogger sets the logger for the client
func WithLogger(logger *slog.Logger) func(c *Client) {
	return func(c *Client) {
		c.logger = logger.With(slog.String("component", "control"))
	}
}

// Client talks to the receiver's HTTP control API. It holds no state of its
// own; every call is a single request.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a client for the server at baseURL, e.g. http://host:8080.
func NewClient(baseURL string, options ...func(c *Client)) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported server url scheme: %q", u.Scheme)
	}

	c := Client{
		base:   u,
		http:   &http.Client{Timeout: defaultTimeout},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&c)
	}

	return &c, nil
}

// StreamURL returns the websocket endpoint of the server.
func (c *Client) StreamURL() string {
	u := *c.base
	u.Scheme = "ws"
	if c.base.Scheme == "https" {
		u.Scheme = "wss"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}

func (c *Client) Start(ctx context.Context, req StartRequest) error {
	return c.do(ctx, http.MethodPost, "/api/start", req, nil)
}

func (c *Client) Stop(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/stop", nil, nil)
}

func (c *Client) Tune(ctx context.Context, mhz float64) error {
	return c.do(ctx, http.MethodPost, "/api/tune", map[string]float64{"freq_mhz": mhz}, nil)
}

func (c *Client) SetMode(ctx context.Context, mode spectrum.Mode) error {
	return c.do(ctx, http.MethodPost, "/api/mode", map[string]spectrum.Mode{"mode": mode}, nil)
}

func (c *Client) SetGain(ctx context.Context, gain string) error {
	return c.do(ctx, http.MethodPost, "/api/gain", map[string]string{"gain": gain}, nil)
}

// Bands returns the server's band plan as bookmarks sorted by frequency.
func (c *Client) Bands(ctx context.Context) ([]spectrum.Bookmark, error) {
	var bands map[string]spectrum.Bookmark
	if err := c.do(ctx, http.MethodGet, "/api/bands", nil, &bands); err != nil {
		return nil, err
	}

	bookmarks := make([]spectrum.Bookmark, 0, len(bands))
	for name, b := range bands {
		b.Name = name
		bookmarks = append(bookmarks, b)
	}
	sort.Slice(bookmarks, func(i, j int) bool {
		if bookmarks[i].FrequencyMHz == bookmarks[j].FrequencyMHz {
			return bookmarks[i].Name < bookmarks[j].Name
		}
		return bookmarks[i].FrequencyMHz < bookmarks[j].FrequencyMHz
	})
	return bookmarks, nil
}

func (c *Client) Preset(ctx context.Context, name string) (*Preset, error) {
	var p Preset
	if err := c.do(ctx, http.MethodPost, "/api/preset", map[string]string{"name": name}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) Scan(ctx context.Context, req ScanRequest) ([]Signal, error) {
	var signals []Signal
	if err := c.do(ctx, http.MethodPost, "/api/scan", req, &signals); err != nil {
		return nil, err
	}
	return signals, nil
}

func (c *Client) State(ctx context.Context) (*State, error) {
	var s State
	if err := c.do(ctx, http.MethodGet, "/api/state", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SmartTune lets the server choose an analog or digital decoder for mhz.
func (c *Client) SmartTune(ctx context.Context, mhz float64, gain string) (*SmartTuneResult, error) {
	body := struct {
		FreqMHz float64 `json:"freq_mhz"`
		Gain    string  `json:"gain"`
	}{mhz, gain}

	var r SmartTuneResult
	if err := c.do(ctx, http.MethodPost, "/api/smart-tune", body, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) DigitalStart(ctx context.Context, req DigitalRequest) error {
	return c.do(ctx, http.MethodPost, "/api/digital/start", req, nil)
}

func (c *Client) DigitalStop(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/digital/stop", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	u := c.base.JoinPath(path)

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding %s request: %w", path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("creating %s request: %w", path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("control request", slog.String("method", method), slog.String("path", path))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var payload struct {
		Error string `json:"error"`
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil && json.Unmarshal(b, &payload) == nil {
		apiErr.Message = payload.Error
	}
	return apiErr
}

// IsAPIError reports whether err carries a response from the server.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}
