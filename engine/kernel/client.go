// Package kernel is the HTTP client for the CAD kernel sidecar. The kernel
// runs out of process because a malformed STEP file can take the whole
// process down with it; the client's job is to keep those crashes from
// cascading into the API: calls are rate limited, time limited, and guarded
// by a circuit breaker.
package kernel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/swiftfab/quote-engine/engine/topo"
	"github.com/swiftfab/quote-engine/pkg/resilience"
)

// ErrKernelUnavailable means the sidecar is down, unreachable or shedding
// load. Callers should queue or retry later rather than fail the quote.
var ErrKernelUnavailable = errors.New("cad kernel unavailable")

// ErrParseRejected means the kernel read the file and refused it: bad
// format, unsupported schema. Retrying the same bytes will not help.
var ErrParseRejected = errors.New("cad kernel rejected file")

// Opts configures a Client.
type Opts struct {
	BaseURL string
	Timeout time.Duration
	// RPS and Burst bound how hard we push the sidecar; a single kernel
	// process tessellating large assemblies does not take kindly to bursts.
	RPS     float64
	Burst   int
	Breaker resilience.BreakerOpts
}

// DefaultOpts returns client defaults sized for one sidecar instance.
func DefaultOpts(baseURL string) Opts {
	return Opts{
		BaseURL: baseURL,
		Timeout: 120 * time.Second,
		RPS:     2,
		Burst:   4,
		Breaker: resilience.DefaultBreakerOpts,
	}
}

// Client talks to one kernel sidecar.
type Client struct {
	base    string
	http    *http.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	log     *slog.Logger
}

// New builds a Client. A nil logger falls back to the default.
func New(opts Opts, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.RPS <= 0 {
		opts.RPS = 2
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	return &Client{
		base:    opts.BaseURL,
		http:    &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(rate.Limit(opts.RPS), opts.Burst),
		breaker: resilience.NewBreaker(opts.Breaker),
		log:     log,
	}
}

// parseResponse is the sidecar's wire format. Geometry arrives in
// millimeters, the kernel's native unit.
type parseResponse struct {
	Solids []topo.Solid `json:"solids"`
	Error  string       `json:"error,omitempty"`
}

const mmPerInch = 25.4

// ParseSTEP uploads a STEP file and returns its solids, converted to inches.
func (c *Client) ParseSTEP(ctx context.Context, filename string, data []byte) ([]topo.Solid, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var solids []topo.Solid
	var rejected error
	err := c.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		solids, err = c.parseOnce(ctx, filename, data)
		// A rejected file is the file's fault, not the kernel's; it must
		// not count against the breaker.
		if errors.Is(err, ErrParseRejected) {
			rejected = err
			return nil
		}
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		c.log.Warn("kernel breaker open, failing fast", "file", filename)
		return nil, fmt.Errorf("%w: %v", ErrKernelUnavailable, err)
	}
	if err != nil {
		return nil, err
	}
	if rejected != nil {
		return nil, rejected
	}
	return solids, nil
}

func (c *Client) parseOnce(ctx context.Context, filename string, data []byte) ([]topo.Solid, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/parse", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKernelUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: %s: %s", ErrParseRejected, filename, bytes.TrimSpace(msg))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d", ErrKernelUnavailable, resp.StatusCode)
	}

	var pr parseResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("decode kernel response: %w", err)
	}
	if pr.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrParseRejected, pr.Error)
	}

	out := make([]topo.Solid, len(pr.Solids))
	for i, s := range pr.Solids {
		out[i] = toInches(s)
	}
	c.log.Debug("kernel parsed file",
		"file", filename, "solids", len(out), "took", time.Since(start))
	return out, nil
}

// Healthy pings the sidecar.
func (c *Client) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKernelUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrKernelUnavailable, resp.StatusCode)
	}
	return nil
}

// BreakerState exposes the breaker for health reporting.
func (c *Client) BreakerState() resilience.State { return c.breaker.State() }

func toInches(s topo.Solid) topo.Solid {
	const k = 1 / mmPerInch
	out := s
	out.Volume = s.Volume * k * k * k
	out.SurfaceArea = s.SurfaceArea * k * k
	out.BBox = topo.BoundingBox{Min: s.BBox.Min.Scale(k), Max: s.BBox.Max.Scale(k)}
	out.Faces = make([]topo.Face, len(s.Faces))
	for i, f := range s.Faces {
		nf := f
		nf.Wires = make([]topo.Wire, len(f.Wires))
		for j, w := range f.Wires {
			nw := topo.Wire{Points: make([]topo.Vec3, len(w.Points))}
			for p, pt := range w.Points {
				nw.Points[p] = pt.Scale(k)
			}
			nf.Wires[j] = nw
		}
		out.Faces[i] = nf
	}
	return out
}
