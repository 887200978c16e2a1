package snapshot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-installer/internal/hardware"
)

// Shape names the document layout served by the backend.
type Shape string

// Backend document shapes.
const (
	ShapeIndex Shape = "index"
	ShapeMenu  Shape = "menu"
)

const maxResponseSize = 8 << 20 // 8 MB

// HTTPOptions configures an HTTPProvider.
type HTTPOptions struct {
	// BaseURL of the backend API, e.g. "http://backend:3000/api".
	BaseURL string
	Shape   Shape
	// Token is sent as a bearer token when set.
	Token string
	// Timeout bounds each fetch; zero leaves it to ctx.
	Timeout time.Duration
	// Client defaults to a new http.Client.
	Client *http.Client
}

// HTTPProvider fetches snapshots from the backend REST API.
//
// Index shape: GET {base}/centrals/{id}/hardware
// Menu shape:  GET {base}/centrals/{id}/menu
type HTTPProvider struct {
	base    string
	shape   Shape
	token   string
	timeout time.Duration
	client  *http.Client
	now     func() time.Time
}

// NewHTTPProvider validates opts and creates an HTTPProvider.
func NewHTTPProvider(opts HTTPOptions) (*HTTPProvider, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("snapshot: invalid base URL %q", opts.BaseURL)
	}
	switch opts.Shape {
	case ShapeIndex, ShapeMenu:
	case "":
		opts.Shape = ShapeIndex
	default:
		return nil, fmt.Errorf("snapshot: unknown shape %q", opts.Shape)
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}

	return &HTTPProvider{
		base:    strings.TrimRight(opts.BaseURL, "/"),
		shape:   opts.Shape,
		token:   opts.Token,
		timeout: opts.Timeout,
		client:  client,
		now:     time.Now,
	}, nil
}

// Snapshot implements allocator.Provider.
func (p *HTTPProvider) Snapshot(ctx context.Context, centralID string, dir hardware.Direction) (*hardware.Snapshot, error) {
	if !dir.IsValid() {
		return nil, fmt.Errorf("%w: %q", hardware.ErrInvalidDirection, dir)
	}
	if centralID == "" {
		return nil, fmt.Errorf("%w: empty central id", hardware.ErrNotFound)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	body, err := p.get(ctx, p.endpoint(centralID))
	if err != nil {
		return nil, err
	}

	central, err := p.decode(body, centralID)
	if err != nil {
		return nil, err
	}
	return central.Snapshot(dir, p.now()), nil
}

func (p *HTTPProvider) endpoint(centralID string) string {
	resource := "hardware"
	if p.shape == ShapeMenu {
		resource = "menu"
	}
	return fmt.Sprintf("%s/centrals/%s/%s", p.base, url.PathEscape(centralID), resource)
}

func (p *HTTPProvider) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %w", hardware.ErrTransportFailure, err)
	}
	req.Header.Set("Accept", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", hardware.ErrTransportFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", hardware.ErrTransportFailure, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", hardware.ErrNotFound, endpoint)
	default:
		return nil, fmt.Errorf("%w: HTTP %d from %s", hardware.ErrTransportFailure, resp.StatusCode, endpoint)
	}
}

func (p *HTTPProvider) decode(body []byte, centralID string) (*hardware.Central, error) {
	if p.shape == ShapeIndex {
		c, err := hardware.DecodeIndex(body)
		if err != nil {
			return nil, err
		}
		if c.ID != centralID {
			return nil, fmt.Errorf("%w: asked for central %s, got %s", hardware.ErrMalformedSnapshot, centralID, c.ID)
		}
		return c, nil
	}

	centrals, err := hardware.DecodeMenu(body)
	if err != nil {
		return nil, err
	}
	for i := range centrals {
		if centrals[i].ID == centralID {
			return &centrals[i], nil
		}
	}
	return nil, fmt.Errorf("%w: central %s absent from menu", hardware.ErrNotFound, centralID)
}
