package publisher

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"SocialPoster/internal/domain"
	"SocialPoster/internal/ports"
)

const defaultTimeout = 15 * time.Second

// Registry keeps a mapping from platforms to their publisher implementations.
type Registry struct {
	publishers map[domain.Platform]ports.Publisher
}

var _ ports.PublisherRegistry = (*Registry)(nil)

// NewRegistry builds a registry holding the given publishers.
func NewRegistry(publishers ...ports.Publisher) *Registry {
	r := &Registry{publishers: map[domain.Platform]ports.Publisher{}}
	for _, p := range publishers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces the publisher for its platform.
func (r *Registry) Register(p ports.Publisher) {
	if r.publishers == nil {
		r.publishers = map[domain.Platform]ports.Publisher{}
	}
	r.publishers[p.Platform()] = p
}

// Publisher returns the publisher serving platform.
func (r *Registry) Publisher(platform domain.Platform) (ports.Publisher, bool) {
	p, ok := r.publishers[platform]
	return p, ok
}

// APIError is returned when a platform API answers with a non-success status.
type APIError struct {
	Platform domain.Platform
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error %d: %s", e.Platform, e.Status, e.Body)
}

func readAPIError(platform domain.Platform, resp *http.Response) error {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return &APIError{Platform: platform, Status: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
}

func baseURL(configured, fallback string) string {
	base := strings.TrimSpace(configured)
	if base == "" {
		base = fallback
	}
	return strings.TrimRight(base, "/")
}
