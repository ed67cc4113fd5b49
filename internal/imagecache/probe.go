package imagecache

import (
	"context"
	"net/http"
	"time"
)

// ProbeTimeout bounds a single reachability check.
const ProbeTimeout = 5 * time.Second

// Prober checks whether a public URL is reachable.
type Prober interface {
	Reachable(ctx context.Context, url string) bool
}

// HTTPProber issues HEAD requests and follows redirects.
type HTTPProber struct {
	Client *http.Client
}

// Reachable reports whether a HEAD on url ends in a 2xx response.
func (p HTTPProber) Reachable(ctx context.Context, url string) bool {
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}
