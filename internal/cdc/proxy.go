// Package cdc proxies scoped pull-based replays of the raw change log. The
// proxy authenticates against the upstream log service with a server-held
// secret and forwards only the recognized replay parameters; tenant scoping
// of the where clause is the caller's responsibility and the proxy only
// refuses to forward when required scoping is absent.
package cdc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	dErrors "syncline/pkg/domain-errors"
	"syncline/pkg/platform/circuit"
)

// replayParams are the only query parameters forwarded upstream.
var replayParams = []string{"offset", "live", "handle", "cursor", "where"}

// Proxy forwards shape replay requests to the upstream change-log service.
type Proxy struct {
	upstream *url.URL
	secret   string
	client   *http.Client
	breaker  *circuit.Breaker
}

func New(upstreamURL, secret string, breaker *circuit.Breaker) (*Proxy, error) {
	u, err := url.Parse(upstreamURL)
	if err != nil {
		return nil, fmt.Errorf("parse CDC upstream URL: %w", err)
	}
	return &Proxy{
		upstream: u,
		secret:   secret,
		client:   &http.Client{},
		breaker:  breaker,
	}, nil
}

// Forward rewrites the inbound request into an upstream replay request and
// streams the response through. requireScope refuses requests lacking a
// where clause. No internal retries: retry/backoff is a client concern.
func (p *Proxy) Forward(ctx context.Context, w http.ResponseWriter, table string, params url.Values, requireScope bool) error {
	if table == "" {
		return dErrors.New(dErrors.CodeInvalidRequest, "table is required")
	}
	if requireScope && params.Get("where") == "" {
		return dErrors.New(dErrors.CodeInvalidRequest, "replay requires a tenant-scoped where clause")
	}
	if !p.breaker.Allow() {
		return syncFailed(table, fmt.Errorf("upstream circuit open"))
	}

	upstreamURL := *p.upstream
	query := url.Values{"table": []string{table}}
	for _, key := range replayParams {
		if v := params.Get(key); v != "" {
			query.Set(key, v)
		}
	}
	upstreamURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, upstreamURL.String(), nil)
	if err != nil {
		return syncFailed(table, err)
	}
	req.Header.Set("Authorization", "Bearer "+p.secret)

	resp, err := p.client.Do(req)
	if err != nil {
		p.breaker.RecordFailure()
		return syncFailed(table, err)
	}
	defer resp.Body.Close()
	p.breaker.RecordSuccess()

	// The upstream body arrives already decoded by the transport; these
	// headers would make downstream clients double-decode or misread length.
	for key, values := range resp.Header {
		if key == "Content-Encoding" || key == "Content-Length" {
			continue
		}
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		// Headers are gone; nothing to surface to the client but worth a log
		// upstream in the handler.
		return fmt.Errorf("copy replay body: %w", err)
	}
	return nil
}

func syncFailed(table string, err error) error {
	return dErrors.Wrap(err, dErrors.CodeSyncFailed, "change log replay failed").
		WithDetails(map[string]any{"entityType": table})
}
