// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The treesync Authors

package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/treestash/treesync/internal/config"
	"github.com/treestash/treesync/internal/events"
	"github.com/treestash/treesync/internal/logger"
	"github.com/treestash/treesync/internal/metrics"
	"github.com/treestash/treesync/models"
)

type httpTransport struct {
	client *resty.Client
	bus    *events.Bus

	token  string
	online atomic.Bool

	logger *logger.Logger
}

// NewHTTPTransport constructs the HTTP/REST implementation of [Transport].
// It normalises and validates the base URL from remoteCfg.BaseURL, configures
// the resty client with the resolved base URL and request timeout, and, when
// the configured token looks like a JWT, logs its subject and expiry for
// diagnostics.
//
// Returns an error if remoteCfg.BaseURL is empty or cannot be parsed as a
// valid URL.
func NewHTTPTransport(remoteCfg config.Remote, bus *events.Bus, logger *logger.Logger) (Transport, error) {
	baseURL, err := normalizeBaseURL(remoteCfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid remote base url: %w", err)
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(remoteCfg.RequestTimeout)

	t := &httpTransport{
		client: client,
		bus:    bus,
		token:  strings.TrimSpace(remoteCfg.Token),
		logger: logger.WithComponent("transport"),
	}
	t.online.Store(true)
	t.logTokenClaims()

	return t, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty address")
	}

	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("address must include host and scheme")
	}

	return strings.TrimRight(u.String(), "/"), nil
}

// logTokenClaims parses the bearer token without verification, purely to log
// who we authenticate as and when the token expires. A token that is not a
// JWT is fine; many backends issue opaque tokens.
func (t *httpTransport) logTokenClaims() {
	if t.token == "" {
		return
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(t.token, jwt.MapClaims{})
	if err != nil {
		return
	}

	event := t.logger.Debug()
	if sub, err := parsed.Claims.GetSubject(); err == nil && sub != "" {
		event = event.Str("subject", sub)
	}
	if exp, err := parsed.Claims.GetExpirationTime(); err == nil && exp != nil {
		event = event.Time("expires", exp.Time)
	}
	event.Msg("using bearer token")
}

// Get implements [Transport].
func (t *httpTransport) Get(ctx context.Context, path string, opts GetOptions) (RemoteResponse, error) {
	req := t.request(ctx)
	if opts.IfNoneMatch != "" {
		req.SetHeader("If-None-Match", quoteETag(opts.IfNoneMatch))
	}

	start := time.Now()
	resp, err := req.Get(encodePath(path))
	metrics.RecordRemoteRequest("GET", start)
	if err != nil {
		return RemoteResponse{}, t.networkError("get", path, err)
	}
	t.markOnline()

	result := t.decodeResponse(resp)
	if models.IsFolder(path) && resp.StatusCode() == 200 {
		items, err := parseFolderListing(resp.Body())
		if err != nil {
			t.logger.Warn().Err(err).Str("path", path).Msg("discarding folder listing")
			return RemoteResponse{}, err
		}
		result.Items = items
		result.Body = nil
	}

	return result, nil
}

// Put implements [Transport].
func (t *httpTransport) Put(ctx context.Context, path string, body []byte, contentType string, opts PutOptions) (RemoteResponse, error) {
	req := t.request(ctx).
		SetHeader("Content-Type", contentType).
		SetBody(body)
	if opts.IfMatch != "" {
		req.SetHeader("If-Match", quoteETag(opts.IfMatch))
	} else if opts.IfNoneMatch != "" {
		req.SetHeader("If-None-Match", opts.IfNoneMatch)
	}

	start := time.Now()
	resp, err := req.Put(encodePath(path))
	metrics.RecordRemoteRequest("PUT", start)
	if err != nil {
		return RemoteResponse{}, t.networkError("put", path, err)
	}
	t.markOnline()

	return t.decodeResponse(resp), nil
}

// Delete implements [Transport].
func (t *httpTransport) Delete(ctx context.Context, path string, opts DeleteOptions) (RemoteResponse, error) {
	req := t.request(ctx)
	if opts.IfMatch != "" {
		req.SetHeader("If-Match", quoteETag(opts.IfMatch))
	}

	start := time.Now()
	resp, err := req.Delete(encodePath(path))
	metrics.RecordRemoteRequest("DELETE", start)
	if err != nil {
		return RemoteResponse{}, t.networkError("delete", path, err)
	}
	t.markOnline()

	return t.decodeResponse(resp), nil
}

// Connected implements [Transport].
func (t *httpTransport) Connected() bool {
	return t.client.BaseURL != ""
}

// Online implements [Transport].
func (t *httpTransport) Online() bool {
	return t.online.Load()
}

// ImpliedAuth implements [Transport].
func (t *httpTransport) ImpliedAuth() bool {
	return t.token == ""
}

func (t *httpTransport) request(ctx context.Context) *resty.Request {
	req := t.client.R().
		SetContext(ctx).
		SetHeader("X-Request-Id", uuid.NewString())
	if t.token != "" {
		req.SetHeader("Authorization", "Bearer "+t.token)
	}
	return req
}

func (t *httpTransport) decodeResponse(resp *resty.Response) RemoteResponse {
	return RemoteResponse{
		StatusCode:  resp.StatusCode(),
		Body:        resp.Body(),
		ContentType: resp.Header().Get("Content-Type"),
		Revision:    stripETag(resp.Header().Get("ETag")),
	}
}

// networkError flips the transport offline on the first failure and notifies
// subscribers. Subsequent failures stay quiet until the next recovery.
func (t *httpTransport) networkError(op, path string, err error) error {
	if t.online.Swap(false) {
		t.logger.Warn().Err(err).Str("path", path).Msg("remote unreachable, going offline")
		t.bus.Publish(events.Event{Kind: events.KindNetworkOffline, Timestamp: time.Now().UnixMilli()})
	}
	return fmt.Errorf("%w: %s %s: %v", ErrNetwork, op, path, err)
}

func (t *httpTransport) markOnline() {
	if !t.online.Swap(true) {
		t.logger.Info().Msg("remote reachable again")
		t.bus.Publish(events.Event{Kind: events.KindNetworkOnline, Timestamp: time.Now().UnixMilli()})
	}
}

// encodePath percent-encodes each path segment while preserving slashes, so
// document names with spaces or reserved characters survive the round trip.
func encodePath(path string) string {
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}

func quoteETag(tag string) string {
	if strings.HasPrefix(tag, `"`) {
		return tag
	}
	return `"` + tag + `"`
}

func stripETag(header string) string {
	header = strings.TrimPrefix(header, "W/")
	return strings.Trim(header, `"`)
}

// listingEntry is the per-item shape of a remote folder listing.
type listingEntry struct {
	ETag          string `json:"ETag"`
	ContentType   string `json:"Content-Type"`
	ContentLength int64  `json:"Content-Length"`
}

// parseFolderListing decodes a folder GET body. Accepts both the enveloped
// form {"items": {...}} and a bare item map. Item names containing a slash
// anywhere but the end, or entries without an ETag, mark the whole listing
// invalid; ingesting it would corrupt local state.
func parseFolderListing(body []byte) (map[string]models.FolderItem, error) {
	var envelope struct {
		Items map[string]listingEntry `json:"items"`
	}
	var raw map[string]listingEntry
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Items != nil {
		raw = envelope.Items
	} else if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidListing, err)
	}

	items := make(map[string]models.FolderItem, len(raw))
	for name, entry := range raw {
		if name == "" || name == "/" || strings.Contains(strings.TrimSuffix(name, "/"), "/") {
			return nil, fmt.Errorf("%w: bad item name %q", ErrInvalidListing, name)
		}
		if entry.ETag == "" {
			return nil, fmt.Errorf("%w: item %q has no ETag", ErrInvalidListing, name)
		}
		items[name] = models.FolderItem{
			Present:       true,
			ETag:          stripETag(entry.ETag),
			ContentType:   entry.ContentType,
			ContentLength: entry.ContentLength,
		}
	}

	return items, nil
}
