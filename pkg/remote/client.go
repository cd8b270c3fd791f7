// Package remote talks to the submission site: it fetches the viewer-submitted
// queue, pushes local queue and settings changes back, reports levels and
// keeps the streamer marked online.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tableflip.dev/levelreq/pkg/config"
	"tableflip.dev/levelreq/pkg/level"
	"tableflip.dev/levelreq/pkg/logging"
	"tableflip.dev/levelreq/pkg/metrics"
)

// Actions understood by the endpoint. ActionReport goes to the report
// endpoint instead.
const (
	ActionFetch        = "fetch"
	ActionHeartbeat    = "heartbeat"
	ActionUpdateConfig = "update_config"
	ActionUpdateQueue  = "update_queue"
	ActionReport       = "report"
)

// DefaultTimeout bounds every call when Options.Timeout is unset.
const DefaultTimeout = 5 * time.Second

const maxBodyBytes = 4 << 20

// Remote is the contract the sync engine and the queue actions rely on.
// Push and heartbeat calls are best-effort and report nothing.
type Remote interface {
	FetchQueue(ctx context.Context, appID string) ([]level.Record, error)
	PushQueue(ctx context.Context, appID string, queue []level.Record)
	PushConfig(ctx context.Context, appID string, view config.RemoteView)
	Heartbeat(ctx context.Context, appID string)
	Report(ctx context.Context, levelID, reason string) error
}

// Options configures a Client.
type Options struct {
	Endpoint       string
	ReportEndpoint string
	Timeout        time.Duration
	HTTPClient     *http.Client
	Logger         logrus.FieldLogger
	Metrics        *metrics.Metrics
	UserAgent      string
}

// Client is the HTTP implementation of Remote. Each call makes exactly one
// attempt bounded by the configured timeout.
type Client struct {
	endpoint       string
	reportEndpoint string
	timeout        time.Duration
	http           *http.Client
	log            logrus.FieldLogger
	metrics        *metrics.Metrics
	userAgent      string
}

var _ Remote = (*Client)(nil)

// New creates a Client.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "levelreq"
	}
	return &Client{
		endpoint:       strings.TrimSpace(opts.Endpoint),
		reportEndpoint: strings.TrimSpace(opts.ReportEndpoint),
		timeout:        timeout,
		http:           hc,
		log:            logging.OrDiscard(opts.Logger).WithField("component", "remote"),
		metrics:        metrics.OrNoop(opts.Metrics),
		userAgent:      ua,
	}
}

// Timeout is the bound applied to each call.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// envelope is the JSON shape every endpoint answers with.
type envelope struct {
	Success *bool             `json:"success"`
	Queue   []json.RawMessage `json:"queue"`
	Message string            `json:"message"`
	Error   string            `json:"error"`
}

func (e envelope) reason() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// FetchQueue returns the server's copy of the queue for appID.
func (c *Client) FetchQueue(ctx context.Context, appID string) ([]level.Record, error) {
	params := url.Values{}
	params.Set("id", appID)
	params.Set("action", ActionFetch)

	target, err := withQuery(c.endpoint, params)
	if err != nil {
		return nil, c.reject(ActionFetch, 0, err.Error())
	}

	body, err := c.do(ctx, ActionFetch, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	})
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, c.reject(ActionFetch, http.StatusOK, fmt.Sprintf("undecodable response: %v", err))
	}
	if env.Success == nil || !*env.Success {
		return nil, c.reject(ActionFetch, http.StatusOK, env.reason())
	}

	log := c.log.WithField("action", ActionFetch)
	records := make([]level.Record, 0, len(env.Queue))
	for i, raw := range env.Queue {
		var r level.Record
		if err := json.Unmarshal(raw, &r); err != nil {
			log.WithError(err).WithField("index", i).Warn("skipping undecodable record")
			continue
		}
		if r.ID == "" {
			log.WithField("index", i).Warn("skipping record without id")
			continue
		}
		records = append(records, r)
	}
	records, dropped := level.Dedupe(records)
	if dropped > 0 {
		log.WithField("dropped", dropped).Warn("server queue held duplicate ids")
	}
	c.observe(ActionFetch, metrics.OutcomeOK)
	return records, nil
}

// PushQueue replaces the server's queue with queue.
func (c *Client) PushQueue(ctx context.Context, appID string, queue []level.Record) {
	data, err := json.Marshal(level.Clone(queue))
	if err != nil {
		c.log.WithError(err).Debug("encode queue")
		return
	}
	c.bestEffort(ctx, ActionUpdateQueue, url.Values{
		"id":     {appID},
		"action": {ActionUpdateQueue},
		"queue":  {string(data)},
	})
}

// PushConfig publishes the submission page settings.
func (c *Client) PushConfig(ctx context.Context, appID string, view config.RemoteView) {
	data, err := json.Marshal(view)
	if err != nil {
		c.log.WithError(err).Debug("encode config")
		return
	}
	c.bestEffort(ctx, ActionUpdateConfig, url.Values{
		"id":     {appID},
		"action": {ActionUpdateConfig},
		"config": {string(data)},
	})
}

// Heartbeat tells the site the streamer's app is running.
func (c *Client) Heartbeat(ctx context.Context, appID string) {
	c.bestEffort(ctx, ActionHeartbeat, url.Values{
		"id":     {appID},
		"action": {ActionHeartbeat},
	})
}

// Report flags a level for moderation. Unlike the push calls its outcome is
// returned: ErrUnreachable or a *RejectedError.
func (c *Client) Report(ctx context.Context, levelID, reason string) error {
	form := url.Values{
		"level_id": {levelID},
		"reason":   {reason},
	}
	body, err := c.post(ctx, c.reportEndpoint, ActionReport, form)
	if err != nil {
		return err
	}
	// The report script may answer with plain text; only an explicit JSON
	// failure is a rejection.
	var env envelope
	if json.Unmarshal(body, &env) == nil && env.Success != nil && !*env.Success {
		return c.reject(ActionReport, http.StatusOK, env.reason())
	}
	c.observe(ActionReport, metrics.OutcomeOK)
	return nil
}

func (c *Client) bestEffort(ctx context.Context, action string, form url.Values) {
	if _, err := c.post(ctx, c.endpoint, action, form); err != nil {
		c.log.WithField("action", action).WithError(err).Debug("best-effort call failed")
		return
	}
	c.observe(action, metrics.OutcomeOK)
}

func (c *Client) post(ctx context.Context, target, action string, form url.Values) ([]byte, error) {
	encoded := form.Encode()
	return c.do(ctx, action, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewBufferString(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
}

// do performs one request and classifies the outcome. A nil error means a
// 2xx response whose body was read in full.
func (c *Client) do(ctx context.Context, action string, build func(context.Context) (*http.Request, error)) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := build(ctx)
	if err != nil {
		return nil, c.reject(action, 0, fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	c.metrics.RemoteDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, c.unreachable(action, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, c.unreachable(action, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.reject(action, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func (c *Client) unreachable(action string, err error) error {
	c.observe(action, metrics.OutcomeUnreachable)
	return fmt.Errorf("%w: %s: %v", ErrUnreachable, action, err)
}

func (c *Client) reject(action string, status int, message string) error {
	c.observe(action, metrics.OutcomeRejected)
	return &RejectedError{Action: action, StatusCode: status, Message: message}
}

func (c *Client) observe(action, outcome string) {
	c.metrics.RemoteRequests.WithLabelValues(action, outcome).Inc()
}

func withQuery(endpoint string, params url.Values) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.New("endpoint must be an absolute url")
	}
	q := u.Query()
	for k, vs := range params {
		q[k] = vs
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
