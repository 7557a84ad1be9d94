package replica

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"encmirror/internal/api"
	"encmirror/internal/event"
	"encmirror/internal/messages"
	"encmirror/internal/mirror"
	"encmirror/internal/model"
	"encmirror/internal/view"
)

var ErrAPIUnavailable = errors.New("encmirror API unavailable")

// StatusError is a non-2xx API response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api returned status %d", e.Code)
	}
	return fmt.Sprintf("api returned status %d: %s", e.Code, e.Message)
}

// Client talks to the encmirrord HTTP API.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// NewClient builds a client for bind, which may be host:port or a full URL.
// An empty bind yields a nil client whose calls fail with ErrAPIUnavailable.
func NewClient(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, nil
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base:  base,
		token: strings.TrimSpace(token),
		// No timeout: message long-polls block until the caller cancels.
		http: &http.Client{},
	}, nil
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	if c == nil {
		return ""
	}
	return c.base.String()
}

func (c *Client) Health(ctx context.Context) (api.HealthResponse, error) {
	var out api.HealthResponse
	err := c.getJSON(ctx, "/api/health", nil, &out)
	return out, err
}

func (c *Client) Snapshot(ctx context.Context) (mirror.Snapshot, error) {
	var out mirror.Snapshot
	err := c.getJSON(ctx, "/api/snapshot", nil, &out)
	return out, err
}

func (c *Client) System(ctx context.Context) (api.SystemResponse, error) {
	var out api.SystemResponse
	err := c.getJSON(ctx, "/api/system", nil, &out)
	return out, err
}

// Queue fetches the materialized queue view for filter.
func (c *Client) Queue(ctx context.Context, filter view.Filter) (view.QueueView, error) {
	var out view.QueueView
	err := c.getJSON(ctx, "/api/queue", api.EncodeQueueFilter(filter), &out)
	return out, err
}

func (c *Client) QueueItem(ctx context.Context, id int64) (view.ItemView, error) {
	var out view.ItemView
	err := c.getJSON(ctx, "/api/queue/"+strconv.FormatInt(id, 10), nil, &out)
	return out, err
}

// Changes fetches queue mutations after since.
func (c *Client) Changes(ctx context.Context, since uint64) (mirror.ChangeSet, error) {
	var out mirror.ChangeSet
	values := url.Values{"since": {strconv.FormatUint(since, 10)}}
	err := c.getJSON(ctx, "/api/queue/changes", values, &out)
	return out, err
}

func (c *Client) Console(ctx context.Context) (view.ConsoleView, error) {
	var out view.ConsoleView
	err := c.getJSON(ctx, "/api/console", nil, &out)
	return out, err
}

// EncodeLogPage fetches one page of encode history, newest first.
func (c *Client) EncodeLogPage(ctx context.Context, offset, limit int) (api.Page[model.LogItem], error) {
	var out api.Page[model.LogItem]
	err := c.getJSON(ctx, "/api/logs/encode/page", api.EncodePage(offset, limit), &out)
	return out, err
}

// CheckLogPage fetches one page of check history, newest first.
func (c *Client) CheckLogPage(ctx context.Context, offset, limit int) (api.Page[model.CheckLogItem], error) {
	var out api.Page[model.CheckLogItem]
	err := c.getJSON(ctx, "/api/logs/check/page", api.EncodePage(offset, limit), &out)
	return out, err
}

func (c *Client) Disks(ctx context.Context) (api.DisksResponse, error) {
	var out api.DisksResponse
	err := c.getJSON(ctx, "/api/info/disks", nil, &out)
	return out, err
}

// Messages fetches operation messages. With wait set the daemon holds the
// request open until a newer message arrives or its wait limit passes.
func (c *Client) Messages(ctx context.Context, q api.MessageQuery, wait bool) (messages.Changes, error) {
	var out messages.Changes
	values := api.EncodeMessageQuery(q)
	if wait {
		values.Set("wait", "true")
	}
	err := c.getJSON(ctx, "/api/messages/changes", values, &out)
	return out, err
}

// Command forwards body to the encode server. An empty requestID lets the
// daemon assign one.
func (c *Client) Command(ctx context.Context, verb event.Verb, body []byte, requestID string) (api.CommandResponse, error) {
	var out api.CommandResponse
	header := http.Header{}
	if requestID = strings.TrimSpace(requestID); requestID != "" {
		header.Set("X-Request-ID", requestID)
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/commands/"+string(verb), nil, header, body, &out)
	return out, err
}

func (c *Client) CreatePreview(ctx context.Context, jobID int64, serviceID int) (api.PreviewSession, error) {
	body, err := json.Marshal(api.PreviewSessionRequest{QueueItemID: jobID, ServiceID: serviceID})
	if err != nil {
		return api.PreviewSession{}, err
	}
	var out api.PreviewSession
	err = c.doJSON(ctx, http.MethodPost, "/api/preview/sessions", nil, nil, body, &out)
	return out, err
}

// PreviewFrame returns the PNG frame at pos in [0,1].
func (c *Client) PreviewFrame(ctx context.Context, sessionID string, pos float64) ([]byte, error) {
	values := url.Values{"pos": {strconv.FormatFloat(pos, 'f', -1, 64)}}
	resp, err := c.do(ctx, http.MethodGet, "/api/preview/sessions/"+url.PathEscape(sessionID)+"/frame", values, nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (c *Client) RemovePreview(ctx context.Context, sessionID string) (bool, error) {
	var out api.PreviewRemoveResponse
	err := c.doJSON(ctx, http.MethodDelete, "/api/preview/sessions/"+url.PathEscape(sessionID), nil, nil, nil, &out)
	return out.Removed, err
}

func (c *Client) getJSON(ctx context.Context, path string, values url.Values, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, values, nil, nil, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, values url.Values, header http.Header, body []byte, out any) error {
	resp, err := c.do(ctx, method, path, values, header, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, values url.Values, header http.Header, body []byte) (*http.Response, error) {
	if c == nil {
		return nil, ErrAPIUnavailable
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: values.Encode()})
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return nil, err
	}
	for key, vals := range header {
		for _, v := range vals {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		var payload api.ErrorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&payload)
		return nil, &StatusError{Code: resp.StatusCode, Message: payload.Error}
	}
	return resp, nil
}

// IsAPIUnavailable reports whether err means the daemon could not be reached.
func IsAPIUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrAPIUnavailable) || errors.As(err, &opErr)
}

// IsStatus reports whether err is an API response with the given status.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == code
}
