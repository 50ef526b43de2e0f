// Package client talks to a logmate server: it uploads files and follows
// their progress over the status websocket.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"pkg.jsn.cam/logmate/pkg/logmate"
	"pkg.jsn.cam/logmate/pkg/logmate/httpx"
	"pkg.jsn.cam/logmate/pkg/logmate/protocol"
)

var (
	ErrJobFailed    = errors.New("job failed")
	ErrStreamClosed = errors.New("status stream closed")
)

// Client handles HTTP communication with a logmate server
type Client struct {
	http    *http.Client
	baseURL string
	dialer  *websocket.Dialer
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// Uploads can be large; per-request deadlines come from ctx.
		http:   &http.Client{},
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// CSRFToken fetches a fresh anti-forgery token.
func (c *Client) CSRFToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/csrf-token/", nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch csrf token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch csrf token: %w", httpx.Decode(resp))
	}

	var body protocol.CSRFTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode csrf token: %w", err)
	}
	return body.CSRFToken, nil
}

// Upload sends the file at path for processing.
func (c *Client) Upload(ctx context.Context, path string) (*protocol.UploadResponse, error) {
	token, err := c.CSRFToken(ctx)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// Stream the multipart body instead of buffering the whole file.
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("log_file", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/", pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-CSRFToken", token)
	req.AddCookie(&http.Cookie{Name: "csrftoken", Value: token})

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upload %s: %w", path, httpx.Decode(resp))
	}

	var body protocol.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	return &body, nil
}

// Job fetches the current record of a job.
func (c *Client) Job(ctx context.Context, id string) (*protocol.Job, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/jobs/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get job %s: %w", id, httpx.Decode(resp))
	}

	var job protocol.Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}

// Stream is an open status websocket.
type Stream struct {
	conn *websocket.Conn
}

// Follow opens the status websocket. Open it before uploading so no event
// of the new job is missed.
func (c *Client) Follow(ctx context.Context) (*Stream, error) {
	wsURL, err := websocketURL(c.baseURL + "/ws/logstatus/")
	if err != nil {
		return nil, err
	}

	conn, resp, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("open status stream: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("open status stream: %w", err)
	}
	return &Stream{conn: conn}, nil
}

// Next blocks for the next event.
func (s *Stream) Next(ctx context.Context) (logmate.Event, error) {
	stop := context.AfterFunc(ctx, func() {
		// Unblocks ReadMessage.
		_ = s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	_, data, err := s.conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return logmate.Event{}, ctx.Err()
		}
		return logmate.Event{}, fmt.Errorf("%w: %w", ErrStreamClosed, err)
	}

	var ev logmate.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return logmate.Event{}, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}

// Wait reads events until jobID completes or fails for good. Every event
// of jobID is passed to onEvent, if set. A final ERROR is returned as
// ErrJobFailed.
func (s *Stream) Wait(ctx context.Context, jobID string, onEvent func(logmate.Event)) (*logmate.Result, error) {
	for {
		ev, err := s.Next(ctx)
		if err != nil {
			return nil, err
		}
		if ev.JobID != jobID {
			continue
		}
		if onEvent != nil {
			onEvent(ev)
		}

		switch {
		case ev.Type == logmate.EventComplete:
			return ev.Result, nil
		case ev.Type == logmate.EventError && ev.Final:
			return nil, fmt.Errorf("%w: %s", ErrJobFailed, ev.Message)
		}
	}
}

// Close closes the websocket.
func (s *Stream) Close() error {
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return s.conn.Close()
}

// Submit uploads path and waits for its result.
func (c *Client) Submit(ctx context.Context, path string, onEvent func(logmate.Event)) (*protocol.UploadResponse, *logmate.Result, error) {
	stream, err := c.Follow(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer stream.Close()

	upload, err := c.Upload(ctx, path)
	if err != nil {
		return nil, nil, err
	}

	res, err := stream.Wait(ctx, upload.TaskID, onEvent)
	return upload, res, err
}

func websocketURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	return u.String(), nil
}
