package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/pliu/hush/internal/messages"
	"github.com/pliu/hush/internal/models"
)

// HTTP talks to a hush server. Its cookie jar carries the membership cookies
// handed out on join, one per room.
type HTTP struct {
	Base string
	HTTP *http.Client
}

func NewHTTP(base string) (*HTTP, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &HTTP{
		Base: strings.TrimRight(base, "/"),
		HTTP: &http.Client{
			Jar: jar,
			// Join rejections are redirects; the reason lives in Location.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

type CreateRoomRequest struct {
	Mode             string `json:"mode,omitempty"`
	Passcode         string `json:"passcode,omitempty"`
	PrivilegedSecret string `json:"privilegedSecret,omitempty"`
}

type CreateRoomResponse struct {
	RoomID string      `json:"roomId"`
	Mode   models.Mode `json:"mode"`
}

type JoinResult struct {
	RoomID   string `json:"roomId"`
	Existing bool   `json:"existing"`
	Count    int    `json:"count"`
}

func (c *HTTP) CreateRoom(ctx context.Context, req CreateRoomRequest) (CreateRoomResponse, error) {
	var out CreateRoomResponse
	err := c.do(ctx, http.MethodPost, "/api/room/create", req, &out)
	return out, err
}

// Join asks the gate for a seat. A rejection comes back as the matching
// models error.
func (c *HTTP) Join(ctx context.Context, roomID, passcode string) (JoinResult, error) {
	path := "/room/" + url.PathEscape(roomID)
	if passcode != "" {
		path += "?passcode=" + url.QueryEscape(passcode)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+path, nil)
	if err != nil {
		return JoinResult{}, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return JoinResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusSeeOther {
		loc, err := url.Parse(resp.Header.Get("Location"))
		if err != nil {
			return JoinResult{}, fmt.Errorf("join %s: bad redirect: %w", roomID, err)
		}
		return JoinResult{}, fmt.Errorf("join %s: %w", roomID, reasonErr(loc.Query().Get("error")))
	}
	if err := checkStatus(resp, "join "+roomID); err != nil {
		return JoinResult{}, err
	}
	var out JoinResult
	return out, json.NewDecoder(resp.Body).Decode(&out)
}

func (c *HTTP) Meta(ctx context.Context, roomID string) (models.Meta, error) {
	var out models.Meta
	err := c.do(ctx, http.MethodGet, "/api/room/meta?roomId="+url.QueryEscape(roomID), nil, &out)
	return out, err
}

func (c *HTTP) ParticipantCount(ctx context.Context, roomID string) (int, error) {
	var out models.ParticipantCount
	err := c.do(ctx, http.MethodGet, "/api/room/participants?roomId="+url.QueryEscape(roomID), nil, &out)
	return out.Count, err
}

func (c *HTTP) Destroy(ctx context.Context, roomID string) error {
	return c.do(ctx, http.MethodDelete, "/api/room?roomId="+url.QueryEscape(roomID), nil, nil)
}

func (c *HTTP) PostMessage(ctx context.Context, roomID string, p messages.Post) (*models.Message, error) {
	var out models.Message
	if err := c.do(ctx, http.MethodPost, "/api/messages?roomId="+url.QueryEscape(roomID), p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTP) ListMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	var out struct {
		Messages []models.Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/messages?roomId="+url.QueryEscape(roomID), nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// Subscribe opens the room's realtime channel. The returned channel is closed
// when ctx ends or the server drops the connection, for instance after the
// room is destroyed.
func (c *HTTP) Subscribe(ctx context.Context, roomID string) (<-chan models.Event, error) {
	u, err := url.Parse(c.Base + "/api/realtime?roomId=" + url.QueryEscape(roomID))
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	dialer := websocket.Dialer{Jar: c.HTTP.Jar}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("subscribe %s: %w", roomID, statusErr(resp.StatusCode, resp.Status))
		}
		return nil, fmt.Errorf("subscribe %s: %w", roomID, err)
	}

	events := make(chan models.Event, 16)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go func() {
		defer close(events)
		defer conn.Close()
		for {
			var ev models.Event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

func (c *HTTP) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf := new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return err
		}
		body = buf
	}
	req, err := http.NewRequestWithContext(ctx, method, c.Base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, strings.ToLower(method)+" "+path); err != nil {
		return err
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func checkStatus(resp *http.Response, op string) error {
	if resp.StatusCode/100 == 2 {
		return nil
	}
	var body struct {
		Error string `json:"error"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	status := resp.Status
	if body.Error != "" {
		status += ": " + body.Error
	}
	return fmt.Errorf("%s: %w", op, statusErr(resp.StatusCode, status))
}

// statusErr turns a server status back into the error that produced it.
func statusErr(code int, status string) error {
	var sentinel error
	switch code {
	case http.StatusNotFound:
		sentinel = models.ErrRoomNotFound
	case http.StatusConflict:
		sentinel = models.ErrRoomFull
	case http.StatusForbidden:
		sentinel = models.ErrForbidden
	case http.StatusUnauthorized:
		sentinel = models.ErrNotMember
	default:
		return fmt.Errorf("server: %s", status)
	}
	return fmt.Errorf("%w (%s)", sentinel, status)
}

func reasonErr(reason string) error {
	switch reason {
	case models.ReasonRoomFull:
		return models.ErrRoomFull
	case models.ReasonPasscodeRequired:
		return models.ErrPasscodeRequired
	default:
		return models.ErrRoomNotFound
	}
}

var _ Transport = (*HTTP)(nil)
