// Package stream is the client side of the realtime push subscription.
//
// The server sends one JSON array of rows per text message, each a complete
// batch for the pro universe. Messages that do not decode are dropped.
package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"nhooyr.io/websocket"

	"github.com/lotas/tradersecho/internal/api"
	"github.com/lotas/tradersecho/internal/applog"
	"github.com/lotas/tradersecho/internal/types"
)

// Close codes the backend uses to refuse a subscription.
const (
	CodeBadToken websocket.StatusCode = 4401
	CodeNotPro   websocket.StatusCode = 4403
)

const readLimit = 4 << 20

// SubscriptionError reports why a subscription ended or could not start.
// Code is the close status, or -1 when the connection dropped without one.
type SubscriptionError struct {
	Code websocket.StatusCode
	Err  error
}

func (e *SubscriptionError) Error() string {
	if e.Code == -1 {
		return fmt.Sprintf("subscription: %v", e.Err)
	}
	return fmt.Sprintf("subscription closed (%d): %v", e.Code, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }

// Entitlement reports whether the server refused the credential, in which
// case reconnecting is pointless.
func (e *SubscriptionError) Entitlement() bool {
	return e.Code == CodeBadToken || e.Code == CodeNotPro
}

// IsEntitlement reports whether err is a SubscriptionError caused by a
// refused credential.
func IsEntitlement(err error) bool {
	var se *SubscriptionError
	return errors.As(err, &se) && se.Entitlement()
}

// URL derives the subscription endpoint from the REST base:
// http://host:8000 becomes ws://host:8000/ws/realtime?token=...
func URL(base, token string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("parse api base: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/realtime"
	q := url.Values{}
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Subscription is an open push connection. Next must not be called
// concurrently; Close may be called from any goroutine.
type Subscription struct {
	conn *websocket.Conn
}

// Dial opens the subscription for token. A handshake the server rejects
// with HTTP 401/403 is reported as a SubscriptionError with the matching
// entitlement close code.
func Dial(ctx context.Context, base, token string) (*Subscription, error) {
	u, err := URL(base, token)
	if err != nil {
		return nil, err
	}
	conn, resp, err := websocket.Dial(ctx, u, nil)
	if err != nil {
		code := websocket.StatusCode(-1)
		if resp != nil {
			switch resp.StatusCode {
			case http.StatusUnauthorized:
				code = CodeBadToken
			case http.StatusForbidden:
				code = CodeNotPro
			}
		}
		return nil, &SubscriptionError{Code: code, Err: fmt.Errorf("dial: %w", err)}
	}
	conn.SetReadLimit(readLimit)
	return &Subscription{conn: conn}, nil
}

// Next blocks until the next well-formed batch arrives. Malformed messages
// are logged and skipped. Any read failure, including ctx cancellation,
// ends the subscription and is returned as a SubscriptionError.
func (s *Subscription) Next(ctx context.Context) ([]types.Row, error) {
	for {
		typ, data, err := s.conn.Read(ctx)
		if err != nil {
			return nil, &SubscriptionError{Code: websocket.CloseStatus(err), Err: err}
		}
		if typ != websocket.MessageText {
			applog.Info("stream.skip", "type", typ.String())
			continue
		}
		rows, err := api.DecodeRows(data)
		if err != nil {
			applog.Error("stream.parse", err, "bytes", len(data))
			continue // skip malformed, keep listening
		}
		return rows, nil
	}
}

// Close ends the subscription with a normal closure.
func (s *Subscription) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}
