package wsclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"nhooyr.io/websocket"

	"github.com/awsm-dev/awsm/internal/model"
)

// Engine.IO v4 packet types, with socket.io packets carried inside "4".
const (
	packetOpen       = "0"
	packetClose      = "1"
	packetPing       = "2"
	packetPong       = "3"
	packetConnect    = "40"
	packetDisconnect = "41"
	packetEvent      = "42"
	packetConnectErr = "44"
)

// socketIOURL maps a socket.io server URL onto its websocket transport
// endpoint.
func socketIOURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "ws", "":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host in %q", raw)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/socket.io/"
	}
	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// encodeEmit turns user text into an event frame. A JSON object with both
// event and data emits that event; other JSON is emitted as "message" with
// the decoded value and anything else as a plain string.
func encodeEmit(text string) (string, error) {
	event := "message"
	var payload any = text

	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err == nil {
		payload = parsed
		if obj, ok := parsed.(map[string]any); ok {
			name, _ := obj["event"].(string)
			data, hasData := obj["data"]
			if name != "" && hasData && data != nil {
				event = name
				payload = data
			}
		}
	}

	frame, err := json.Marshal([]any{event, payload})
	if err != nil {
		return "", err
	}
	return packetEvent + string(frame), nil
}

// decodeEvent parses the body of a "42" packet, skipping an optional
// namespace and ack id.
func decodeEvent(body string) (string, []any, error) {
	if strings.HasPrefix(body, "/") {
		if idx := strings.Index(body, ","); idx >= 0 {
			body = body[idx+1:]
		}
	}
	body = strings.TrimLeft(body, "0123456789")

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(body), &items); err != nil {
		return "", nil, err
	}
	if len(items) == 0 {
		return "", nil, fmt.Errorf("empty event packet")
	}
	var name string
	if err := json.Unmarshal(items[0], &name); err != nil {
		return "", nil, err
	}
	args := make([]any, 0, len(items)-1)
	for _, raw := range items[1:] {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return "", nil, err
		}
		args = append(args, v)
	}
	return name, args, nil
}

func formatEvent(name string, args []any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	payload := struct {
		Event string `json:"event"`
		Args  []any  `json:"args"`
	}{name, args}
	if err := enc.Encode(payload); err != nil {
		return name
	}
	return strings.TrimRight(buf.String(), "\n")
}

func (c *Client) readSocketIO(cn *conn) {
	ctx := cn.session.Context()
	for {
		typ, data, err := cn.ws.Read(ctx)
		if err != nil {
			c.finish(cn, err)
			return
		}
		if typ != websocket.MessageText {
			c.publish(cn, model.MessageReceived, "Binary data")
			continue
		}
		packet := string(data)

		var reply string
		switch {
		case strings.HasPrefix(packet, packetOpen):
			reply = packetConnect
		case packet == packetPing:
			reply = packetPong
		case packet == packetClose:
			_ = cn.ws.Close(websocket.StatusNormalClosure, "")
		case strings.HasPrefix(packet, packetConnectErr):
			c.publish(cn, model.MessageError, "Connection Error: "+connectErrorMessage(packet[len(packetConnectErr):]))
		case strings.HasPrefix(packet, packetConnect):
			if !cn.ready.Swap(true) {
				cn.onStatus(true)
				c.publish(cn, model.MessageSystem, "Connected to "+cn.url+" (Socket.IO)")
			}
		case strings.HasPrefix(packet, packetDisconnect):
			c.publish(cn, model.MessageSystem, "Disconnected: io server disconnect")
			if cn.ready.Swap(false) {
				cn.onStatus(false)
			}
			_ = cn.ws.Close(websocket.StatusNormalClosure, "")
		case strings.HasPrefix(packet, packetEvent):
			name, args, err := decodeEvent(packet[len(packetEvent):])
			if err != nil {
				c.publish(cn, model.MessageError, "Malformed event: "+err.Error())
				continue
			}
			c.publish(cn, model.MessageReceived, formatEvent(name, args))
		}

		if reply != "" {
			if err := cn.ws.Write(ctx, websocket.MessageText, []byte(reply)); err != nil {
				c.finish(cn, err)
				return
			}
		}
	}
}

func connectErrorMessage(body string) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return strings.TrimSpace(body)
}
