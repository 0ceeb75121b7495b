package model

type NodeType string

const (
	NodeWorkspace  NodeType = "workspace"
	NodeCollection NodeType = "collection"
	NodeRequest    NodeType = "request"
	NodeWebSocket  NodeType = "websocket"
)

// TreeNode lives in a flat arena keyed by id; parent and children are ids.
type TreeNode struct {
	ID          string             `json:"id"                    yaml:"id"`
	ParentID    string             `json:"parentId,omitempty"    yaml:"parentId,omitempty"`
	Name        string             `json:"name"                  yaml:"name"`
	Type        NodeType           `json:"type"                  yaml:"type"`
	Children    []string           `json:"children,omitempty"    yaml:"children,omitempty"`
	IsExpanded  bool               `json:"isExpanded,omitempty"  yaml:"isExpanded,omitempty"`
	IsTemporary bool               `json:"isTemporary,omitempty" yaml:"isTemporary,omitempty"`
	Data        *RequestDefinition `json:"data,omitempty"        yaml:"data,omitempty"`
	WSData      *WebSocketData     `json:"wsData,omitempty"      yaml:"wsData,omitempty"`
}

type Variable struct {
	ID      string `json:"id,omitempty" yaml:"id,omitempty"`
	Key     string `json:"key"          yaml:"key"`
	Value   string `json:"value"        yaml:"value"`
	Enabled bool   `json:"enabled"      yaml:"enabled"`
}

type Environment struct {
	ID        string     `json:"id"        yaml:"id"`
	Name      string     `json:"name"      yaml:"name"`
	Variables []Variable `json:"variables" yaml:"variables"`
}

// Values returns the enabled variables; disabled entries never enter a scope.
func (e Environment) Values() map[string]string {
	return EnabledValues(e.Variables)
}

func EnabledValues(vars []Variable) map[string]string {
	out := make(map[string]string, len(vars))
	for _, v := range vars {
		if !v.Enabled || v.Key == "" {
			continue
		}
		out[v.Key] = v.Value
	}
	return out
}

type WebSocketMode string

const (
	WebSocketRaw      WebSocketMode = "raw"
	WebSocketSocketIO WebSocketMode = "socket.io"
)

type WebSocketMessageType string

const (
	MessageSent     WebSocketMessageType = "sent"
	MessageReceived WebSocketMessageType = "received"
	MessageSystem   WebSocketMessageType = "system"
	MessageError    WebSocketMessageType = "error"
)

type WebSocketMessage struct {
	ID        string               `json:"id"        yaml:"id"`
	Type      WebSocketMessageType `json:"type"      yaml:"type"`
	Data      string               `json:"data"      yaml:"data"`
	Timestamp int64                `json:"timestamp" yaml:"timestamp"`
}

type WebSocketData struct {
	URL       string             `json:"url"                 yaml:"url"`
	Mode      WebSocketMode      `json:"type,omitempty"      yaml:"type,omitempty"`
	EventName string             `json:"eventName,omitempty" yaml:"eventName,omitempty"`
	Messages  []WebSocketMessage `json:"messages,omitempty"  yaml:"messages,omitempty"`
}
