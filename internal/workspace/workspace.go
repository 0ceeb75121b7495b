package workspace

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/awsm-dev/awsm/internal/errdef"
	"github.com/awsm-dev/awsm/internal/model"
)

// Workspace owns the node arena and the variable store.
type Workspace struct {
	mu      sync.RWMutex
	nodes   map[string]*model.TreeNode
	rootIDs []string

	vars  *VariableStore
	newID func() string
}

type Option func(*Workspace)

// WithIDs replaces the id generator, mainly for tests.
func WithIDs(fn func() string) Option {
	return func(w *Workspace) {
		if fn != nil {
			w.newID = fn
		}
	}
}

func New(opts ...Option) *Workspace {
	w := &Workspace{
		nodes: make(map[string]*model.TreeNode),
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.vars = newVariableStore(nil, w.newID)
	return w
}

// FromSnapshot rebuilds a workspace, rejecting arenas with dangling ids.
func FromSnapshot(snap Snapshot, opts ...Option) (*Workspace, error) {
	if snap.Nodes == nil {
		snap.Nodes = map[string]*model.TreeNode{}
	}
	if err := validate(snap); err != nil {
		return nil, errdef.Wrap(errdef.CodeParse, err, "invalid workspace")
	}
	w := New(opts...)
	for id, node := range snap.Nodes {
		w.nodes[id] = cloneNode(node)
	}
	w.rootIDs = slices.Clone(snap.RootIDs)
	state := &VarState{
		Globals:      slices.Clone(snap.Globals),
		Environments: slices.Clone(snap.Environments),
		ActiveID:     snap.ActiveEnvironmentID,
	}
	state = state.clone()
	if state.envIndex(state.ActiveID) < 0 {
		state.ActiveID = ""
	}
	w.vars = newVariableStore(state, w.newID)
	return w, nil
}

func (w *Workspace) Variables() *VariableStore {
	return w.vars
}

func (w *Workspace) Snapshot() Snapshot {
	w.mu.RLock()
	nodes := make(map[string]*model.TreeNode, len(w.nodes))
	for id, node := range w.nodes {
		nodes[id] = cloneNode(node)
	}
	roots := slices.Clone(w.rootIDs)
	w.mu.RUnlock()

	state := w.vars.Snapshot().clone()
	if roots == nil {
		roots = []string{}
	}
	if state.Globals == nil {
		state.Globals = []model.Variable{}
	}
	return Snapshot{
		Nodes:               nodes,
		RootIDs:             roots,
		Environments:        state.Environments,
		ActiveEnvironmentID: state.ActiveID,
		Globals:             state.Globals,
	}
}

// DefaultRequest is the definition a new request node starts with.
func DefaultRequest() model.RequestDefinition {
	return model.RequestDefinition{
		Method:  model.MethodPost,
		Params:  []model.KeyValue{},
		Headers: []model.KeyValue{{ID: uuid.NewString(), Key: "Content-Type", Value: "application/json", Enabled: true}},
		Body: model.Body{
			Kind:    model.BodyJSON,
			Content: "{\n  \"key\": \"value\"\n}",
		},
		Auth: model.NewAuth(model.NoAuth{}),
	}
}

// AddNode creates a node under parentID, or at the root when parentID is
// empty, and returns its id.
func (w *Workspace) AddNode(parentID string, typ model.NodeType, name string) (string, error) {
	switch typ {
	case model.NodeWorkspace, model.NodeCollection, model.NodeRequest, model.NodeWebSocket:
	default:
		return "", errdef.New(errdef.CodeValidation, "unknown node type %q", typ)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	node := &model.TreeNode{
		ID:         w.newID(),
		ParentID:   parentID,
		Name:       name,
		Type:       typ,
		IsExpanded: true,
	}
	switch typ {
	case model.NodeRequest:
		def := DefaultRequest()
		node.Data = &def
	case model.NodeWebSocket:
		node.WSData = &model.WebSocketData{Mode: model.WebSocketRaw}
	default:
		node.Children = []string{}
	}

	if parentID == "" {
		w.rootIDs = append(w.rootIDs, node.ID)
	} else {
		parent, ok := w.nodes[parentID]
		if !ok {
			return "", errdef.New(errdef.CodeValidation, "parent %q not found", parentID)
		}
		if !isContainer(parent.Type) {
			return "", errdef.New(errdef.CodeValidation, "%s node %q cannot hold children", parent.Type, parentID)
		}
		parent.Children = append(parent.Children, node.ID)
		parent.IsExpanded = true
	}
	w.nodes[node.ID] = node
	return node.ID, nil
}

// DeleteNode removes id and all of its descendants.
func (w *Workspace) DeleteNode(id string) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	target, ok := w.nodes[id]
	if !ok {
		return nil
	}
	var removed []string
	var mark func(string)
	mark = func(nodeID string) {
		removed = append(removed, nodeID)
		if n, ok := w.nodes[nodeID]; ok {
			for _, child := range n.Children {
				mark(child)
			}
		}
	}
	mark(id)
	for _, nodeID := range removed {
		delete(w.nodes, nodeID)
	}

	if parent, ok := w.nodes[target.ParentID]; ok {
		parent.Children = slices.DeleteFunc(parent.Children, func(c string) bool { return c == id })
	} else {
		w.rootIDs = slices.DeleteFunc(w.rootIDs, func(r string) bool { return r == id })
	}
	return removed
}

func (w *Workspace) RenameNode(id, name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	node, ok := w.nodes[id]
	if !ok {
		return errdef.New(errdef.CodeValidation, "node %q not found", id)
	}
	node.Name = name
	return nil
}

func (w *Workspace) Node(id string) (model.TreeNode, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	node, ok := w.nodes[id]
	if !ok {
		return model.TreeNode{}, false
	}
	return *cloneNode(node), true
}

func (w *Workspace) RootIDs() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.rootIDs)
}

// Request returns a copy of the definition stored on a request node.
func (w *Workspace) Request(id string) (model.RequestDefinition, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	node, ok := w.nodes[id]
	if !ok || node.Type != model.NodeRequest || node.Data == nil {
		return model.RequestDefinition{}, false
	}
	return node.Data.Clone(), true
}

// FindRequest resolves ref as a node id, then as a case-insensitive request
// name, then as a slash separated path of names from a root.
func (w *Workspace) FindRequest(ref string) (string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if node, ok := w.nodes[ref]; ok && node.Type == model.NodeRequest {
		return ref, true
	}
	for _, id := range w.orderedIDsLocked() {
		node := w.nodes[id]
		if node.Type == model.NodeRequest && strings.EqualFold(node.Name, ref) {
			return id, true
		}
	}
	if strings.Contains(ref, "/") {
		if id, ok := w.walkPathLocked(strings.Split(ref, "/")); ok {
			return id, true
		}
	}
	return "", false
}

func (w *Workspace) walkPathLocked(parts []string) (string, bool) {
	level := w.rootIDs
	var found string
	for _, part := range parts {
		found = ""
		for _, id := range level {
			if n := w.nodes[id]; n != nil && strings.EqualFold(n.Name, strings.TrimSpace(part)) {
				found = id
				level = n.Children
				break
			}
		}
		if found == "" {
			return "", false
		}
	}
	return found, w.nodes[found].Type == model.NodeRequest
}

// orderedIDsLocked lists node ids depth first in tree order.
func (w *Workspace) orderedIDsLocked() []string {
	out := make([]string, 0, len(w.nodes))
	var walk func([]string)
	walk = func(ids []string) {
		for _, id := range ids {
			n, ok := w.nodes[id]
			if !ok {
				continue
			}
			out = append(out, id)
			walk(n.Children)
		}
	}
	walk(w.rootIDs)
	return out
}

// Walk visits nodes depth first in tree order with their depth.
func (w *Workspace) Walk(fn func(node model.TreeNode, depth int)) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var walk func([]string, int)
	walk = func(ids []string, depth int) {
		for _, id := range ids {
			n, ok := w.nodes[id]
			if !ok {
				continue
			}
			fn(*cloneNode(n), depth)
			walk(n.Children, depth+1)
		}
	}
	walk(w.rootIDs, 0)
}

func (w *Workspace) UpdateRequest(id string, def model.RequestDefinition) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	node, ok := w.nodes[id]
	if !ok || node.Type != model.NodeRequest {
		return errdef.New(errdef.CodeValidation, "request %q not found", id)
	}
	clone := def.Clone()
	node.Data = &clone
	return nil
}

// UpdateWebSocket replaces the connection settings and message log stored on
// a websocket node.
func (w *Workspace) UpdateWebSocket(id string, data model.WebSocketData) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	node, ok := w.nodes[id]
	if !ok || node.Type != model.NodeWebSocket {
		return errdef.New(errdef.CodeValidation, "websocket %q not found", id)
	}
	data.Messages = slices.Clone(data.Messages)
	node.WSData = &data
	return nil
}

// Graft adds an externally built arena (for example an import) under
// parentID, or at the root when parentID is empty.
func (w *Workspace) Graft(parentID string, nodes map[string]*model.TreeNode, rootIDs []string) error {
	if err := validate(Snapshot{Nodes: nodes, RootIDs: rootIDs}); err != nil {
		return errdef.Wrap(errdef.CodeValidation, err, "graft")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for id := range nodes {
		if _, exists := w.nodes[id]; exists {
			return errdef.New(errdef.CodeValidation, "node %q already exists", id)
		}
	}
	var parent *model.TreeNode
	if parentID != "" {
		p, ok := w.nodes[parentID]
		if !ok || !isContainer(p.Type) {
			return errdef.New(errdef.CodeValidation, "parent %q cannot hold children", parentID)
		}
		parent = p
	}
	for id, node := range nodes {
		w.nodes[id] = cloneNode(node)
	}
	for _, id := range rootIDs {
		if parent != nil {
			w.nodes[id].ParentID = parentID
			parent.Children = append(parent.Children, id)
		} else {
			w.nodes[id].ParentID = ""
			w.rootIDs = append(w.rootIDs, id)
		}
	}
	return nil
}

// RequestFromHistory saves a history entry as a new root request node and
// returns the node id.
func (w *Workspace) RequestFromHistory(entry model.HistoryEntry) (string, error) {
	id, err := w.AddNode("", model.NodeRequest, historyNodeName(entry))
	if err != nil {
		return "", err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	node := w.nodes[id]
	node.Data.URL = entry.URL
	if m := model.ParseMethod(entry.Method); m.Valid() {
		node.Data.Method = m
	}
	return id, nil
}

func historyNodeName(entry model.HistoryEntry) string {
	url := entry.URL
	if r := []rune(url); len(r) > 20 {
		url = string(r[:20])
	}
	return fmt.Sprintf("%s %s...", entry.Method, url)
}

func isContainer(t model.NodeType) bool {
	return t == model.NodeWorkspace || t == model.NodeCollection
}

func cloneNode(n *model.TreeNode) *model.TreeNode {
	if n == nil {
		return nil
	}
	out := *n
	out.Children = slices.Clone(n.Children)
	if n.Data != nil {
		def := n.Data.Clone()
		out.Data = &def
	}
	if n.WSData != nil {
		ws := *n.WSData
		ws.Messages = slices.Clone(n.WSData.Messages)
		out.WSData = &ws
	}
	return &out
}
