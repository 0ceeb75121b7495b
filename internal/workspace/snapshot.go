package workspace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/awsm-dev/awsm/internal/errdef"
	"github.com/awsm-dev/awsm/internal/model"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Snapshot is the persisted form of a workspace.
type Snapshot struct {
	Nodes               map[string]*model.TreeNode `json:"nodes"                         yaml:"nodes"`
	RootIDs             []string                   `json:"rootIds"                       yaml:"rootIds"`
	Environments        []model.Environment        `json:"environments"                  yaml:"environments"`
	ActiveEnvironmentID string                     `json:"activeEnvironmentId,omitempty" yaml:"activeEnvironmentId,omitempty"`
	Globals             []model.Variable           `json:"globals"                       yaml:"globals"`
}

// FormatFor picks YAML for .yaml and .yml paths and JSON otherwise.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

func Decode(data []byte, format Format) (Snapshot, error) {
	var snap Snapshot
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &snap); err != nil {
			return Snapshot{}, errdef.Wrap(errdef.CodeParse, err, "decode workspace yaml")
		}
	case FormatJSON, "":
		if len(bytes.TrimSpace(data)) > 0 {
			if err := json.Unmarshal(data, &snap); err != nil {
				return Snapshot{}, errdef.Wrap(errdef.CodeParse, err, "decode workspace json")
			}
		}
	default:
		return Snapshot{}, errdef.New(errdef.CodeParse, "unsupported workspace format %q", format)
	}
	if snap.Nodes == nil {
		snap.Nodes = map[string]*model.TreeNode{}
	}
	return snap, nil
}

func Encode(snap Snapshot, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return nil, errdef.Wrap(errdef.CodeParse, err, "encode workspace yaml")
		}
		if err := enc.Close(); err != nil {
			return nil, errdef.Wrap(errdef.CodeParse, err, "encode workspace yaml")
		}
		return buf.Bytes(), nil
	case FormatJSON, "":
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return nil, errdef.Wrap(errdef.CodeParse, err, "encode workspace json")
		}
		return append(data, '\n'), nil
	default:
		return nil, errdef.New(errdef.CodeParse, "unsupported workspace format %q", format)
	}
}

// Load reads a workspace file. A missing file yields an empty workspace.
func Load(path string) (*Workspace, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeFilesystem, err, "read workspace %s", path)
	}
	snap, err := Decode(data, FormatFor(path))
	if err != nil {
		return nil, err
	}
	return FromSnapshot(snap)
}

// Save writes the workspace to path in the format its extension selects.
func Save(path string, ws *Workspace) error {
	data, err := Encode(ws.Snapshot(), FormatFor(path))
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errdef.Wrap(errdef.CodeFilesystem, err, "create workspace dir")
		}
	}
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return errdef.Wrap(errdef.CodeFilesystem, err, "write workspace %s", path)
	}
	return nil
}

func writeFileAtomic(path string, data []byte, perm fs.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".awsm-workspace-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return errors.Join(err, tmp.Close())
	}
	if err := tmp.Chmod(perm); err != nil {
		return errors.Join(err, tmp.Close())
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// validate checks that the arena is closed: every referenced id exists and
// each child points back at its parent.
func validate(snap Snapshot) error {
	for _, id := range snap.RootIDs {
		if _, ok := snap.Nodes[id]; !ok {
			return fmt.Errorf("root %q not found", id)
		}
	}
	for id, node := range snap.Nodes {
		if node == nil {
			return fmt.Errorf("node %q is empty", id)
		}
		if node.ID != id {
			return fmt.Errorf("node key %q holds id %q", id, node.ID)
		}
		for _, child := range node.Children {
			c, ok := snap.Nodes[child]
			if !ok {
				return fmt.Errorf("node %q references missing child %q", id, child)
			}
			if c.ParentID != id {
				return fmt.Errorf("child %q of %q has parent %q", child, id, c.ParentID)
			}
		}
	}
	return nil
}
