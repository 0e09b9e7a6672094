// Package identity reads the per-pane identity files that map a tmux pane to
// the agent's mail name.
package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/simon/flywatch/internal/tmux"
)

// Ext is the identity file extension.
const Ext = ".identity"

// ErrNoIdentity is returned when a pane has no identity file.
var ErrNoIdentity = errors.New("no identity file")

// Identity is the subset of the identity file the watchdog cares about.
type Identity struct {
	AgentMailName string `json:"agent_mail_name"`
	Pane          string `json:"pane,omitempty"`
}

// SafePane turns a pane target such as "flywheel:0.1" into a filename stem
// ("flywheel_0_1").
func SafePane(target string) string {
	return strings.Map(func(r rune) rune {
		if r == ':' || r == '.' || r == '/' || unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, target)
}

// Path returns the identity file path for a safe pane name.
func Path(dir, safe string) string {
	return filepath.Join(dir, safe+Ext)
}

// Parse decodes identity JSON. Surrounding whitespace in the agent name is
// dropped.
func Parse(data []byte) (Identity, error) {
	var id Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return Identity{}, fmt.Errorf("parse identity: %w", err)
	}
	id.AgentMailName = strings.TrimSpace(id.AgentMailName)
	return id, nil
}

// Load reads the identity file for safe from dir through ex.
func Load(ex tmux.Executor, dir, safe string) (Identity, error) {
	path := Path(dir, safe)
	data, err := ex.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Identity{}, ErrNoIdentity
		}
		return Identity{}, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(data)
}
