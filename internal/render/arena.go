package render

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// ErrNoPluginManager is returned by an Arena created without a manager.
var ErrNoPluginManager = errors.New("no plugin manager")

// Arena owns the plugins created through it and deletes them all in one
// pass. It replaces scattered per-plugin lifetime tracking: one arena lives
// for the render (materials, textures), another for a single frame (meshes).
type Arena struct {
	plugins PluginManager
	owned   []Plugin
}

// NewArena creates an empty arena backed by pm.
func NewArena(pm PluginManager) *Arena {
	return &Arena{plugins: pm}
}

// New creates a plugin and takes ownership of it.
func (a *Arena) New(pluginType, name string) (Plugin, error) {
	if a.plugins == nil {
		return nil, ErrNoPluginManager
	}
	p, err := a.plugins.NewPlugin(pluginType, name)
	if err != nil {
		return nil, fmt.Errorf("creating %s %q: %w", pluginType, name, err)
	}
	a.owned = append(a.owned, p)
	return p, nil
}

// Len returns the number of owned plugins.
func (a *Arena) Len() int {
	return len(a.owned)
}

// Plugins returns the owned plugins in creation order.
func (a *Arena) Plugins() []Plugin {
	return a.owned
}

// Release deletes every owned plugin, newest first, and empties the arena.
// All plugins are attempted even when some deletions fail.
func (a *Arena) Release() error {
	return a.ReleaseFrom(0)
}

// ReleaseFrom deletes the plugins created after the first n, newest first,
// and keeps the rest. Pass the value of Len taken before a batch of New
// calls to undo that batch.
func (a *Arena) ReleaseFrom(n int) error {
	if n < 0 {
		n = 0
	}
	var err error
	for i := len(a.owned) - 1; i >= n; i-- {
		p := a.owned[i]
		if derr := a.plugins.DeletePlugin(p); derr != nil {
			err = multierr.Append(err, fmt.Errorf("deleting %q: %w", p.Name(), derr))
		}
		a.owned[i] = nil
	}
	if n < len(a.owned) {
		a.owned = a.owned[:n]
	}
	return err
}
