// Package store persists derived panels. The panel is rebuildable at any
// time, so sinks are simple replace-on-write targets.
package store

import (
	"context"

	"ofactrack/internal/ofac/panel"
)

// Writer persists one full panel, replacing whatever a previous run wrote.
type Writer interface {
	WritePanel(ctx context.Context, p *panel.Panel) error
}
