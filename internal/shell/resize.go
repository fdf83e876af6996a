package shell

import (
	"github.com/companin/widget/internal/frame"
	"github.com/companin/widget/internal/model"
)

const (
	defaultButtonSize   = 56
	defaultWidgetWidth  = 400
	defaultWidgetHeight = 600
)

// ButtonPixelSize maps a configured button size to its footprint.
func ButtonPixelSize(size string) int {
	switch size {
	case "sm":
		return 48
	case "md":
		return 56
	case "lg":
		return 100
	default:
		return defaultButtonSize
	}
}

// ResizeFor returns the resize request sent to the host when the widget
// collapses or expands.
func ResizeFor(collapsed bool, cfg model.WidgetConfig) frame.Message {
	if collapsed {
		size := ButtonPixelSize(cfg.ButtonSize)
		return frame.NewResize(frame.Px(size), frame.Px(size))
	}

	w, h := cfg.WidgetWidth, cfg.WidgetHeight
	if w <= 0 {
		w = defaultWidgetWidth
	}
	if h <= 0 {
		h = defaultWidgetHeight
	}
	return frame.NewResize(frame.Px(w), frame.Px(h))
}

// DocsResizeFor returns the docs dialog resize request: full viewport when
// open, hidden when closed.
func DocsResizeFor(open bool) frame.Message {
	if open {
		return frame.NewResize(
			frame.Dimension{Viewport: frame.ViewportWidth},
			frame.Dimension{Viewport: frame.ViewportHeight},
		)
	}
	return frame.NewHideResize()
}
