// Package camera translates between world coordinates and screen
// coordinates for client renderers.
package camera

const (
	// MinZoom and MaxZoom bound the zoom factor; mutators clamp to them.
	MinZoom = 0.1
	MaxZoom = 3.0
)

// Camera is a world-space viewport origin plus a zoom factor. Screen
// positions map to world positions as world = screen/zoom + origin.
type Camera struct {
	X, Y float64
	Zoom float64
}

// New creates a camera at the world origin with 1:1 zoom.
func New() *Camera {
	return &Camera{Zoom: 1.0}
}

// Pan shifts the viewport origin by a world-space delta.
func (c *Camera) Pan(dx, dy float64) {
	c.X += dx
	c.Y += dy
}

// SetZoom sets the zoom factor, clamped to [MinZoom, MaxZoom].
func (c *Camera) SetZoom(zoom float64) {
	if zoom < MinZoom {
		zoom = MinZoom
	}
	if zoom > MaxZoom {
		zoom = MaxZoom
	}
	c.Zoom = zoom
}

// ZoomBy scales the current zoom by factor, clamped to [MinZoom, MaxZoom].
func (c *Camera) ZoomBy(factor float64) {
	c.SetZoom(c.Zoom * factor)
}

// ScreenToWorld converts screen (sx, sy) to world coordinates.
func (c *Camera) ScreenToWorld(sx, sy float64) (float64, float64) {
	return sx/c.Zoom + c.X, sy/c.Zoom + c.Y
}

// WorldToScreen converts world (wx, wy) to screen coordinates.
func (c *Camera) WorldToScreen(wx, wy float64) (float64, float64) {
	return (wx - c.X) * c.Zoom, (wy - c.Y) * c.Zoom
}
