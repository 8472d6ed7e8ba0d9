package popup

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"sharecrop/internal/models"
)

const (
	DefaultWidth  = 380
	DefaultHeight = 400

	edgeMargin   = 10
	markerOffset = 20
	bottomBand   = 50

	// tileSize matches the 512px vector tiles used by the map widget.
	tileSize = 512
)

type Anchor string

const (
	AnchorAboveCenter Anchor = "above-center"
	AnchorBelowCenter Anchor = "below-center"
)

// Position is where the popup is drawn, in screen pixels.
type Position struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Anchor Anchor  `json:"anchor"`
}

// ScreenPoint is a pixel offset from the top-left of the viewport.
type ScreenPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ComputePosition places a popup for a marker at point so that it stays on
// screen. Zero popup dimensions fall back to the defaults.
func ComputePosition(point ScreenPoint, viewportW, viewportH, popupW, popupH float64) Position {
	if popupW <= 0 {
		popupW = DefaultWidth
	}
	if popupH <= 0 {
		popupH = DefaultHeight
	}

	pos := Position{Left: point.X, Top: point.Y, Anchor: AnchorAboveCenter}

	if point.X-popupW/2 < 0 {
		pos.Left = popupW/2 + edgeMargin
	} else if point.X+popupW/2 > viewportW {
		pos.Left = viewportW - popupW/2 - edgeMargin
	}

	if point.Y-popupH < 0 {
		pos.Top = point.Y + markerOffset
		pos.Anchor = AnchorBelowCenter
	} else if point.Y > viewportH-bottomBand {
		pos.Top = point.Y - markerOffset
	}
	return pos
}

// Viewport is the visible map area.
type Viewport struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Zoom      float64 `json:"zoom"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
}

// Project converts a [lng, lat] point to screen pixels using Web Mercator.
func (v Viewport) Project(p orb.Point) ScreenPoint {
	worldSize := tileSize * math.Pow(2, v.Zoom)
	px, py := world(p, worldSize)
	cx, cy := world(orb.Point{v.Longitude, v.Latitude}, worldSize)
	return ScreenPoint{
		X: px - cx + v.Width/2,
		Y: py - cy + v.Height/2,
	}
}

func world(p orb.Point, worldSize float64) (float64, float64) {
	m := project.WGS84.ToMercator(p)
	circumference := 2 * math.Pi * orb.EarthRadius
	x := (m[0]/circumference + 0.5) * worldSize
	y := (0.5 - m[1]/circumference) * worldSize
	return x, y
}

// Placement returns the popup position for the selected listing, or nil
// when nothing is selected or the listing cannot be placed.
func Placement(listing *models.Listing, vp Viewport, popupW, popupH float64) *Position {
	if listing == nil || !listing.Renderable() {
		return nil
	}
	pos := ComputePosition(vp.Project(*listing.Coordinates), vp.Width, vp.Height, popupW, popupH)
	return &pos
}
