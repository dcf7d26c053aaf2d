package camera

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var (
	boxColor  = color.RGBA{G: 255}
	textColor = color.RGBA{R: 255, G: 255, B: 255}
)

// Overlay is what the dashboard preview shows on top of a frame.
type Overlay struct {
	// Box is the face in frame coordinates. Empty when no face was found.
	Box      image.Rectangle
	Decision string
	Reason   string
	FPS      float64
}

// DrawOverlay annotates dst in place with the face box, the decision, the
// reason, the fps and a crosshair on the frame center. Captures are saved
// from the raw frame, so only draw on a preview copy.
func DrawOverlay(dst *gocv.Mat, o Overlay) {
	if dst.Empty() {
		return
	}

	if !o.Box.Empty() {
		gocv.Rectangle(dst, o.Box, boxColor, 2)
	}

	gocv.PutText(dst, "Decision: "+o.Decision, image.Pt(10, 30), gocv.FontHersheySimplex, 0.8, textColor, 2)
	if o.Reason != "" {
		gocv.PutText(dst, "Reason: "+o.Reason, image.Pt(10, 60), gocv.FontHersheySimplex, 0.7, textColor, 2)
	}
	gocv.PutText(dst, fmt.Sprintf("FPS: %.1f", o.FPS), image.Pt(10, 90), gocv.FontHersheySimplex, 0.7, textColor, 2)

	cx, cy := dst.Cols()/2, dst.Rows()/2
	gocv.Line(dst, image.Pt(cx-10, cy), image.Pt(cx+10, cy), textColor, 1)
	gocv.Line(dst, image.Pt(cx, cy-10), image.Pt(cx, cy+10), textColor, 1)
}
