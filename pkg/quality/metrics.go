package quality

import (
	"image"
	"math"

	"gocv.io/x/gocv"
)

// degenerate returns the sentinel metrics for a region with no pixels inside the frame.
func degenerate(confidence float64, bbox Region) Metrics {
	return Metrics{
		FaceConfidence: confidence,
		FaceAreaRatio:  0,
		DX:             1.0,
		DY:             1.0,
		Brightness:     0,
		Blur:           0,
		BBox:           bbox,
	}
}

// Clamp fits r into a frameW x frameH frame. Width and height are forced to at
// least one pixel and the region only ever shrinks. The boolean reports whether
// the clamped region overlaps the frame by at least one pixel.
func Clamp(frameW, frameH int, r Region) (Region, bool) {
	w := max(1, r.W)
	h := max(1, r.H)

	x0 := min(max(0, r.X), max(0, frameW))
	y0 := min(max(0, r.Y), max(0, frameH))
	x1 := min(frameW, r.X+w)
	y1 := min(frameH, r.Y+h)

	clamped := Region{
		X: x0,
		Y: y0,
		W: max(1, min(w, x1-x0)),
		H: max(1, min(h, y1-y0)),
	}

	ok := frameW > 0 && frameH > 0 && x1-x0 > 0 && y1-y0 > 0
	return clamped, ok
}

// ExtractGeometry computes the frame-free metrics (area ratio, center offset,
// clamped bbox). Brightness and blur are left at zero.
func ExtractGeometry(frameW, frameH int, r Region, confidence float64) (Metrics, bool) {
	bbox, ok := Clamp(frameW, frameH, r)
	if !ok {
		return degenerate(confidence, bbox), false
	}

	fw := float64(frameW)
	fh := float64(frameH)
	cx := float64(bbox.X) + float64(bbox.W)/2
	cy := float64(bbox.Y) + float64(bbox.H)/2

	return Metrics{
		FaceConfidence: confidence,
		FaceAreaRatio:  float64(bbox.Area()) / (fw * fh),
		DX:             math.Abs(cx-fw/2) / fw,
		DY:             math.Abs(cy-fh/2) / fh,
		BBox:           bbox,
	}, true
}

// Extract computes the full metrics for region r of frame. The frame is read
// through a region view and never modified.
func Extract(frame gocv.Mat, r Region, confidence float64) Metrics {
	m, ok := ExtractGeometry(frame.Cols(), frame.Rows(), r, confidence)
	if !ok || frame.Empty() {
		return m
	}

	roi := frame.Region(image.Rect(m.BBox.X, m.BBox.Y, m.BBox.X+m.BBox.W, m.BBox.Y+m.BBox.H))
	defer roi.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	toGray(roi, &gray)

	m.Brightness = gray.Mean().Val1
	m.Blur = laplacianVariance(gray)
	return m
}

func toGray(src gocv.Mat, dst *gocv.Mat) {
	switch src.Channels() {
	case 1:
		src.CopyTo(dst)
	case 4:
		gocv.CvtColor(src, dst, gocv.ColorBGRAToGray)
	default:
		gocv.CvtColor(src, dst, gocv.ColorBGRToGray)
	}
}

// laplacianVariance is the focus score: variance of the 1x1-aperture Laplacian.
func laplacianVariance(gray gocv.Mat) float64 {
	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(gray, &lap, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)

	mean := gocv.NewMat()
	defer mean.Close()
	stddev := gocv.NewMat()
	defer stddev.Close()
	gocv.MeanStdDev(lap, &mean, &stddev)

	sd := stddev.GetDoubleAt(0, 0)
	return sd * sd
}
