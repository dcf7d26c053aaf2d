package quality

// Evaluate applies the rule cascade to m. The first violated rule wins:
// confidence gates everything, then framing, then lighting, then focus.
func Evaluate(m Metrics, t Thresholds) (Decision, Reason) {
	if m.FaceConfidence < t.MinConf {
		return Fail, ReasonLowConfidence
	}

	if m.FaceAreaRatio < t.MinArea {
		return NeedsFixing, ReasonTooFar
	}
	if m.FaceAreaRatio > t.MaxArea {
		return NeedsFixing, ReasonTooClose
	}

	if m.DX > t.MaxDX || m.DY > t.MaxDY {
		return NeedsFixing, ReasonOffCenter
	}

	if m.Brightness < t.MinLight {
		return NeedsFixing, ReasonLowLight
	}
	if m.Brightness > t.MaxLight {
		return NeedsFixing, ReasonTooBright
	}

	if m.Blur < t.MinBlur {
		return NeedsFixing, ReasonBlurry
	}

	return Pass, ReasonNone
}

// NoFace is the outcome for a tick without any detection.
func NoFace() (Decision, Reason) {
	return Fail, ReasonNoFace
}
