package proctor

import (
	"math"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// Thresholds are empirically tuned values carried over from the browser
// implementation. They are configuration, not law.
type Thresholds struct {
	DarkBrightness    float64
	BrightBrightness  float64
	MidLowBrightness  float64
	MidHighBrightness float64
	SkinRatio         float64
	LowSkinRatio      float64
	NoiseGain         float64
}

// DefaultThresholds returns the legacy tuning.
func DefaultThresholds() Thresholds {
	return Thresholds{
		DarkBrightness:    15,
		BrightBrightness:  245,
		MidLowBrightness:  30,
		MidHighBrightness: 200,
		SkinRatio:         0.08,
		LowSkinRatio:      0.05,
		NoiseGain:         1.5,
	}
}

// The heuristic samples a 120x90 canvas; larger frames are mapped onto it.
const (
	canvasWidth  = 120
	canvasHeight = 90
	regionSize   = 40
)

// FrameStats are the center-region measurements the heuristic decides on.
type FrameStats struct {
	Brightness float64
	SkinRatio  float64
	Samples    int
}

// MeasureFrame samples every second pixel of the 40x40 center region of the
// downsampled frame.
func MeasureFrame(f *Frame) FrameStats {
	var stats FrameStats
	if f == nil || f.Width <= 0 || f.Height <= 0 || len(f.Pix) < f.Width*f.Height*4 {
		return stats
	}

	cx, cy := canvasWidth/2, canvasHeight/2
	var total float64
	skin := 0
	for y := cy - regionSize/2; y < cy+regionSize/2; y += 2 {
		for x := cx - regionSize/2; x < cx+regionSize/2; x += 2 {
			px := x * f.Width / canvasWidth
			py := y * f.Height / canvasHeight
			i := (py*f.Width + px) * 4
			r, g, b := int(f.Pix[i]), int(f.Pix[i+1]), int(f.Pix[i+2])

			total += float64(r+g+b) / 3
			stats.Samples++
			if skinLike(r, g, b) {
				skin++
			}
		}
	}
	if stats.Samples > 0 {
		stats.Brightness = total / float64(stats.Samples)
		stats.SkinRatio = float64(skin) / float64(stats.Samples)
	}
	return stats
}

func skinLike(r, g, b int) bool {
	return r > 50 && g > 30 && b > 15 &&
		r < 255 && g < 240 && b < 230 &&
		r > b &&
		absInt(r-g) < 100
}

// AnalyzeFrame applies the fallback face-presence policy. It can only tell
// zero faces from at least one; multiple faces need a native detector.
func AnalyzeFrame(f *Frame, th Thresholds) FaceReading {
	return Classify(MeasureFrame(f), th)
}

// Classify maps frame statistics to a reading, rules in priority order.
func Classify(s FrameStats, th Thresholds) FaceReading {
	noFace := FaceReading{Count: 0, Status: model.FaceStatusNoFace}
	ok := FaceReading{Count: 1, Status: model.FaceStatusOK}

	switch {
	case s.Brightness < th.DarkBrightness:
		return noFace
	case s.Brightness > th.BrightBrightness:
		return noFace
	case s.Brightness >= th.MidLowBrightness && s.Brightness <= th.MidHighBrightness && s.SkinRatio < th.SkinRatio:
		return noFace
	case s.SkinRatio > th.SkinRatio || (s.Brightness > th.MidLowBrightness && s.Brightness < th.MidHighBrightness):
		return ok
	case s.Brightness < th.MidLowBrightness && s.SkinRatio < th.LowSkinRatio:
		return noFace
	default:
		return ok
	}
}

// NoiseLevel averages the frequency bins and scales them to 0-100.
func NoiseLevel(bins []byte, gain float64) int {
	if len(bins) == 0 {
		return 0
	}
	sum := 0
	for _, b := range bins {
		sum += int(b)
	}
	avg := float64(sum) / float64(len(bins))
	level := int(math.Round(avg * gain))
	if level > 100 {
		return 100
	}
	return level
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
