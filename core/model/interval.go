package model

import "time"

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// IsZero reports whether the window is unset.
func (w Window) IsZero() bool { return w.Start.IsZero() && w.End.IsZero() }

// Valid reports whether Start is strictly before End.
func (w Window) Valid() bool { return w.Start.Before(w.End) }

// Duration returns the window length.
func (w Window) Duration() time.Duration { return w.End.Sub(w.Start) }

// Minutes returns the window length in whole minutes.
func (w Window) Minutes() int { return int(w.End.Sub(w.Start) / time.Minute) }

// Overlaps reports whether the two half-open windows intersect.
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Clip restricts the window to bounds and returns the intersection. The
// second result is false when the windows do not intersect.
func (w Window) Clip(bounds Window) (Window, bool) {
	if !w.Overlaps(bounds) {
		return Window{}, false
	}
	out := w
	if out.Start.Before(bounds.Start) {
		out.Start = bounds.Start
	}
	if out.End.After(bounds.End) {
		out.End = bounds.End
	}
	return out, true
}

// OverlapMinutes returns the length, in minutes, of the intersection with o.
func (w Window) OverlapMinutes(o Window) int {
	clipped, ok := w.Clip(o)
	if !ok {
		return 0
	}
	return clipped.Minutes()
}
