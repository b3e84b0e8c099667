package mosaic

// ReductionMode is the tagged variant of spec.md §4.5's accumulator: one
// blending mode plus nine per-pixel reduction modes. Polymorphism here is
// expressed as a tag with a switch in the accumulator rather than dynamic
// dispatch, per spec.md §9.
type ReductionMode int

const (
	ModeBlend ReductionMode = iota
	ModeFirst
	ModeLast
	ModeMin
	ModeMax
	ModeMean
	ModeStddev
	ModeMedian
	ModeNMAD
	ModeCount
)

func (m ReductionMode) String() string {
	switch m {
	case ModeBlend:
		return "blend"
	case ModeFirst:
		return "first"
	case ModeLast:
		return "last"
	case ModeMin:
		return "min"
	case ModeMax:
		return "max"
	case ModeMean:
		return "mean"
	case ModeStddev:
		return "stddev"
	case ModeMedian:
		return "median"
	case ModeNMAD:
		return "nmad"
	case ModeCount:
		return "count"
	default:
		return "unknown"
	}
}

// UsesWeight reports whether this mode invokes the weight builder.
// "Reduction modes never invoke the weight builder. Blend mode always
// does." (spec.md §4.5)
func (m ReductionMode) UsesWeight() bool {
	return m == ModeBlend
}

// HasIndex reports whether this mode can populate save_index_map.
func (m ReductionMode) HasIndex() bool {
	switch m {
	case ModeFirst, ModeLast, ModeMin, ModeMax:
		return true
	default:
		return false
	}
}

// needsSamples reports whether this mode must retain every sample value
// seen at a pixel (as opposed to folding into running statistics).
func (m ReductionMode) needsSamples() bool {
	return m == ModeMedian || m == ModeNMAD
}
