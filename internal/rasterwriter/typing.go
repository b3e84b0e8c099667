// Package rasterwriter implements spec.md §4.7's output typing and
// declares the "write a georeferenced tiled raster" external collaborator
// of spec.md §6 — the writer itself assembles the on-disk tiled file
// format, explicitly out of scope for this module (spec.md §1).
package rasterwriter

import (
	"math"

	"github.com/pspoerri/demosaic/internal/demoerr"
)

// OutputType is the --ot CLI enum of spec.md §6.
type OutputType int

const (
	TypeByte OutputType = iota
	TypeUInt16
	TypeInt16
	TypeUInt32
	TypeInt32
	TypeFloat32
)

// ParseOutputType parses a --ot value.
func ParseOutputType(s string) (OutputType, error) {
	switch s {
	case "Byte":
		return TypeByte, nil
	case "UInt16":
		return TypeUInt16, nil
	case "Int16":
		return TypeInt16, nil
	case "UInt32":
		return TypeUInt32, nil
	case "Int32":
		return TypeInt32, nil
	case "Float32":
		return TypeFloat32, nil
	default:
		return 0, demoerr.Config("unknown output type %q (supported: Byte, UInt16, Int16, UInt32, Int32, Float32)", s)
	}
}

func (t OutputType) typeRange() (min, max float64) {
	switch t {
	case TypeByte:
		return 0, math.MaxUint8
	case TypeUInt16:
		return 0, math.MaxUint16
	case TypeInt16:
		return math.MinInt16, math.MaxInt16
	case TypeUInt32:
		return 0, math.MaxUint32
	case TypeInt32:
		return math.MinInt32, math.MaxInt32
	default:
		return math.Inf(-1), math.Inf(1)
	}
}

// ConvertValue applies spec.md §4.7: fixed-width integer types round
// half-to-even then clamp to the type's range; Float32 passes through
// unchanged. No-data is the caller's job (substitute before calling, or
// check IsNoData and skip the conversion).
func (t OutputType) ConvertValue(v float64) float64 {
	if t == TypeFloat32 {
		return float64(float32(v))
	}
	min, max := t.typeRange()
	v = roundHalfToEven(v)
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// roundHalfToEven is Go's math.RoundToEven, named here to read naturally
// against spec.md §4.7's wording.
func roundHalfToEven(v float64) float64 {
	return math.RoundToEven(v)
}
