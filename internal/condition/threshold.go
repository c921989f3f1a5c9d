package condition

import "fmt"

// ThresholdKind discriminates the unit family of a threshold. A percent
// threshold never compares against a byte-typed sample; mixing families is a
// configuration error caught at validation time, never a runtime coercion.
type ThresholdKind string

const (
	KindPercent ThresholdKind = "Percent"
	KindBytes   ThresholdKind = "Byte"
	KindRate    ThresholdKind = "Rate"
)

// ByteUnit is a byte-scale unit (1024-based).
type ByteUnit string

const (
	KB ByteUnit = "KB"
	MB ByteUnit = "MB"
	GB ByteUnit = "GB"
	TB ByteUnit = "TB"
)

// RateUnit is a transfer-rate unit in bytes per second (1024-based).
type RateUnit string

const (
	KiBps RateUnit = "KiBps"
	MiBps RateUnit = "MiBps"
	GiBps RateUnit = "GiBps"
	TiBps RateUnit = "TiBps"
)

// Candidate lists as presented in the raw document.
const (
	ByteUnitOptions = "KB / MB / GB / TB"
	RateUnitOptions = "KiBps / MiBps / GiBps / TiBps"
)

// Threshold is either a bare percent or a (magnitude, unit) pair.
type Threshold struct {
	Kind      ThresholdKind
	Magnitude float64
	ByteUnit  ByteUnit
	RateUnit  RateUnit
}

// Percent builds a percent threshold.
func Percent(v float64) Threshold {
	return Threshold{Kind: KindPercent, Magnitude: v}
}

// Bytes builds a byte-scale threshold.
func Bytes(magnitude float64, unit ByteUnit) Threshold {
	return Threshold{Kind: KindBytes, Magnitude: magnitude, ByteUnit: unit}
}

// Rate builds a rate-scale threshold.
func Rate(magnitude float64, unit RateUnit) Threshold {
	return Threshold{Kind: KindRate, Magnitude: magnitude, RateUnit: unit}
}

func byteMultiplier(u ByteUnit) float64 {
	switch u {
	case KB:
		return 1 << 10
	case MB:
		return 1 << 20
	case GB:
		return 1 << 30
	case TB:
		return 1 << 40
	}
	return 0
}

func rateMultiplier(u RateUnit) float64 {
	switch u {
	case KiBps:
		return 1 << 10
	case MiBps:
		return 1 << 20
	case GiBps:
		return 1 << 30
	case TiBps:
		return 1 << 40
	}
	return 0
}

// Normalized converts the threshold to its comparison base: percent values
// stay as-is, byte units convert to bytes, rate units to bytes per second.
func (t Threshold) Normalized() float64 {
	switch t.Kind {
	case KindPercent:
		return t.Magnitude
	case KindBytes:
		return t.Magnitude * byteMultiplier(t.ByteUnit)
	case KindRate:
		return t.Magnitude * rateMultiplier(t.RateUnit)
	}
	return 0
}

func (t Threshold) validate() error {
	if t.Magnitude < 0 {
		return fmt.Errorf("threshold magnitude %g is negative", t.Magnitude)
	}
	switch t.Kind {
	case KindPercent:
	case KindBytes:
		if byteMultiplier(t.ByteUnit) == 0 {
			return fmt.Errorf("byte unit %q is not one of %q", t.ByteUnit, ByteUnitOptions)
		}
	case KindRate:
		if rateMultiplier(t.RateUnit) == 0 {
			return fmt.Errorf("rate unit %q is not one of %q", t.RateUnit, RateUnitOptions)
		}
	default:
		return fmt.Errorf("unknown threshold kind %q", t.Kind)
	}
	return nil
}

func (t Threshold) String() string {
	switch t.Kind {
	case KindPercent:
		return fmt.Sprintf("%g%%", t.Magnitude)
	case KindBytes:
		return fmt.Sprintf("%g %s", t.Magnitude, t.ByteUnit)
	case KindRate:
		return fmt.Sprintf("%g %s", t.Magnitude, t.RateUnit)
	}
	return "invalid"
}
