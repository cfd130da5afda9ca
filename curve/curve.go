package curve

import (
	"fmt"
	"math"
	"strings"
)

// Kind selects how normalized progress is eased during a transition
type Kind int

const (
	Linear      Kind = iota // p
	Exponential             // p^2, slow start
	Logarithmic             // sqrt(p), fast start
	SCurve                  // 3p^2 - 2p^3, slow at both ends
)

var names = map[Kind]string{
	Linear:      "linear",
	Exponential: "exponential",
	Logarithmic: "logarithmic",
	SCurve:      "s-curve",
}

// Apply maps progress p in [0,1] to eased progress. Out-of-range input is clamped.
func (k Kind) Apply(p float64) float64 {
	if math.IsNaN(p) || p <= 0 {
		return 0
	}
	if p >= 1 {
		return 1
	}
	switch k {
	case Exponential:
		return p * p
	case Logarithmic:
		return math.Sqrt(p)
	case SCurve:
		return 3*p*p - 2*p*p*p
	default:
		return p
	}
}

func (k Kind) String() string {
	if n, ok := names[k]; ok {
		return n
	}
	return fmt.Sprintf("curve(%d)", int(k))
}

// Parse accepts the names produced by String plus a few common spellings
func Parse(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "linear", "lin":
		return Linear, nil
	case "exponential", "exp":
		return Exponential, nil
	case "logarithmic", "log":
		return Logarithmic, nil
	case "s-curve", "scurve", "s", "smoothstep":
		return SCurve, nil
	}
	return Linear, fmt.Errorf("unknown curve %q", s)
}

// All returns every curve in display order
func All() []Kind {
	return []Kind{Linear, Exponential, Logarithmic, SCurve}
}

func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := names[k]; !ok {
		return nil, fmt.Errorf("unknown curve %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
