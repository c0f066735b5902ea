package near

import (
	"fmt"
	"math/big"
	"strings"
)

// nearFracDigits is the number of decimal places of one NEAR in yoctoNEAR.
const nearFracDigits = 24

// Amount is a token amount in integer yoctoNEAR. Amounts never pass through
// floats; contract responses are decoded with json.Number and parsed here.
type Amount struct {
	yocto big.Int
}

// NewAmount wraps an integer yoctoNEAR value.
func NewAmount(yocto *big.Int) *Amount {
	a := &Amount{}
	a.yocto.Set(yocto)
	return a
}

// ParseYocto parses a base-10 integer yoctoNEAR string.
func ParseYocto(s string) (*Amount, error) {
	s = strings.TrimSpace(strings.Trim(s, `"`))
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	a := &Amount{}
	if _, ok := a.yocto.SetString(s, 10); !ok {
		return nil, fmt.Errorf("invalid yocto amount %q", s)
	}
	return a, nil
}

// ParseNEAR parses a human NEAR amount ("2.5") into yoctoNEAR.
func ParseNEAR(s string) (*Amount, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
		if strings.IndexByte(frac, '.') >= 0 {
			return nil, fmt.Errorf("invalid NEAR amount %q", s)
		}
	}
	if len(frac) > nearFracDigits {
		return nil, fmt.Errorf("NEAR amount %q has more than %d decimal places", s, nearFracDigits)
	}
	if whole == "" {
		whole = "0"
	}
	return ParseYocto(whole + frac + strings.Repeat("0", nearFracDigits-len(frac)))
}

// FormatNEAR renders the amount as a human NEAR string, trimming trailing
// fractional zeros ("2.5", "0.001", "7").
func (a *Amount) FormatNEAR() string {
	s := a.yocto.String()
	if len(s) <= nearFracDigits {
		s = strings.Repeat("0", nearFracDigits-len(s)+1) + s
	}
	whole := s[:len(s)-nearFracDigits]
	frac := strings.TrimRight(s[len(s)-nearFracDigits:], "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}

// String renders the raw integer yoctoNEAR value.
func (a *Amount) String() string { return a.yocto.String() }

// IsZero reports whether the amount is zero or nil.
func (a *Amount) IsZero() bool { return a == nil || a.yocto.Sign() == 0 }

// Int returns a copy of the underlying yoctoNEAR integer.
func (a *Amount) Int() *big.Int {
	if a == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(&a.yocto)
}
