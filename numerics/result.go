// Package numerics scans batched device operands for NaN, Inf, zero and
// denormal values and maps the findings to a pass, warn or fail decision.
package numerics

import (
	"errors"
	"fmt"
	"strings"
)

// ScanResult is the classified record produced by a scan. Flags are only
// ever set, so scanning elements in any order gives the same result.
type ScanResult struct {
	HasNaN      bool
	HasInf      bool
	HasZero     bool
	HasDenormal bool
}

// Or merges two results
func (r ScanResult) Or(o ScanResult) ScanResult {
	return ScanResult{
		HasNaN:      r.HasNaN || o.HasNaN,
		HasInf:      r.HasInf || o.HasInf,
		HasZero:     r.HasZero || o.HasZero,
		HasDenormal: r.HasDenormal || o.HasDenormal,
	}
}

// Clean reports whether no flag is set
func (r ScanResult) Clean() bool {
	return r == ScanResult{}
}

// Abnormal reports whether a value that fails a hard check was found. Exact
// zeros are informational only.
func (r ScanResult) Abnormal() bool {
	return r.HasNaN || r.HasInf || r.HasDenormal
}

func (r ScanResult) String() string {
	if r.Clean() {
		return "clean"
	}
	var parts []string
	if r.HasNaN {
		parts = append(parts, "nan")
	}
	if r.HasInf {
		parts = append(parts, "inf")
	}
	if r.HasZero {
		parts = append(parts, "zero")
	}
	if r.HasDenormal {
		parts = append(parts, "denormal")
	}
	return strings.Join(parts, "|")
}

// scratch layout shared with the kernels: one int_t per flag
const (
	flagNaN = iota
	flagInf
	flagZero
	flagDenormal
	numFlags
)

func resultFromFlags(flags [numFlags]int64) ScanResult {
	return ScanResult{
		HasNaN:      flags[flagNaN] != 0,
		HasInf:      flags[flagInf] != 0,
		HasZero:     flags[flagZero] != 0,
		HasDenormal: flags[flagDenormal] != 0,
	}
}

// Mode is a bitmask selecting what a scan reports
type Mode uint

const (
	Info Mode = 1 << iota // Log every scan result
	Warn                  // Log abnormal results
	Fail                  // Return an error on abnormal results

	NoCheck Mode = 0
)

var modeNames = []struct {
	mode Mode
	name string
}{
	{Info, "info"},
	{Warn, "warn"},
	{Fail, "fail"},
}

func (m Mode) String() string {
	if m == NoCheck {
		return "none"
	}
	var parts []string
	for _, mn := range modeNames {
		if m&mn.mode != 0 {
			parts = append(parts, mn.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseMode parses a mode written as names joined by '|' or ',', e.g.
// "warn|fail". "none" and the empty string give NoCheck.
func ParseMode(s string) (Mode, error) {
	var m Mode
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == '|' || r == ',' || r == ' '
	})
	for _, f := range fields {
		if f == "none" {
			continue
		}
		found := false
		for _, mn := range modeNames {
			if f == mn.name {
				m |= mn.mode
				found = true
				break
			}
		}
		if !found {
			return NoCheck, fmt.Errorf("numerics: unknown check mode %q", f)
		}
	}
	return m, nil
}

// Phase frames a scan as validating inputs before, or outputs after, the
// compute kernel
type Phase int

const (
	Input Phase = iota
	Output
)

func (p Phase) String() string {
	if p == Output {
		return "output"
	}
	return "input"
}

// Transpose selects how a matrix operand is read
type Transpose int

const (
	NoTrans Transpose = iota
	Trans
	ConjTrans
)

func (t Transpose) String() string {
	switch t {
	case Trans:
		return "T"
	case ConjTrans:
		return "C"
	default:
		return "N"
	}
}

var (
	// ErrAbnormalValue is matched by every AbnormalValueError
	ErrAbnormalValue = errors.New("numerics: abnormal value detected")
	// ErrInvalidOperand reports an operand whose shape does not fit its storage
	ErrInvalidOperand = errors.New("numerics: invalid operand")
)

// AbnormalValueError is returned by a scan in Fail mode that found a NaN,
// Inf or denormal value
type AbnormalValueError struct {
	Operand string
	Phase   Phase
	Result  ScanResult
}

func (e *AbnormalValueError) Error() string {
	return fmt.Sprintf("numerics: abnormal %s value in %s: %s", e.Phase, e.Operand, e.Result)
}

func (e *AbnormalValueError) Unwrap() error {
	return ErrAbnormalValue
}
