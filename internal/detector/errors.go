package detector

import (
	"errors"
	"fmt"
)

// Kind classifies why a numeric read failed.
type Kind int

const (
	// KindNotFound means no attempt produced any digits.
	KindNotFound Kind = iota
	// KindImplausible means digits were read but every value was below the floor.
	KindImplausible
	// KindTimeout means the wall-clock budget ran out before a valid read.
	KindTimeout
	// KindCapture means the screen could not be grabbed.
	KindCapture
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindImplausible:
		return "implausible"
	case KindTimeout:
		return "timeout"
	case KindCapture:
		return "capture"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	ErrPriceDetection   = errors.New("price detection failed")
	ErrBalanceDetection = errors.New("balance detection failed")
)

// DetectionError is returned when a value could not be read after all attempts.
type DetectionError struct {
	Kind     Kind
	Value    string
	Attempts int
	// Last is the last raw OCR text, if any.
	Last string
	Err  error
}

func (e *DetectionError) Error() string {
	msg := fmt.Sprintf("detect %s: %s after %d attempts", e.Value, e.Kind, e.Attempts)
	if e.Last != "" {
		msg += fmt.Sprintf(" (last read %q)", e.Last)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DetectionError) Unwrap() error { return e.Err }

// Is matches the price and balance sentinels by value name.
func (e *DetectionError) Is(target error) bool {
	switch target {
	case ErrPriceDetection:
		return e.Value != valueBalance
	case ErrBalanceDetection:
		return e.Value == valueBalance
	}
	return false
}

// IsKind reports whether err is a DetectionError of kind k.
func IsKind(err error, k Kind) bool {
	var de *DetectionError
	return errors.As(err, &de) && de.Kind == k
}
