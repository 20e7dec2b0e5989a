package match

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownDistance indicates a distance metric name is not registered.
var ErrUnknownDistance = errors.New("unknown distance function")

// DistanceFunc computes the distance between a reference and a read slice of
// equal length.
type DistanceFunc func(ref, read string) (int, error)

// LengthMismatchError is returned when a distance metric receives operands
// of different lengths.
type LengthMismatchError struct {
	RefLen  int
	ReadLen int
}

// Error returns the error message.
func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("length mismatch: reference has %d bases, read slice has %d", e.RefLen, e.ReadLen)
}

// DefaultDistance is the metric used when a step does not name one.
const DefaultDistance = "hamming"

var registry = map[string]DistanceFunc{
	"hamming":   Hamming,
	"hammingTC": Blind('T', 'C'),
	"hammingAG": Blind('A', 'G'),
}

// Hamming counts the positions at which ref and read differ.
func Hamming(ref, read string) (int, error) {
	if len(ref) != len(read) {
		return 0, &LengthMismatchError{RefLen: len(ref), ReadLen: len(read)}
	}
	d := 0
	for i := 0; i < len(ref); i++ {
		if ref[i] != read[i] {
			d++
		}
	}
	return d, nil
}

// Blind returns an asymmetric Hamming metric in which a reference base
// from observed as to in the read costs nothing. The reverse substitution
// is still a mismatch.
func Blind(from, to byte) DistanceFunc {
	return func(ref, read string) (int, error) {
		if len(ref) != len(read) {
			return 0, &LengthMismatchError{RefLen: len(ref), ReadLen: len(read)}
		}
		d := 0
		for i := 0; i < len(ref); i++ {
			a, b := ref[i], read[i]
			if a != b && !(a == from && b == to) {
				d++
			}
		}
		return d, nil
	}
}

// Lookup returns the registered metric with the given name.
func Lookup(name string) (DistanceFunc, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDistance, name)
	}
	return fn, nil
}

// Names returns the registered metric names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
