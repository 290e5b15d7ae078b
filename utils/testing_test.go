package utils

import (
	"errors"
	"fmt"
	"testing"
)

func TestTesting_AssertEqualArrays(t *testing.T) {
	AssertEqualArrays(t, []byte("abc"), []byte{'a', 'b', 'c'})
}

func TestTesting_AssertErrorIs_Wrapped(t *testing.T) {
	base := errors.New("base")
	AssertErrorIs(t, fmt.Errorf("outer: %w", base), base)
}

func TestTesting_AssertDeepEqual(t *testing.T) {
	type pair struct {
		A int
		B []string
	}
	AssertDeepEqual(t, pair{1, []string{"x"}}, pair{1, []string{"x"}})
}
