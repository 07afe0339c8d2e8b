package safe

import (
	"fmt"
	"math"
)

// SafeAdd returns a+b. Panics on int64 overflow.
func SafeAdd(a, b int64) int64 {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		panic(fmt.Sprintf("INT64_OVERFLOW: %d + %d", a, b))
	}
	return a + b
}

// SafeSub returns a-b. Panics on int64 overflow.
func SafeSub(a, b int64) int64 {
	if (b < 0 && a > math.MaxInt64+b) || (b > 0 && a < math.MinInt64+b) {
		panic(fmt.Sprintf("INT64_OVERFLOW: %d - %d", a, b))
	}
	return a - b
}

// SafeMul returns a*b. Panics on int64 overflow.
func SafeMul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	c := a * b
	if c/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		panic(fmt.Sprintf("INT64_OVERFLOW: %d * %d", a, b))
	}
	return c
}

// SafeDiv returns a/b. Panics on division by zero.
func SafeDiv(a, b int64) int64 {
	if b == 0 {
		panic(fmt.Sprintf("DIVISION_BY_ZERO: %d / 0", a))
	}
	if a == math.MinInt64 && b == -1 {
		panic(fmt.Sprintf("INT64_OVERFLOW: %d / %d", a, b))
	}
	return a / b
}
