// Package quant holds the fixed-point arithmetic used for every monetary and
// volume mutation. Decimal strings are converted once into integer minor units,
// added or subtracted as int64, and rendered back to fixed-precision strings.
// Binary floating point is never used on these values.
package quant
