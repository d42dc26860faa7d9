// Package wide provides fixed-size lane types for batch pixel processing.
//
// F32x8 holds eight float32 lanes, Mask8 the per-lane result of a
// comparison and U32x8 eight per-lane counters. The escape-time fast path
// iterates eight pixels at once with these types, and the palette evaluates
// eight iteration counts per call.
//
// # Design Philosophy
//
//   - Use simple loops over fixed-size arrays for auto-vectorization
//   - Avoid unsafe and assembly - rely on compiler optimization
//   - Keep functions small and inlineable
package wide
