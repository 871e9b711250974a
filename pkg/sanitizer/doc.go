// Package sanitizer provides input normalization functions for business data.
//
// All normalization functions are idempotent - applying them multiple times
// produces the same result. Functions handle invalid input gracefully,
// typically by returning empty strings rather than errors.
//
// Normalization includes:
//   - Strings: Collapse whitespace, trim leading/trailing spaces
//   - Emails and usernames: Lowercase after trimming
//   - Free text (purposes, descriptions): Whitespace collapse only,
//     casing preserved
package sanitizer
