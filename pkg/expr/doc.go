// Package expr provides CEL (Common Expression Language) environments for
// evaluating expressions against rule quota usage.
//
// Each quota category is exposed as a map with `enabled` and `maximum` keys.
// The library adds:
//   - usage(limit): enabled/maximum as a double
//   - remaining(limit): maximum-enabled, floored at zero
//   - missing(a, b): elements of list a absent from list b
package expr
