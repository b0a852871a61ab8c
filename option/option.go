// Package option provides the generic functional options type shared by every constructor.
package option

// Option represents a functional option that configures a value of type T.
type Option[T any] func(*T)

// Apply runs opts against v in order.
func Apply[T any](v *T, opts ...Option[T]) {
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
}
