//go:build linux

package introspect

func newPlatform() Introspector {
	return NewATSPI()
}
