//go:build !darwin && !linux

package introspect

func newPlatform() Introspector {
	return Unavailable{}
}
