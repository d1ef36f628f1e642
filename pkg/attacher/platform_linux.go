//go:build linux

package attacher

// platformSupported always succeeds on linux; fentry/fexit tracing and
// BTF are linux-kernel concepts and have no other host.
func platformSupported() error {
	return nil
}
