//go:build !linux

package attacher

// platformSupported reports the resource error every non-linux build of
// this package returns from New, mirroring the kepler exporter's
// build-tag-gated stub fallback for platforms without BTF/fentry support.
func platformSupported() error {
	return newError(ErrResource, "mass function attacher requires linux (BTF and fentry/fexit tracing are linux-kernel features)", nil)
}
