//go:build windows

package process

// Windows has no stock command-line elevation prefix; elevate_with must be
// configured.
func defaultElevation() []string {
	return nil
}
