//go:build !windows

package process

func defaultElevation() []string {
	return []string{"sudo"}
}
