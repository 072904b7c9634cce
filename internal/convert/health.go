package convert

import "os/exec"

// Availability reports which converter commands are reachable on PATH.
// It is a lightweight capability probe; it never touches the scheduler's
// request path.
func Availability(descriptors map[string]Descriptor) map[string]bool {
	out := make(map[string]bool, len(descriptors))
	for name, d := range descriptors {
		_, err := exec.LookPath(d.Command)
		out[name] = err == nil
	}
	return out
}
