package instance

import (
	"os"
	"strings"
)

// ID identifies the running process in logs: the dyno name when set, else the
// host name, else "local".
func ID() string {
	for _, key := range []string{"DYNO", "HOSTNAME"} {
		if id := strings.TrimSpace(os.Getenv(key)); id != "" {
			return id
		}
	}
	return "local"
}
