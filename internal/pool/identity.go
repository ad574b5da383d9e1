package pool

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

// WorkerID returns configured when set, otherwise host:pid:suffix with a
// random suffix so restarted processes never share an identity.
func WorkerID(configured string) string {
	if id := strings.TrimSpace(configured); id != "" {
		return id
	}

	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s:%d:%s", host, os.Getpid(), uuid.NewString()[:8])
}
