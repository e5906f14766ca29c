package worker

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// ResolveWorkerID returns the explicit override when set, otherwise an id
// unique to this process instance. Workers never coordinate directly, so
// uniqueness per process is all that matters.
func ResolveWorkerID(explicit string) string {
	if explicit != "" {
		return explicit
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d-%d-%s",
		host, os.Getpid(), time.Now().Unix(), uuid.New().String()[:8])
}
