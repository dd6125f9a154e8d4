package memory_test

import (
	"testing"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/memory"
	"github.com/warp/leave-engine/store/storetest"
)

func TestMemoryBackend(t *testing.T) {
	storetest.Run(t, func(t *testing.T) leave.Backend {
		return memory.New()
	})
}
