package kernel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nilrun/statekit/internal/kernel"
)

func TestTaskSnapshotsIncludesBootAndCreatedTasks(t *testing.T) {
	k := kernel.New()
	var childID uint64

	run(t, k, 5, func(kk *kernel.Kernel, boot *kernel.Task) {
		child := kk.Create(3, func(kk *kernel.Kernel, self *kernel.Task) {}, "child")
		childID = child.ID
		kk.Start(boot, child)
		kk.Join(boot, child)
	})

	snaps := k.TaskSnapshots()
	assert.Len(t, snaps, 2)

	var sawChild bool
	for _, s := range snaps {
		if s.ID == childID {
			sawChild = true
			assert.Equal(t, "child", s.Name)
			assert.Equal(t, 3, s.Priority)
			assert.Equal(t, kernel.TaskStopped, s.State)
		}
	}
	assert.True(t, sawChild)
}

func TestTaskSnapshotLooksUpByID(t *testing.T) {
	k := kernel.New()
	var bootID uint64

	run(t, k, 5, func(kk *kernel.Kernel, boot *kernel.Task) {
		bootID = boot.ID
	})

	info, ok := k.TaskSnapshot(bootID)
	require.True(t, ok)
	assert.Equal(t, "boot", info.Name)
	assert.Equal(t, 5, info.Priority)

	_, ok = k.TaskSnapshot(bootID + 1000)
	assert.False(t, ok)
}
