package descpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireLowestIndexFirst(t *testing.T) {
	p := New(4)

	fd0, err := p.Acquire("a")
	require.NoError(t, err)
	assert.Equal(t, 0, fd0)

	fd1, err := p.Acquire("b")
	require.NoError(t, err)
	assert.Equal(t, 1, fd1)

	require.NoError(t, p.Release(fd0))

	fd2, err := p.Acquire("c")
	require.NoError(t, err)
	assert.Equal(t, 0, fd2, "lowest free index should be reused first")
}

func TestAcquireExhaustion(t *testing.T) {
	p := New(2)
	_, err := p.Acquire("a")
	require.NoError(t, err)
	_, err = p.Acquire("b")
	require.NoError(t, err)

	_, err = p.Acquire("c")
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestCapacityInvariant(t *testing.T) {
	p := New(3)
	fds := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		fd, err := p.Acquire(i)
		require.NoError(t, err)
		fds = append(fds, fd)
	}
	assert.Equal(t, 3, p.InUse())
	assert.Equal(t, p.Capacity()-p.InUse(), 0)

	require.NoError(t, p.Release(fds[0]))
	assert.Equal(t, p.Capacity()-p.InUse(), 1)
}

func TestReleaseIdempotentErrors(t *testing.T) {
	p := New(2)
	fd, err := p.Acquire("a")
	require.NoError(t, err)

	require.NoError(t, p.Release(fd))
	assert.ErrorIs(t, p.Release(fd), ErrNotInUse)
}

func TestGetInUseRejectsStale(t *testing.T) {
	p := New(2)
	fd, err := p.Acquire("a")
	require.NoError(t, err)
	require.NoError(t, p.Release(fd))

	_, ok := p.GetInUse(fd)
	assert.False(t, ok)
}

func TestGetBoundsCheck(t *testing.T) {
	p := New(2)
	_, ok := p.Get(5)
	assert.False(t, ok)
	_, ok = p.Get(-1)
	assert.False(t, ok)
}
