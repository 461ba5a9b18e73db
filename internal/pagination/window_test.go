package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowProperties(t *testing.T) {
	for total := 1; total <= 30; total++ {
		for current := 1; current <= total; current++ {
			pages := Window(current, total)

			require.Len(t, pages, min(WindowSize, total), "current=%d total=%d", current, total)
			assert.Contains(t, pages, current)
			for i := 1; i < len(pages); i++ {
				assert.Equal(t, pages[i-1]+1, pages[i], "页码必须连续递增")
			}
			assert.GreaterOrEqual(t, pages[0], 1)
			assert.LessOrEqual(t, pages[len(pages)-1], total)
		}

		assert.Equal(t, 1, Window(1, total)[0])
		last := Window(total, total)
		assert.Equal(t, total, last[len(last)-1])
	}
}

func TestWindowSlides(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3, 4, 5}, Window(1, 10))
	assert.Equal(t, []int{1, 2, 3, 4, 5}, Window(3, 10))
	assert.Equal(t, []int{2, 3, 4, 5, 6}, Window(4, 10))
	assert.Equal(t, []int{6, 7, 8, 9, 10}, Window(9, 10))
	assert.Equal(t, []int{1, 2, 3}, Window(2, 3))
	assert.Nil(t, Window(1, 0))
}

func TestWindowClampsOutOfRangeCurrent(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3, 4, 5}, Window(-3, 8))
	assert.Equal(t, []int{4, 5, 6, 7, 8}, Window(99, 8))
}

func TestPrevNext(t *testing.T) {
	assert.False(t, HasPrev(1))
	assert.True(t, HasPrev(2))
	assert.True(t, HasNext(2, 3))
	assert.False(t, HasNext(3, 3))
}

func TestRange(t *testing.T) {
	start, end := Range(2, 10, 25)
	assert.Equal(t, 11, start)
	assert.Equal(t, 20, end)

	start, end = Range(3, 10, 25)
	assert.Equal(t, 21, start)
	assert.Equal(t, 25, end)

	start, end = Range(1, 10, 0)
	assert.Zero(t, start)
	assert.Zero(t, end)

	start, end = Range(4, 10, 25)
	assert.Zero(t, start)
	assert.Zero(t, end)
}
