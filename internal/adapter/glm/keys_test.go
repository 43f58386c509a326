package glm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-lightning-align/internal/domain"
)

func utc(y time.Month, d, h, m int) time.Time {
	return time.Date(2022, y, d, h, m, 0, 0, time.UTC)
}

func TestHourPrefixes(t *testing.T) {
	w := domain.Window{Start: utc(9, 28, 6, 15), End: utc(9, 28, 8, 30)}

	prefixes := HourPrefixes("glm-groups", w)
	assert.Equal(t, []string{
		"glm-groups/2022/271/06/",
		"glm-groups/2022/271/07/",
		"glm-groups/2022/271/08/",
	}, prefixes)
}

func TestHourPrefixes_CrossesDayBoundary(t *testing.T) {
	w := domain.Window{Start: utc(9, 28, 23, 0), End: utc(9, 29, 1, 0)}

	prefixes := HourPrefixes("glm-groups", w)
	assert.Equal(t, []string{
		"glm-groups/2022/271/23/",
		"glm-groups/2022/272/00/",
	}, prefixes)
}

func TestStartTimeFromKey(t *testing.T) {
	ts, err := startTimeFromKey("glm-groups/2022/271/06/groups_s20222710610300_v1.csv")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2022, 9, 28, 6, 10, 30, 0, time.UTC), ts)
}

func TestStartTimeFromKey_NoField(t *testing.T) {
	_, err := startTimeFromKey("glm-groups/2022/271/06/groups_v1.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no s-field")
}

func TestStartTimeFromKey_BadDayOfYear(t *testing.T) {
	_, err := startTimeFromKey("groups_s20223990610300_v1.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestKeyInWindow(t *testing.T) {
	w := domain.Window{Start: utc(9, 28, 6, 0), End: utc(9, 28, 7, 0)}

	assert.True(t, keyInWindow("groups_s20222710600000_v1.csv", w), "window start is inclusive")
	assert.True(t, keyInWindow("groups_s20222710659590_v1.csv", w))
	assert.False(t, keyInWindow("groups_s20222710700000_v1.csv", w), "window end is exclusive")
	assert.False(t, keyInWindow("groups_s20222710559590_v1.csv", w))
	assert.False(t, keyInWindow("groups_v1.csv", w), "unparsable keys are excluded")
}
