package glm

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-lightning-align/internal/domain"
	"github.com/couchcryptid/storm-lightning-align/internal/observability"
)

// mockS3 serves objects from memory, listing them in key order.
type mockS3 struct {
	objects map[string]string
}

func (m *mockS3) ListObjectsV2(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	var keys []string
	for key := range m.objects {
		if strings.HasPrefix(key, *params.Prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, key := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
	}
	return out, nil
}

func (m *mockS3) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := m.objects[*params.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

const (
	object0610 = "time,lat,lon,energy,area,quality_flag\n" +
		"2022-09-28T06:10:00Z,25.1,-80.2,2e-15,300,0\n" +
		"2022-09-28T06:10:05Z,25.2,-80.1,3e-15,450,1\n"
	object0630 = "time,lat,lon,energy,area,quality_flag\n" +
		"2022-09-28T06:30:00Z,25.3,-80.0,1e-15,200,0\n"
)

func newTestFactory(t *testing.T) (*Factory, string) {
	t.Helper()
	client := &mockS3{objects: map[string]string{
		"glm-groups/2022/271/06/groups_s20222710610000_v1.csv": object0610,
		"glm-groups/2022/271/06/groups_s20222710630000_v1.csv": object0630,
		"glm-groups/2022/271/07/groups_s20222710700000_v1.csv": "time,lat,lon,energy,area,quality_flag\n",
	}}
	root := t.TempDir()
	cache := NewCache(root)
	return NewFactory(client, "test-bucket", "glm-groups", cache, observability.NewLogger("error", "text")), root
}

func TestFactory_Events(t *testing.T) {
	factory, root := newTestFactory(t)
	storm := domain.StormInfo{Code: "AL092022"}
	w := domain.Window{Start: utc(9, 28, 6, 0), End: utc(9, 28, 7, 0)}

	src, err := factory.Events(context.Background(), storm, w)
	require.NoError(t, err)

	var events []domain.EventRecord
	for {
		ev, err := src.Next(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		events = append(events, ev)
	}
	require.Len(t, events, 3, "hour-07 object is outside the window")

	assert.Equal(t, utc(9, 28, 6, 10), events[0].Time)
	assert.Equal(t, 25.1, events[0].Lat)
	assert.Equal(t, -80.2, events[0].Lon)
	assert.Equal(t, 2e-15, events[0].Payload[PayloadEnergy])
	assert.Equal(t, 300.0, events[0].Payload[PayloadArea])
	assert.Equal(t, 0.0, events[0].Payload[PayloadQualityFlag])
	assert.Equal(t, 1.0, events[1].Payload[PayloadQualityFlag])
	assert.Equal(t, utc(9, 28, 6, 30), events[2].Time)

	// Objects land in the storm's scratch dir while the stream is open.
	entries, err := os.ReadDir(filepath.Join(root, storm.Code))
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	require.NoError(t, src.Close())
	_, err = os.Stat(filepath.Join(root, storm.Code))
	assert.True(t, os.IsNotExist(err), "cache dir released on close")
}

func TestFactory_Events_EmptyWindow(t *testing.T) {
	factory, _ := newTestFactory(t)
	w := domain.Window{Start: utc(1, 1, 0, 0), End: utc(1, 1, 2, 0)}

	src, err := factory.Events(context.Background(), domain.StormInfo{Code: "AL012022"}, w)
	require.NoError(t, err)
	defer src.Close()

	_, err = src.Next(context.Background())
	assert.Equal(t, io.EOF, err)
}

func TestCache_AcquireRelease(t *testing.T) {
	cache := NewCache(t.TempDir())

	dir, err := cache.Acquire("AL092022")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stale.csv"), []byte("x"), 0o644))

	// Re-acquiring empties the directory.
	dir, err = cache.Acquire("AL092022")
	require.NoError(t, err)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, cache.Release("AL092022"))
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}
