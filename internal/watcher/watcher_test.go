package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyUnchanged(t *testing.T) {
	s := Sample{Length: 10, Fingerprint: 1}
	assert.Equal(t, Unchanged, classify(s, s))
}

func TestClassifyAppend(t *testing.T) {
	prev := Sample{Length: 10, Fingerprint: 1}
	cur := Sample{Length: 20, Fingerprint: 1}
	assert.Equal(t, Append, classify(prev, cur))
}

func TestClassifyTruncateOnShrink(t *testing.T) {
	prev := Sample{Length: 20, Fingerprint: 1}
	cur := Sample{Length: 5, Fingerprint: 2}
	assert.Equal(t, Truncate, classify(prev, cur))
}

func TestClassifyTruncateOnFingerprintChangeSameLength(t *testing.T) {
	prev := Sample{Length: 20, Fingerprint: 1}
	cur := Sample{Length: 20, Fingerprint: 99} // rotated file, same size
	assert.Equal(t, Truncate, classify(prev, cur))
}

func TestWatcherDeliversAppendClassification(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0644))

	var mu sync.Mutex
	var got []Classification
	done := make(chan struct{}, 1)

	sample := func() (Sample, error) {
		fi, err := os.Stat(path)
		if err != nil {
			return Sample{}, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return Sample{}, err
		}
		prefix := data
		if len(prefix) > 2 {
			prefix = prefix[:2]
		}
		var fp uint64
		for _, b := range prefix {
			fp = fp*31 + uint64(b)
		}
		return Sample{Length: fi.Size(), Fingerprint: fp}, nil
	}

	w := New(path, 20*time.Millisecond, sample,
		func(prev, cur Sample, kind Classification) {
			mu.Lock()
			got = append(got, kind)
			mu.Unlock()
			select {
			case done <- struct{}{}:
			default:
			}
		},
		func(err error) { t.Logf("watcher error: %v", err) },
	)

	initial, err := sample()
	require.NoError(t, err)
	w.Start(initial)
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("abcdef"), 0644))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watcher classification")
	}

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, got)
	assert.Equal(t, Append, got[0])
}
