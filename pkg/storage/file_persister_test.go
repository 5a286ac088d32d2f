package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFilePersister(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		path         string
		existingData string
		data         string
		truncates    bool
	}{
		{
			name: "just_file",
			path: "shot.png",
			data: "some data",
		},
		{
			name: "with_dir",
			path: "screenshots/nested/shot.png",
			data: "some data",
		},
		{
			name:         "truncates",
			path:         "shot.png",
			data:         "new",
			truncates:    true,
			existingData: "existing data",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := filepath.Join(t.TempDir(), tt.path)
			if tt.truncates {
				require.NoError(t, os.WriteFile(p, []byte(tt.existingData), 0o600))
			}

			l := &LocalFilePersister{}
			require.NoError(t, l.Persist(context.Background(), p, strings.NewReader(tt.data)))

			bb, err := os.ReadFile(p)
			require.NoError(t, err)
			assert.Equal(t, tt.data, string(bb))
		})
	}
}

func TestLocalFilePersisterErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	l := &LocalFilePersister{}
	err := l.Persist(context.Background(), filepath.Join(blocker, "shot.png"), strings.NewReader("x"))
	assert.ErrorContains(t, err, "creating artifact directory")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = l.Persist(ctx, filepath.Join(dir, "shot.png"), strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, filepath.Join(dir, "shot.png"))
}
