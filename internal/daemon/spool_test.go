package daemon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSpoolFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseSpoolFile(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
		want    SpoolEvent
		wantErr bool
	}{
		{
			name:    "usage event",
			file:    "a.json",
			content: `{"type":"usage","minutes":5}`,
			want:    SpoolEvent{Type: "usage", Minutes: 5},
		},
		{
			name:    "threshold event",
			file:    "b.json",
			content: `{"type":"threshold_2"}`,
			want:    SpoolEvent{Type: "threshold_2"},
		},
		{
			name:    "budget exceeded",
			file:    "c.json",
			content: `{"type":"budget_exceeded"}`,
			want:    SpoolEvent{Type: "budget_exceeded"},
		},
		{
			name:    "text threshold",
			file:    "d.json",
			content: `{"type":"text_threshold_reached"}`,
			want:    SpoolEvent{Type: "text_threshold_reached"},
		},
		{
			name:    "usage without minutes",
			file:    "e.json",
			content: `{"type":"usage"}`,
			wantErr: true,
		},
		{
			name:    "negative minutes",
			file:    "f.json",
			content: `{"type":"usage","minutes":-3}`,
			wantErr: true,
		},
		{
			name:    "unknown type",
			file:    "g.json",
			content: `{"type":"coffee_break"}`,
			wantErr: true,
		},
		{
			name:    "malformed threshold",
			file:    "h.json",
			content: `{"type":"threshold_soon"}`,
			wantErr: true,
		},
		{
			name:    "not json",
			file:    "i.json",
			content: `minutes=5`,
			wantErr: true,
		},
		{
			name:    "wrong extension",
			file:    "j.tmp",
			content: `{"type":"usage","minutes":5}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeSpoolFile(t, dir, tt.file, tt.content)
			got, err := ParseSpoolFile(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSpoolFile_MissingFile(t *testing.T) {
	_, err := ParseSpoolFile(filepath.Join(t.TempDir(), "gone.json"))
	assert.Error(t, err)
}
