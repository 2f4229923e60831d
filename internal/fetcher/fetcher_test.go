package fetcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeBinary writes a shell script standing in for yt-dlp.
func fakeBinary(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "yt-dlp")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func TestLineWriter(t *testing.T) {
	var lines []string
	w := NewLineWriter(func(line string) {
		lines = append(lines, line)
	})

	_, _ = w.Write([]byte("first\nsec"))
	_, _ = w.Write([]byte("ond\r\n\nthird"))
	assert.Equal(t, []string{"first", "second"}, lines)

	require.NoError(t, w.Close())
	assert.Equal(t, []string{"first", "second", "third"}, lines)
}

func TestParseProgressLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Update
		ok   bool
	}{
		{
			name: "downloading",
			line: "vbprogress downloading 1048576 4194304 NA 524288.5 6",
			want: Update{Status: "downloading", Downloaded: 1048576, Total: 4194304, Speed: 524288.5, ETA: 6},
			ok:   true,
		},
		{
			name: "estimate only",
			line: "vbprogress downloading 100 NA 4194303.7 NA NA",
			want: Update{Status: "downloading", Downloaded: 100, TotalEstimate: 4194303.7},
			ok:   true,
		},
		{
			name: "finished",
			line: "  vbprogress finished 2048 2048 NA NA NA  ",
			want: Update{Status: "finished", Downloaded: 2048, Total: 2048},
			ok:   true,
		},
		{name: "other output", line: "[youtube] dQw4w9WgXcQ: Downloading webpage"},
		{name: "wrong field count", line: "vbprogress downloading 1 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseProgressLine(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUpdate_Progress(t *testing.T) {
	p := Update{Status: "downloading", Downloaded: 1, Total: 3, Speed: 10, ETA: 4}.Progress()
	assert.Equal(t, 33.3, *p.Percent)
	assert.Equal(t, 3.0, *p.Total)
	assert.Equal(t, 4.0, *p.ETA)

	p = Update{Status: "downloading", Downloaded: 50, TotalEstimate: 200}.Progress()
	assert.Equal(t, 25.0, *p.Percent)
	assert.Equal(t, 200.0, *p.Total)

	p = Update{Status: "downloading", Downloaded: 50}.Progress()
	assert.Equal(t, 0.0, *p.Percent)

	p = Update{Status: "finished", Downloaded: 200, TotalEstimate: 300, Speed: 1.5, ETA: 9}.Progress()
	assert.Equal(t, 100.0, *p.Percent)
	assert.Equal(t, 200.0, *p.Downloaded)
	assert.Equal(t, 0.0, *p.Total)
	assert.Equal(t, 0.0, *p.ETA)
	assert.Equal(t, 1.5, *p.Speed)
}

func TestYtDlp_Probe(t *testing.T) {
	bin := fakeBinary(t, `echo '{"id":"dQw4w9WgXcQ","title":"Never Gonna Give You Up","uploader":"Rick Astley","duration":212}'`)
	y := NewYtDlp(bin, "", newTestLogger())

	meta, err := y.Probe(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, Metadata{ID: "dQw4w9WgXcQ", Title: "Never Gonna Give You Up", Uploader: "Rick Astley"}, meta)
}

func TestYtDlp_ProbeFailure(t *testing.T) {
	bin := fakeBinary(t, `echo "ERROR: [youtube] xxxxxxxxxxx: Video unavailable" >&2; exit 1`)
	y := NewYtDlp(bin, "", newTestLogger())

	_, err := y.Probe(context.Background(), "https://youtu.be/xxxxxxxxxxx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Video unavailable")
}

func TestYtDlp_Fetch(t *testing.T) {
	bin := fakeBinary(t, `
dir=""
while [ $# -gt 0 ]; do
  if [ "$1" = "-o" ]; then dir=$(dirname "$2"); fi
  shift
done
echo "vbprogress downloading 512 1024 NA 100.0 5"
echo "vbprogress finished 1024 1024 NA NA NA"
printf 'video' > "$dir/My Video.mp4"
touch "$dir/My Video.f137.mp4.part"
`)
	y := NewYtDlp(bin, "", newTestLogger())

	dir := filepath.Join(t.TempDir(), "0")
	var updates []Update
	file, err := y.Fetch(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ", dir, func(u Update) {
		updates = append(updates, u)
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "My Video.mp4"), file)

	require.Len(t, updates, 2)
	assert.Equal(t, 512.0, updates[0].Downloaded)
	assert.True(t, updates[1].Finished())
}

func TestYtDlp_FetchNothingProduced(t *testing.T) {
	bin := fakeBinary(t, `exit 0`)
	y := NewYtDlp(bin, "", newTestLogger())

	file, err := y.Fetch(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ", t.TempDir(), nil)
	require.NoError(t, err)
	assert.Empty(t, file)
}

func TestYtDlp_FetchFailure(t *testing.T) {
	bin := fakeBinary(t, `printf '\033[0;31mERROR:\033[0m [youtube] dQw4w9WgXcQ: Private video\n' >&2; exit 1`)
	y := NewYtDlp(bin, "", newTestLogger())

	_, err := y.Fetch(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ", t.TempDir(), nil)
	require.Error(t, err)
	assert.Equal(t, "ERROR: [youtube] dQw4w9WgXcQ: Private video", err.Error())
	assert.False(t, strings.Contains(err.Error(), "\033"))
}
