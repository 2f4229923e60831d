package validation

import (
	"strings"
	"testing"

	"github.com/veranemoloko/vidbatch/internal/videoid"
)

func TestValidateVideoLink(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:    "watch link",
			input:   "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			wantErr: false,
		},
		{
			name:    "short link",
			input:   "https://youtu.be/dQw4w9WgXcQ",
			wantErr: false,
		},
		{
			name:    "shorts link",
			input:   "https://youtube.com/shorts/abcdefghijk",
			wantErr: false,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
		{
			name:    "other site",
			input:   "https://example.com/watch?v=dQw4w9WgXcQ",
			wantErr: true,
		},
		{
			name:    "watch link without id",
			input:   "https://www.youtube.com/watch",
			wantErr: true,
		},
		{
			name:    "not a url",
			input:   "hello world",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVideoLink(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateVideoLink(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestVideoIDs(t *testing.T) {
	links := []string{
		"https://youtu.be/dQw4w9WgXcQ",
		"https://example.com",
		"https://www.youtube.com/watch?v=9bZkp7q19f0&t=10",
		"https://youtu.be/dQw4w9WgXcQ",
		"not a link",
	}

	got, skipped := VideoIDs(links)
	want := []videoid.ID{"dQw4w9WgXcQ", "9bZkp7q19f0", "dQw4w9WgXcQ"}

	if len(skipped) != 2 {
		t.Fatalf("expected 2 skipped links, got %v", skipped)
	}
	if !strings.Contains(skipped[0].Error(), `"https://example.com"`) {
		t.Errorf("skipped error does not name the link: %v", skipped[0])
	}

	if len(got) != len(want) {
		t.Fatalf("VideoIDs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("VideoIDs()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestStruct(t *testing.T) {
	type request struct {
		Link string `validate:"required,video_link"`
	}

	if err := Struct(request{Link: "https://youtu.be/dQw4w9WgXcQ"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := Struct(request{}); err == nil {
		t.Errorf("expected error for missing link")
	}
}
