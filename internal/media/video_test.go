package media

import (
	"encoding/json"
	"testing"
)

func TestNormalizeRotation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   int
		want int
	}{
		{name: "zero", in: 0, want: 0},
		{name: "quarter turn", in: 90, want: 90},
		{name: "half turn", in: 180, want: 180},
		{name: "three quarters", in: 270, want: 270},
		{name: "full turn wraps", in: 360, want: 0},
		{name: "beyond full turn", in: 450, want: 90},
		{name: "negative quarter", in: -90, want: 270},
		{name: "negative three quarters", in: -270, want: 90},
		{name: "snaps up to quadrant", in: 85, want: 90},
		{name: "snaps down to quadrant", in: 100, want: 90},
		{name: "near zero stays zero", in: 10, want: 0},
		{name: "near full turn stays zero", in: 350, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := normalizeRotation(tt.in); got != tt.want {
				t.Errorf("normalizeRotation(%d) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestStreamRotation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		json string
		want int
	}{
		{
			name: "legacy rotate tag",
			json: `{"codec_type":"video","tags":{"rotate":"90"}}`,
			want: 90,
		},
		{
			name: "display matrix side data negates",
			json: `{"codec_type":"video","side_data_list":[{"rotation":-90}]}`,
			want: 90,
		},
		{
			name: "display matrix positive value",
			json: `{"codec_type":"video","side_data_list":[{"rotation":90}]}`,
			want: 270,
		},
		{
			name: "tag wins over side data",
			json: `{"codec_type":"video","tags":{"rotate":"180"},"side_data_list":[{"rotation":-90}]}`,
			want: 180,
		},
		{
			name: "no rotation metadata",
			json: `{"codec_type":"video"}`,
			want: 0,
		},
		{
			name: "garbage tag ignored",
			json: `{"codec_type":"video","tags":{"rotate":"sideways"}}`,
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var stream ffprobeStream
			if err := json.Unmarshal([]byte(tt.json), &stream); err != nil {
				t.Fatalf("failed to parse stream fixture: %v", err)
			}
			if got := streamRotation(stream); got != tt.want {
				t.Errorf("streamRotation = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFfprobeOutputParsing(t *testing.T) {
	t.Parallel()

	// Trimmed real ffprobe output for a portrait phone video.
	raw := `{
		"streams": [
			{"codec_type": "audio"},
			{
				"codec_type": "video",
				"width": 1920,
				"height": 1080,
				"side_data_list": [{"rotation": -90}]
			}
		],
		"format": {"duration": "12.345000"}
	}`

	var probe ffprobeOutput
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		t.Fatalf("failed to parse ffprobe fixture: %v", err)
	}

	if len(probe.Streams) != 2 {
		t.Fatalf("parsed %d streams, want 2", len(probe.Streams))
	}
	video := probe.Streams[1]
	if video.Width != 1920 || video.Height != 1080 {
		t.Errorf("stream dimensions = %dx%d, want 1920x1080", video.Width, video.Height)
	}
	if got := streamRotation(video); got != 90 {
		t.Errorf("rotation = %d, want 90", got)
	}
	if probe.Format.Duration != "12.345000" {
		t.Errorf("duration = %q, want 12.345000", probe.Format.Duration)
	}
}

func TestExtractVideoMetadataMissingFile(t *testing.T) {
	t.Parallel()

	// ffprobe, when present, must fail cleanly on a nonexistent path.
	if _, err := ExtractVideoMetadata("/nonexistent/clip.mp4"); err == nil {
		t.Error("expected an error for a missing file")
	}
}
