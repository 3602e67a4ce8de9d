package media

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"math"
	"os/exec"
	"strconv"

	"media-gallery/internal/logging"
)

// VideoMetadata is the subset of container metadata the gallery needs.
// Width and Height are raw stream dimensions, before rotation.
type VideoMetadata struct {
	Width          int
	Height         int
	Rotation       int // 0, 90, 180 or 270 degrees
	DurationMillis int64
}

// ffprobe output shapes (only the fields we read)
type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

type ffprobeStream struct {
	CodecType string `json:"codec_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Tags      struct {
		Rotate string `json:"rotate"`
	} `json:"tags"`
	SideDataList []struct {
		Rotation float64 `json:"rotation"`
	} `json:"side_data_list"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

// ExtractVideoMetadata reads stream dimensions, rotation and duration from a
// video container using ffprobe.
func ExtractVideoMetadata(path string) (VideoMetadata, error) {
	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return VideoMetadata{}, fmt.Errorf("ffprobe not found: %w", err)
	}

	cmd := exec.Command(ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return VideoMetadata{}, fmt.Errorf("ffprobe failed for %s: %v, stderr: %s", path, err, stderr.String())
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &probe); err != nil {
		return VideoMetadata{}, fmt.Errorf("failed to parse ffprobe output for %s: %w", path, err)
	}

	meta := VideoMetadata{}

	for _, stream := range probe.Streams {
		if stream.CodecType != "video" {
			continue
		}
		meta.Width = stream.Width
		meta.Height = stream.Height
		meta.Rotation = streamRotation(stream)
		break
	}

	if probe.Format.Duration != "" {
		if seconds, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
			meta.DurationMillis = int64(seconds * 1000)
		}
	}

	if meta.Width == 0 || meta.Height == 0 {
		return VideoMetadata{}, fmt.Errorf("no video stream dimensions in %s", path)
	}

	return meta, nil
}

// streamRotation normalizes the two ways ffprobe reports rotation: the
// legacy rotate tag and the display matrix side data (which uses negative
// counter-clockwise values).
func streamRotation(stream ffprobeStream) int {
	if stream.Tags.Rotate != "" {
		if r, err := strconv.Atoi(stream.Tags.Rotate); err == nil {
			return normalizeRotation(r)
		}
	}
	for _, sd := range stream.SideDataList {
		if sd.Rotation != 0 {
			return normalizeRotation(-int(math.Round(sd.Rotation)))
		}
	}
	return 0
}

func normalizeRotation(r int) int {
	r = r % 360
	if r < 0 {
		r += 360
	}
	// Snap to the quadrant values the index stores.
	switch {
	case r >= 45 && r < 135:
		return 90
	case r >= 135 && r < 225:
		return 180
	case r >= 225 && r < 315:
		return 270
	default:
		return 0
	}
}

// ExtractVideoFrame grabs one display-ready frame from a video using ffmpeg.
// ffmpeg applies the container's rotation metadata itself, so no further
// orientation handling is needed.
func ExtractVideoFrame(path string) (image.Image, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}

	cmd := exec.Command(ffmpegPath,
		"-i", path,
		"-ss", "00:00:01",
		"-vframes", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		logging.Debug("ffmpeg seek attempt failed for %s: %v, stderr: %s", path, err, stderr.String())

		// Very short clips have no frame at the 1s mark; retry from the start.
		cmd = exec.Command(ffmpegPath,
			"-i", path,
			"-vframes", "1",
			"-f", "image2pipe",
			"-vcodec", "png",
			"-",
		)
		stdout.Reset()
		stderr.Reset()
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			return nil, fmt.Errorf("ffmpeg failed: %v, stderr: %s", err, stderr.String())
		}
	}

	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output for %s", path)
	}

	img, _, err := image.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ffmpeg output: %w", err)
	}

	return img, nil
}
