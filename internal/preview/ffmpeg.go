package preview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"encmirror/internal/media/ffprobe"
)

// FFmpegOpener probes recordings with ffprobe and grabs PNG frames with
// ffmpeg.
type FFmpegOpener struct {
	FFmpeg  string
	FFprobe string
	// Timeout bounds each probe and frame grab; zero means no limit beyond
	// the caller's context.
	Timeout time.Duration
}

// Open checks that path is a readable transport stream carrying serviceID.
func (o FFmpegOpener) Open(ctx context.Context, path string, serviceID int) (FrameSource, error) {
	ctx, cancel := o.withTimeout(ctx)
	defer cancel()

	result, err := ffprobe.Inspect(ctx, o.FFprobe, path)
	if err != nil {
		return nil, err
	}
	duration := result.DurationSeconds()
	if math.IsNaN(duration) || duration <= 0 {
		return nil, fmt.Errorf("%s: unknown duration", path)
	}
	src := &ffmpegSource{opener: o, path: path, duration: duration, videoMap: "0:v:0"}
	if len(result.Programs) > 0 {
		if _, ok := result.ProgramVideo(serviceID); !ok {
			return nil, fmt.Errorf("%s: no video for service %d", path, serviceID)
		}
		src.videoMap = "0:p:" + strconv.Itoa(serviceID) + ":v:0"
	} else if result.VideoStreamCount() == 0 {
		return nil, fmt.Errorf("%s: no video stream", path)
	}
	return src, nil
}

func (o FFmpegOpener) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.Timeout)
}

type ffmpegSource struct {
	opener   FFmpegOpener
	path     string
	duration float64
	videoMap string
}

func (s *ffmpegSource) Frame(ctx context.Context, pos float64) ([]byte, error) {
	ctx, cancel := s.opener.withTimeout(ctx)
	defer cancel()

	binary := strings.TrimSpace(s.opener.FFmpeg)
	if binary == "" {
		binary = "ffmpeg"
	}
	// Keep the seek just inside the stream so pos=1 still yields a frame.
	offset := math.Max(0, math.Min(pos*s.duration, s.duration-0.5))
	args := []string{
		"-v", "error", "-hide_banner", "-nostdin",
		"-ss", strconv.FormatFloat(offset, 'f', 3, 64),
		"-i", s.path,
		"-map", s.videoMap,
		"-frames:v", "1",
		"-f", "image2", "-c:v", "png",
		"pipe:1",
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg frame grab: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, errors.New("ffmpeg frame grab: empty output")
	}
	return stdout.Bytes(), nil
}

func (s *ffmpegSource) Close() error { return nil }
