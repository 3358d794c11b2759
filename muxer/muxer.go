// Package muxer implements the Clip Muxer component (spec §4.C): given a
// question's audio and frame buffers, it writes a WAV file, a directory
// of sequentially numbered JPEGs, and — when both are present — invokes
// an external encoder to mux them into an MP4.
//
// The external-encoder invocation is grounded on the teacher's
// media.AudioConverter FFmpeg integration (temp-dir + exec.CommandContext
// with a timeout + stderr capture + typed sentinel errors), adapted here
// to mux pre-existing WAV+JPEGs instead of transcoding a single buffer.
package muxer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/interviewrt/runtime/logger"
	"github.com/interviewrt/runtime/media"
)

// Sentinel errors, mirrored from media/audio_converter_integration.go.
var (
	ErrFFmpegNotFound = errors.New("muxer: ffmpeg binary not found")
	ErrFFmpegTimeout  = errors.New("muxer: ffmpeg execution timed out")
)

const (
	defaultFFmpegPath    = "ffmpeg"
	defaultFFmpegTimeout = 5 * time.Minute
	sampleRate           = 16000
	muxFrameRate         = 1 // spec §4.C: "H.264 video at 1 fps"
	filePerm             = 0o600
	dirPerm              = 0o755

	// maxFrameBytes caps one stored keyframe after resize — bounds disk
	// usage for a session with many questions without visibly degrading
	// the frame (JPEG quality only steps down if still over the cap).
	maxFrameBytes = 512 * 1024
)

// frameResizeConfig bounds the JPEG keyframes mediabuf hands to the Muxer
// before they're written to disk (spec §4.B/§4.C keyframe handling). This
// is the domain stack's wiring home for golang.org/x/image, named in
// SPEC_FULL.md §11, via media/image.go's ResizeImage (teacher-grounded:
// the same function backs the teacher's own inbound-media resizing).
var frameResizeConfig = media.ImageResizeConfig{
	MaxWidth:            media.DefaultMaxWidth,
	MaxHeight:           media.DefaultMaxHeight,
	MaxSizeBytes:        maxFrameBytes,
	Quality:             media.DefaultQuality,
	PreserveAspectRatio: true,
	SkipIfSmaller:       true,
}

// Config configures the Muxer.
type Config struct {
	// Root is the base directory clip artefacts are written under.
	Root string
	// FFmpegPath is the ffmpeg binary to invoke. Default "ffmpeg" (PATH).
	FFmpegPath string
	// Timeout bounds a single ffmpeg invocation. Default 5 minutes.
	Timeout time.Duration
}

// Muxer produces clip artefacts for one (session, question) flush.
type Muxer struct {
	cfg Config
}

// New constructs a Muxer, applying defaults for unset Config fields.
func New(cfg Config) *Muxer {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = defaultFFmpegPath
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultFFmpegTimeout
	}
	return &Muxer{cfg: cfg}
}

// Result is the artefact set produced by one Mux call. Paths are empty
// when that artefact wasn't produced.
type Result struct {
	WAVPath   string
	FrameDir  string
	MP4Path   string
	// ClipPath is the single "best available" path spec §4.C promises:
	// MP4 if muxed, else WAV, else the silent-video MP4, else empty.
	ClipPath string
}

// Mux writes audio and frames for (sessionID, questionIndex) and, when
// both are present, muxes an MP4. Failure to mux is non-fatal per spec
// §4.C/§7: it returns the best artefact obtained rather than an error,
// except when neither audio nor frames decode to anything at all.
func (m *Muxer) Mux(ctx context.Context, sessionID string, questionIndex int, audio [][]byte, frames [][]byte) (Result, error) {
	base := fmt.Sprintf("%s_q%d", sessionID, questionIndex+1)
	var result Result

	var wavPath string
	if len(audio) > 0 {
		var err error
		wavPath, err = m.writeWAV(base, audio)
		if err != nil {
			logger.Warn("muxer: failed to write wav", "session_id", sessionID, "question_index", questionIndex, "error", err)
		} else {
			result.WAVPath = wavPath
			result.ClipPath = wavPath
		}
	}

	var frameDir string
	var frameCount int
	if len(frames) > 0 {
		var err error
		frameDir, frameCount, err = m.writeFrames(base, frames)
		if err != nil {
			logger.Warn("muxer: failed to write frames", "session_id", sessionID, "question_index", questionIndex, "error", err)
		} else {
			result.FrameDir = frameDir
		}
	}

	switch {
	case wavPath != "" && frameDir != "" && frameCount > 0:
		mp4Path := filepath.Join(m.cfg.Root, base+"_av.mp4")
		if err := m.muxAV(ctx, frameDir, wavPath, mp4Path); err != nil {
			logger.Warn("muxer: av mux failed, falling back to wav", "session_id", sessionID, "error", err)
			break
		}
		result.MP4Path = mp4Path
		result.ClipPath = mp4Path
	case frameDir != "" && frameCount > 0 && wavPath == "":
		mp4Path := filepath.Join(m.cfg.Root, base+"_video.mp4")
		if err := m.muxVideoOnly(ctx, frameDir, mp4Path); err != nil {
			logger.Warn("muxer: silent video mux failed", "session_id", sessionID, "error", err)
			break
		}
		result.MP4Path = mp4Path
		result.ClipPath = mp4Path
	}

	return result, nil
}

func (m *Muxer) writeWAV(base string, audio [][]byte) (string, error) {
	if err := os.MkdirAll(m.cfg.Root, dirPerm); err != nil {
		return "", fmt.Errorf("muxer: mkdir: %w", err)
	}
	var pcm bytes.Buffer
	for _, chunk := range audio {
		pcm.Write(chunk)
	}
	path := filepath.Join(m.cfg.Root, base+".wav")
	if err := writeWAVFile(path, pcm.Bytes(), sampleRate); err != nil {
		return "", err
	}
	return path, nil
}

func (m *Muxer) writeFrames(base string, frames [][]byte) (string, int, error) {
	dir := filepath.Join(m.cfg.Root, base+"_frames")
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", 0, fmt.Errorf("muxer: mkdir: %w", err)
	}
	for i, frame := range frames {
		path := filepath.Join(dir, fmt.Sprintf("frame_%04d.jpg", i))
		if err := os.WriteFile(path, resizeFrame(frame), filePerm); err != nil {
			return "", i, fmt.Errorf("muxer: write frame %d: %w", i, err)
		}
	}
	return dir, len(frames), nil
}

// resizeFrame caps a keyframe's dimensions/size via media.ResizeImage,
// falling back to the raw bytes unchanged when the payload doesn't
// decode as an image — a frame the Proctor couldn't classify still gets
// stored verbatim rather than dropped (spec §4.C: clip writing is
// best-effort, never the reason an answer loses its clip).
func resizeFrame(frame []byte) []byte {
	result, err := media.ResizeImage(frame, frameResizeConfig)
	if err != nil {
		return frame
	}
	return result.Data
}

func (m *Muxer) muxAV(ctx context.Context, frameDir, wavPath, outPath string) error {
	pattern := filepath.Join(frameDir, "frame_%04d.jpg")
	args := []string{
		"-y",
		"-framerate", fmt.Sprintf("%d", muxFrameRate),
		"-i", pattern,
		"-i", wavPath,
		"-vcodec", "libx264",
		"-pix_fmt", "yuv420p",
		"-acodec", "aac",
		"-shortest",
		outPath,
	}
	return m.run(ctx, args)
}

func (m *Muxer) muxVideoOnly(ctx context.Context, frameDir, outPath string) error {
	pattern := filepath.Join(frameDir, "frame_%04d.jpg")
	args := []string{
		"-y",
		"-framerate", fmt.Sprintf("%d", muxFrameRate),
		"-i", pattern,
		"-vcodec", "libx264",
		"-pix_fmt", "yuv420p",
		outPath,
	}
	return m.run(ctx, args)
}

// run invokes ffmpeg with a bounded timeout and captured stderr, the same
// shape as media.AudioConverter.runFFmpeg.
func (m *Muxer) run(ctx context.Context, args []string) error {
	runCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, m.cfg.FFmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return ErrFFmpegTimeout
		}
		var execErr *exec.Error
		if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
			return ErrFFmpegNotFound
		}
		return fmt.Errorf("muxer: ffmpeg failed: %w, stderr: %s", err, stderr.String())
	}
	return nil
}

// CheckFFmpegAvailable probes the configured ffmpeg binary, mirroring
// media.CheckFFmpegAvailable.
func CheckFFmpegAvailable(ctx context.Context, ffmpegPath string) error {
	if ffmpegPath == "" {
		ffmpegPath = defaultFFmpegPath
	}
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	cmd := exec.CommandContext(checkCtx, ffmpegPath, "-version")
	if err := cmd.Run(); err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
			return ErrFFmpegNotFound
		}
		return fmt.Errorf("muxer: ffmpeg check failed: %w", err)
	}
	return nil
}
