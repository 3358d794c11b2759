package muxer

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interviewrt/runtime/media"
)

func TestMux_AudioOnly(t *testing.T) {
	m := New(Config{Root: t.TempDir()})

	audio := [][]byte{[]byte("pcm-chunk-1"), []byte("pcm-chunk-2")}
	result, err := m.Mux(context.Background(), "sess-1", 0, audio, nil)
	require.NoError(t, err)

	assert.NotEmpty(t, result.WAVPath)
	assert.Empty(t, result.FrameDir)
	assert.Empty(t, result.MP4Path)
	assert.Equal(t, result.WAVPath, result.ClipPath, "wav is the best available artefact when no frames exist")

	_, statErr := os.Stat(result.WAVPath)
	assert.NoError(t, statErr)
}

func TestMux_FramesOnlyWithoutFFmpegDoesNotError(t *testing.T) {
	// No ffmpeg invocation happens unless frameCount > 0 AND muxing is
	// attempted; here we only assert the JPEG frame files land on disk and
	// Mux never returns an error even when the av/video-only mux step
	// fails (spec §4.C/§7: muxing failure is non-fatal).
	m := New(Config{Root: t.TempDir(), FFmpegPath: "definitely-not-a-real-binary"})

	frames := [][]byte{[]byte("jpeg-1"), []byte("jpeg-2")}
	result, err := m.Mux(context.Background(), "sess-1", 1, nil, frames)
	require.NoError(t, err)

	assert.NotEmpty(t, result.FrameDir)
	entries, readErr := os.ReadDir(result.FrameDir)
	require.NoError(t, readErr)
	assert.Len(t, entries, 2)
	assert.Empty(t, result.MP4Path, "ffmpeg isn't available, so no mp4 is produced")
}

func TestMux_Empty(t *testing.T) {
	m := New(Config{Root: t.TempDir()})
	result, err := m.Mux(context.Background(), "sess-1", 0, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Result{}, result)
}

func TestMux_BaseNamingIsOneIndexed(t *testing.T) {
	m := New(Config{Root: t.TempDir()})
	audio := [][]byte{[]byte("a")}
	result, err := m.Mux(context.Background(), "sess-1", 2, audio, nil)
	require.NoError(t, err)
	assert.Equal(t, "sess-1_q3.wav", filepath.Base(result.WAVPath))
}

func TestWriteWAVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	require.NoError(t, writeWAVFile(path, []byte("pcmdata"), 16000))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, "WAVE", string(data[8:12]))
	assert.Equal(t, "pcmdata", string(data[wavHeaderSize:]))
}

func TestCheckFFmpegAvailable_NotFound(t *testing.T) {
	err := CheckFFmpegAvailable(context.Background(), "definitely-not-a-real-binary")
	assert.ErrorIs(t, err, ErrFFmpegNotFound)
}

func TestResizeFrame_OversizedImageIsShrunk(t *testing.T) {
	big := encodeTestJPEG(t, 2000, 1500)
	out := resizeFrame(big)

	decoded, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err, "resized frame must still be a valid JPEG")
	bounds := decoded.Bounds()
	assert.LessOrEqual(t, bounds.Dx(), media.DefaultMaxWidth)
	assert.LessOrEqual(t, bounds.Dy(), media.DefaultMaxHeight)
}

func TestResizeFrame_SmallImageUnchanged(t *testing.T) {
	small := encodeTestJPEG(t, 40, 30)
	out := resizeFrame(small)
	assert.Equal(t, small, out, "SkipIfSmaller leaves an already-small frame untouched")
}

func TestResizeFrame_NonImageBytesFallBackUnchanged(t *testing.T) {
	raw := []byte("not a jpeg at all")
	assert.Equal(t, raw, resizeFrame(raw))
}

func TestMux_WritesResizedFrames(t *testing.T) {
	m := New(Config{Root: t.TempDir()})
	frames := [][]byte{encodeTestJPEG(t, 2000, 1500)}

	result, err := m.Mux(context.Background(), "sess-1", 0, nil, frames)
	require.NoError(t, err)

	entries, err := os.ReadDir(result.FrameDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(result.FrameDir, entries[0].Name()))
	require.NoError(t, err)
	decoded, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.LessOrEqual(t, decoded.Bounds().Dx(), media.DefaultMaxWidth)
}

func encodeTestJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}
