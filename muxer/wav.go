package muxer

import (
	"encoding/binary"
	"fmt"
	"os"
)

const (
	wavChannels   = 1
	wavBitDepth   = 16
	wavHeaderSize = 44
)

// writeWAVFile writes pcm as a single-channel 16-bit little-endian WAV at
// the given sample rate (spec §4.C). No third-party WAV encoder exists in
// the teacher's stack or the rest of the pack — the canonical RIFF/WAVE
// header is ~44 fixed bytes, so a hand-rolled writer is the correct
// outlier here rather than a dependency (see DESIGN.md).
func writeWAVFile(path string, pcm []byte, sampleRate int) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("muxer: open wav file: %w", err)
	}
	defer f.Close()

	byteRate := sampleRate * wavChannels * wavBitDepth / 8
	blockAlign := wavChannels * wavBitDepth / 8
	dataSize := uint32(len(pcm))

	header := make([]byte, wavHeaderSize)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], 36+dataSize)
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(header[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(header[22:24], wavChannels)
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], wavBitDepth)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], dataSize)

	if _, err := f.Write(header); err != nil {
		return fmt.Errorf("muxer: write wav header: %w", err)
	}
	if _, err := f.Write(pcm); err != nil {
		return fmt.Errorf("muxer: write wav data: %w", err)
	}
	return nil
}
