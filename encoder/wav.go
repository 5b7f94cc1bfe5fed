package encoder

import (
	"bytes"
	"encoding/binary"
)

// WavEncoder buffers PCM16 and emits a canonical 44-byte-header RIFF file on Close.
type WavEncoder struct {
	pcm         bytes.Buffer
	out         []byte
	sampleRate  uint32
	totalFrames uint64
}

func NewWav(sampleRate int) *WavEncoder {
	if sampleRate <= 0 {
		sampleRate = SampleRate
	}
	return &WavEncoder{sampleRate: uint32(sampleRate)}
}

func (e *WavEncoder) EncodeBlock(block []int16) error {
	if err := binary.Write(&e.pcm, binary.LittleEndian, block); err != nil {
		return err
	}
	e.totalFrames += uint64(len(block))
	return nil
}

func (e *WavEncoder) Close() error {
	dataLen := uint32(e.pcm.Len())
	byteRate := e.sampleRate * Channels * BitsPerSample / 8

	var hdr bytes.Buffer
	hdr.WriteString("RIFF")
	binary.Write(&hdr, binary.LittleEndian, 36+dataLen)
	hdr.WriteString("WAVEfmt ")
	binary.Write(&hdr, binary.LittleEndian, uint32(16))
	binary.Write(&hdr, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&hdr, binary.LittleEndian, uint16(Channels))
	binary.Write(&hdr, binary.LittleEndian, e.sampleRate)
	binary.Write(&hdr, binary.LittleEndian, byteRate)
	binary.Write(&hdr, binary.LittleEndian, uint16(Channels*BitsPerSample/8))
	binary.Write(&hdr, binary.LittleEndian, uint16(BitsPerSample))
	hdr.WriteString("data")
	binary.Write(&hdr, binary.LittleEndian, dataLen)

	e.out = append(hdr.Bytes(), e.pcm.Bytes()...)
	return nil
}

func (e *WavEncoder) Bytes() []byte       { return e.out }
func (e *WavEncoder) TotalFrames() uint64 { return e.totalFrames }
func (e *WavEncoder) Format() string      { return "wav" }
func (e *WavEncoder) ContentType() string { return "audio/wav" }
