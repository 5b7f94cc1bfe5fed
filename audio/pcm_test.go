package audio

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestPCMRoundTrip(t *testing.T) {
	in := []int16{0, 1, -1, 12345, -32768, 32767}
	if got := BytesToInt16(Int16ToBytes(in)); !equalInt16(got, in) {
		t.Errorf("bytes round trip = %v, want %v", got, in)
	}
	if got := Float32ToInt16(Int16ToFloat32(in)); !equalInt16(got, in) {
		t.Errorf("float round trip = %v, want %v", got, in)
	}
}

func TestFloat32ToInt16Clamps(t *testing.T) {
	got := Float32ToInt16([]float32{2, -2})
	if got[0] != math.MaxInt16 || got[1] != math.MinInt16 {
		t.Errorf("got %v", got)
	}
}

func TestRMS(t *testing.T) {
	if RMS(nil) != 0 {
		t.Error("RMS(nil) != 0")
	}
	if got := RMS([]int16{16384, -16384}); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("RMS = %v, want 0.5", got)
	}
}

func TestApplyGain(t *testing.T) {
	for _, tt := range []struct {
		in   int16
		gain float64
		want int16
	}{
		{100, 0, 100},
		{100, 1, 100},
		{100, 2, 200},
		{20000, 2, 32767},
		{-20000, 2, -32768},
	} {
		if got := applyGain(tt.in, tt.gain); got != tt.want {
			t.Errorf("applyGain(%d, %v) = %d, want %d", tt.in, tt.gain, got, tt.want)
		}
	}
}

type listContext struct {
	FakeContext
	devices []DeviceInfo
}

func (l *listContext) Devices() ([]DeviceInfo, error) { return l.devices, nil }

func TestFindDevice(t *testing.T) {
	ctx := &listContext{devices: []DeviceInfo{
		{ID: "1", Name: "Built-in Microphone"},
		{ID: "2", Name: "USB Audio Device"},
	}}

	d, err := FindDevice(ctx, "usb")
	if err != nil || d == nil || d.ID != "2" {
		t.Fatalf("FindDevice(usb) = %v, %v", d, err)
	}

	d, err = FindDevice(ctx, "")
	if err != nil || d != nil {
		t.Errorf("empty query = %v, %v; want default", d, err)
	}

	_, err = FindDevice(ctx, "webcam")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("err = %v, want ErrDeviceNotFound", err)
	}
	if !strings.Contains(err.Error(), "Built-in Microphone") {
		t.Errorf("error should list available devices: %v", err)
	}
}

func TestFakeCaptureDeliversAll(t *testing.T) {
	samples := ramp(0, 5000)
	ctx := NewFakeContextPCM(samples, 1024, false)
	dev, err := ctx.NewCapture(nil, CaptureConfig{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatal(err)
	}
	var got []int16
	dev.SetCallback(func(data []byte, frames uint32) {
		if int(frames) != len(data)/2 {
			t.Errorf("frames = %d, bytes = %d", frames, len(data))
		}
		got = append(got, BytesToInt16(data)...)
	})
	if err := dev.Start(); err != nil {
		t.Fatal(err)
	}
	<-dev.(*FakeCapture).AudioDone()
	dev.Close()
	if !equalInt16(got, samples) {
		t.Errorf("delivered %d samples, want %d", len(got), len(samples))
	}
}

func equalInt16(a, b []int16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
