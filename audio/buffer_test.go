package audio

import (
	"math"
	"sync"
	"testing"
	"time"
)

func ramp(start, n int) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = int16(start + i)
	}
	return s
}

func TestAppendTrimKeepsNewest(t *testing.T) {
	const w = 10
	b := NewSampleBuffer(w, 100)

	if trimmed := b.Append(ramp(0, 15)); trimmed != 0 {
		t.Fatalf("trimmed = %d, want 0", trimmed)
	}
	// 15 + 10 = 25 > 2w, keep last w
	if trimmed := b.Append(ramp(15, 10)); trimmed != 15 {
		t.Fatalf("trimmed = %d, want 15", trimmed)
	}
	if b.Len() != w {
		t.Fatalf("Len() = %d, want %d", b.Len(), w)
	}
	win, ok := b.TryExtractWindow()
	if !ok {
		t.Fatal("expected window")
	}
	if win.Samples[0] != 15 || win.Samples[w-1] != 24 {
		t.Errorf("window = %v, want samples 15..24", win.Samples)
	}
	if win.StartSample != 15 {
		t.Errorf("StartSample = %d, want 15", win.StartSample)
	}
}

func TestAppendNeverExceedsTwiceWindow(t *testing.T) {
	const w = 8
	b := NewSampleBuffer(w, 100)
	for _, n := range []int{1, 3, 7, 16, 17, 40, 2, 100} {
		b.Append(ramp(0, n))
		if b.Len() > 2*w {
			t.Fatalf("after append of %d, Len() = %d > %d", n, b.Len(), 2*w)
		}
	}
}

func TestAppendExactlyTwiceWindowNotTrimmed(t *testing.T) {
	b := NewSampleBuffer(5, 100)
	if trimmed := b.Append(ramp(0, 10)); trimmed != 0 {
		t.Errorf("trimmed = %d, want 0", trimmed)
	}
	if b.Len() != 10 {
		t.Errorf("Len() = %d, want 10", b.Len())
	}
}

func TestTryExtractWindow(t *testing.T) {
	for _, tt := range []struct {
		name     string
		buffered int
		want     bool
	}{
		{"empty", 0, false},
		{"one short", 9, false},
		{"exact", 10, true},
		{"over", 14, true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			b := NewSampleBuffer(10, 100)
			b.Append(ramp(0, tt.buffered))
			win, ok := b.TryExtractWindow()
			if ok != tt.want {
				t.Fatalf("ok = %v, want %v", ok, tt.want)
			}
			if !ok {
				if b.Len() != tt.buffered {
					t.Errorf("Len() = %d, want %d untouched", b.Len(), tt.buffered)
				}
				return
			}
			if len(win.Samples) != 10 {
				t.Errorf("len(Samples) = %d, want 10", len(win.Samples))
			}
			if b.Len() != 0 {
				t.Errorf("Len() after extract = %d, want 0", b.Len())
			}
		})
	}
}

func TestPushAssignsIndexAndOffset(t *testing.T) {
	const rate = 100
	b := NewSampleBuffer(rate, rate) // 1s windows
	var got []Window
	now := time.Now()
	for i := 0; i < 3; i++ {
		win, ok, d := b.Push(ramp(0, rate), now)
		if !ok {
			t.Fatalf("push %d: expected a window", i)
		}
		if d.Trimmed != 0 || d.Remainder != 0 {
			t.Errorf("push %d: discard = %+v, want none", i, d)
		}
		got = append(got, win)
	}
	for i, w := range got {
		if w.Index != i {
			t.Errorf("window %d: Index = %d", i, w.Index)
		}
		if w.Start() != float64(i) {
			t.Errorf("window %d: Start() = %v, want %d", i, w.Start(), i)
		}
		if w.Duration() != time.Second {
			t.Errorf("window %d: Duration() = %v", i, w.Duration())
		}
	}
}

func TestPushReportsRemainder(t *testing.T) {
	b := NewSampleBuffer(10, 100)
	b.Push(ramp(0, 6), time.Now())
	win, ok, d := b.Push(ramp(6, 6), time.Now())
	if !ok {
		t.Fatal("expected a window")
	}
	if d.Remainder != 2 {
		t.Errorf("Remainder = %d, want 2", d.Remainder)
	}
	if win.Samples[9] != 9 {
		t.Errorf("last sample = %d, want 9 (oldest samples form the window)", win.Samples[9])
	}
	if b.Len() != 0 {
		t.Errorf("Len() = %d, want 0", b.Len())
	}

	// next window starts after the discarded remainder
	next, ok, _ := b.Push(ramp(12, 10), time.Now())
	if !ok || next.StartSample != 12 {
		t.Errorf("next StartSample = %d (ok=%v), want 12", next.StartSample, ok)
	}
}

// Windows start at the stream position of their first sample, so a
// discarded remainder pushes later windows past index × window length.
func TestWindowStartFollowsStreamPosition(t *testing.T) {
	const (
		rate  = 16000
		size  = 5 * rate
		block = 1024
	)
	b := NewSampleBuffer(size, rate)

	var starts []float64
	var pos int64
	for len(starts) < 3 {
		win, ok, _ := b.Push(make([]int16, block), time.Now())
		pos += block
		if ok {
			starts = append(starts, win.Start())
		}
	}

	// 79 blocks complete a window and leave 896 samples behind
	want := []float64{0, 5.056, 10.112}
	for i, w := range want {
		if math.Abs(starts[i]-w) > 1e-9 {
			t.Errorf("window %d Start() = %.4f, want %.4f", i, starts[i], w)
		}
	}
	if pos != 3*79*block {
		t.Errorf("consumed %d samples, want %d", pos, 3*79*block)
	}
}

func TestPushConcurrent(t *testing.T) {
	b := NewSampleBuffer(64, 16000)
	var wg sync.WaitGroup
	var mu sync.Mutex
	windows := 0
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if _, ok, _ := b.Push(ramp(0, 16), time.Now()); ok {
					mu.Lock()
					windows++
					mu.Unlock()
				}
				if n := b.Len(); n > 128 {
					t.Errorf("Len() = %d > 128", n)
				}
			}
		}()
	}
	wg.Wait()
	// 8*100*16 samples in 64-sample windows, no trimming possible
	if windows != 200 {
		t.Errorf("windows = %d, want 200", windows)
	}
}
