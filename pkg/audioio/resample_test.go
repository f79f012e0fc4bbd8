package audioio

import (
	"math"
	"testing"
)

func TestResample(t *testing.T) {
	tests := []struct {
		name     string
		in       int
		from, to int
		wantLen  int
	}{
		{"same rate", 5, 24000, 24000, 5},
		{"downsample 2x", 960, 48000, 24000, 480},
		{"upsample 2x", 480, 24000, 48000, 960},
		{"upsample 1.5x", 320, 16000, 24000, 480},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := make([]int16, tt.in)
			for i := range samples {
				samples[i] = int16(i)
			}
			if got := len(Resample(samples, tt.from, tt.to)); got != tt.wantLen {
				t.Errorf("len = %d, want %d", got, tt.wantLen)
			}
		})
	}
}

func TestResampleInterpolates(t *testing.T) {
	out := Resample([]int16{0, 100, 200}, 24000, 48000)
	if out[0] != 0 || out[1] != 50 || out[2] != 100 {
		t.Errorf("out = %v", out[:3])
	}
}

func TestResampleEmpty(t *testing.T) {
	if len(Resample(nil, 24000, 48000)) != 0 {
		t.Error("expected empty result for nil input")
	}
}

func TestBytesRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768}
	back := BytesToSamples(SamplesToBytes(samples))
	for i := range samples {
		if back[i] != samples[i] {
			t.Errorf("sample %d = %d, want %d", i, back[i], samples[i])
		}
	}
}

func TestStereoToMono(t *testing.T) {
	mono := StereoToMono([]int16{100, 300, -50, 50})
	if len(mono) != 2 || mono[0] != 200 || mono[1] != 0 {
		t.Errorf("mono = %v", mono)
	}
}

func TestRMSAndPeak(t *testing.T) {
	if RMS(nil) != 0 || RMS(make([]int16, 100)) != 0 {
		t.Error("silence should have zero RMS")
	}

	square := make([]int16, 100)
	for i := range square {
		square[i] = 16384
		if i%2 == 1 {
			square[i] = -16384
		}
	}
	if got := RMS(square); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("RMS = %v, want 0.5", got)
	}
	if got := Peak(square); got != 0.5 {
		t.Errorf("Peak = %v, want 0.5", got)
	}
}

func BenchmarkResample_2x(b *testing.B) {
	samples := make([]int16, 480)
	for i := 0; i < b.N; i++ {
		Resample(samples, 24000, 48000)
	}
}
