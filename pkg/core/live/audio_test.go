package live

import (
	"math"
	"testing"
)

// pcmFrame builds n little-endian 16-bit samples of the given value.
func pcmFrame(sample int16, n int) []byte {
	buf := make([]byte, 0, n*2)
	for i := 0; i < n; i++ {
		buf = append(buf, byte(uint16(sample)), byte(uint16(sample)>>8))
	}
	return buf
}

func TestRMSEnergy_Empty(t *testing.T) {
	if got := RMSEnergy(nil); got != 0 {
		t.Fatalf("RMSEnergy(nil)=%v, want 0", got)
	}
	if got := RMSEnergy([]byte{0x7f}); got != 0 {
		t.Fatalf("RMSEnergy(odd byte)=%v, want 0", got)
	}
}

func TestRMSEnergy_Silence(t *testing.T) {
	if got := RMSEnergy(pcmFrame(0, 160)); got != 0 {
		t.Fatalf("RMSEnergy(silence)=%v, want 0", got)
	}
}

func TestRMSEnergy_ConstantAmplitude(t *testing.T) {
	// Constant 0x4000 samples normalize to 0.5, so RMS is exactly 0.5.
	got := RMSEnergy(pcmFrame(0x4000, 160))
	if math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("RMSEnergy=%v, want 0.5", got)
	}
}

func TestRMSEnergy_IgnoresTrailingOddByte(t *testing.T) {
	frame := append(pcmFrame(0x4000, 10), 0xff)
	got := RMSEnergy(frame)
	if math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("RMSEnergy=%v, want 0.5", got)
	}
}

func TestPeakAmplitude(t *testing.T) {
	if got := PeakAmplitude(nil); got != 0 {
		t.Fatalf("PeakAmplitude(nil)=%v, want 0", got)
	}

	frame := pcmFrame(0, 8)
	frame = append(frame, pcmFrame(-32768, 1)...)
	got := PeakAmplitude(frame)
	if math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("PeakAmplitude=%v, want 1.0", got)
	}
}

func TestAudioConfig_DurationMs(t *testing.T) {
	cfg := DefaultOutputAudioConfig() // 24kHz mono s16le = 48000 B/s
	if got := cfg.DurationMs(4800); got != 100 {
		t.Fatalf("DurationMs(4800)=%d, want 100", got)
	}
	if got := (AudioConfig{}).DurationMs(4800); got != 0 {
		t.Fatalf("DurationMs on zero config=%d, want 0", got)
	}
}

func TestAudioConfig_MIMEType(t *testing.T) {
	if got := DefaultInputAudioConfig().MIMEType(); got != "audio/pcm;rate=16000" {
		t.Fatalf("MIMEType=%q, want audio/pcm;rate=16000", got)
	}
}
