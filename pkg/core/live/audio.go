package live

import (
	"math"
	"strconv"
)

// RMSEnergy computes the root-mean-square energy of PCM audio.
// Input is 16-bit signed little-endian PCM; a trailing odd byte is ignored.
// Returns a value between 0.0 and 1.0. Empty input returns 0.
func RMSEnergy(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0
	}

	var sum float64
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int16(pcm[i]) | int16(pcm[i+1])<<8
		normalized := float64(sample) / 32768.0
		sum += normalized * normalized
	}

	return math.Sqrt(sum / float64(samples))
}

// PeakAmplitude returns the maximum absolute sample amplitude in the PCM
// data, normalized to 0.0..1.0.
func PeakAmplitude(pcm []byte) float64 {
	var maxAbs float64
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int16(pcm[i]) | int16(pcm[i+1])<<8
		// float64 to avoid overflow when negating -32768
		abs := math.Abs(float64(sample))
		if abs > maxAbs {
			maxAbs = abs
		}
	}
	return maxAbs / 32768.0
}

// AudioConfig specifies the PCM format exchanged with clients and providers.
type AudioConfig struct {
	// SampleRate in Hz. Clients send 16000, Gemini Live emits 24000.
	SampleRate int `json:"sample_rate"`

	// Channels: 1 for mono.
	Channels int `json:"channels"`

	// BitsPerSample: 16 for PCM s16le.
	BitsPerSample int `json:"bits_per_sample"`
}

// DefaultInputAudioConfig is the client microphone format.
func DefaultInputAudioConfig() AudioConfig {
	return AudioConfig{SampleRate: 16000, Channels: 1, BitsPerSample: 16}
}

// DefaultOutputAudioConfig is the provider synthesis format.
func DefaultOutputAudioConfig() AudioConfig {
	return AudioConfig{SampleRate: 24000, Channels: 1, BitsPerSample: 16}
}

// BytesPerSecond returns the audio byte rate.
func (c AudioConfig) BytesPerSecond() int {
	return c.SampleRate * c.Channels * (c.BitsPerSample / 8)
}

// DurationMs returns the playback duration in milliseconds for byte count n.
func (c AudioConfig) DurationMs(n int) int {
	if c.BytesPerSecond() == 0 {
		return 0
	}
	return (n * 1000) / c.BytesPerSecond()
}

// MIMEType returns the PCM mime string Gemini Live expects for this format.
func (c AudioConfig) MIMEType() string {
	if c.SampleRate == 0 {
		return "audio/pcm"
	}
	return "audio/pcm;rate=" + strconv.Itoa(c.SampleRate)
}
