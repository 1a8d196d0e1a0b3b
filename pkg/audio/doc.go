// Package audio is an umbrella for the audio processing sub-packages:
//
//   - pcm: raw 16-bit PCM format math and sample conversion
//   - wav: RIFF/WAVE container encoding and decoding
//   - resample: rate and channel conversion between PCM formats
//   - envelope: the six-phase show volume envelope
//   - mix: speech/jingle mixing and loudness leveling
package audio
