package recording

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveExtensionWins(t *testing.T) {
	resolver := NewMimeResolver()

	assert.Equal(t, "audio/mpeg", resolver.Resolve(TypeAudio, "morning-chorus.mp3"))
	assert.Equal(t, "audio/mp4", resolver.Resolve(TypeAudio, "clip.m4a"))
	assert.Equal(t, "audio/wav", resolver.Resolve(TypeThermalRaw, "oddly-named.wav"))
}

func TestResolveExtensionIsCaseInsensitive(t *testing.T) {
	resolver := NewMimeResolver()

	assert.Equal(t, "audio/mpeg", resolver.Resolve(TypeAudio, "SHOUTING.MP3"))
}

func TestResolveFallsBackToTypeDefault(t *testing.T) {
	resolver := NewMimeResolver()

	assert.Equal(t, "application/x-cptv", resolver.Resolve(TypeThermalRaw, "clip.cptv"))
	assert.Equal(t, "application/x-cptv", resolver.Resolve(TypeThermalRaw, "no-extension"))
	assert.Equal(t, "audio/mpeg", resolver.Resolve(TypeAudio, "recording.raw"))
}

func TestResolveUnknownTypeAndExtension(t *testing.T) {
	resolver := NewMimeResolver()

	assert.Equal(t, "application/octet-stream", resolver.Resolve("video", "mystery.xyz"))
	assert.Equal(t, "application/octet-stream", resolver.Resolve("", ""))
}
