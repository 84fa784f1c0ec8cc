package rowan

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/flac"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"
)

// AudioTrack is a loaded audio resource. Buffered tracks hold decoded PCM
// and hand out cheap independent streamers; streaming tracks keep the
// compressed bytes and decode on every Streamer call, trading CPU for
// memory on long music files.
type AudioTrack struct {
	Name   string
	Format beep.Format

	samples int
	buf     *beep.Buffer
	data    []byte
	ext     string
}

// decodeAudio builds a track from compressed bytes. The container is
// picked by file extension; decoding always runs once up front so a
// corrupt file fails at load, not at first play.
func decodeAudio(name, ext string, data []byte, stream bool) (*AudioTrack, error) {
	s, format, err := decodeAudioStream(ext, data)
	if err != nil {
		return nil, err
	}
	t := &AudioTrack{Name: name, Format: format, samples: s.Len(), ext: ext}
	if stream {
		s.Close()
		t.data = data
		return t, nil
	}
	buf := beep.NewBuffer(format)
	buf.Append(s)
	s.Close()
	t.buf = buf
	return t, nil
}

func decodeAudioStream(ext string, data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	rc := io.NopCloser(bytes.NewReader(data))
	switch strings.ToLower(ext) {
	case ".wav":
		s, f, err := wav.Decode(rc)
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("%w: wav audio: %v", ErrParse, err)
		}
		return s, f, nil
	case ".ogg", ".oga":
		s, f, err := vorbis.Decode(rc)
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("%w: vorbis audio: %v", ErrParse, err)
		}
		return s, f, nil
	case ".flac":
		s, f, err := flac.Decode(rc)
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("%w: flac audio: %v", ErrParse, err)
		}
		return s, f, nil
	case ".mp3":
		s, f, err := mp3.Decode(rc)
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("%w: mp3 audio: %v", ErrParse, err)
		}
		return s, f, nil
	}
	return nil, beep.Format{}, fmt.Errorf("%w: audio container %q", ErrUnsupportedFormat, ext)
}

// Streamer returns a fresh streamer positioned at the start of the track.
// Buffered tracks share the decoded PCM; streaming tracks decode anew, so
// concurrent streamers never interfere.
func (t *AudioTrack) Streamer() (beep.Streamer, error) {
	if t.buf != nil {
		return t.buf.Streamer(0, t.buf.Len()), nil
	}
	s, _, err := decodeAudioStream(t.ext, t.data)
	return s, err
}

// Buffered reports whether the track was fully decoded at load time.
func (t *AudioTrack) Buffered() bool {
	return t.buf != nil
}

// Len returns the track length in samples.
func (t *AudioTrack) Len() int {
	return t.samples
}

// Duration returns the track length in wall time.
func (t *AudioTrack) Duration() time.Duration {
	return t.Format.SampleRate.D(t.samples)
}
