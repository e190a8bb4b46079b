//go:build linux

package beep

import (
	"sync"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"

	"notecard/log"
)

var (
	queue      = make(chan []int16, 4)
	playerOnce sync.Once
)

func play(mono []int16) {
	if len(mono) == 0 {
		return
	}
	playerOnce.Do(func() { go player() })
	select {
	case queue <- mono:
	default:
		// playback is backed up; drop the cue
	}
}

// player owns the pulse connection and plays queued cues one at a time. A
// failed playback drops the connection so the next cue reconnects.
func player() {
	var c *pulse.Client
	for mono := range queue {
		if c == nil {
			var err error
			c, err = pulse.NewClient(pulse.ClientApplicationName("notecard"))
			if err != nil {
				log.Debug("pulse playback unavailable: " + err.Error())
				c = nil
				continue
			}
		}
		if err := playOn(c, stereo(mono)); err != nil {
			log.Warnf("pulse playback error: %v", err)
			c.Close()
			c = nil
		}
	}
}

func playOn(c *pulse.Client, samples []int16) error {
	pos := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if pos >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[pos:])
		pos += n
		return n, nil
	})
	stream, err := c.NewPlayback(reader,
		pulse.PlaybackStereo,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.1),
		pulse.PlaybackRawOption(func(p *proto.CreatePlaybackStream) {
			p.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm), uint32(proto.VolumeNorm)}
		}),
	)
	if err != nil {
		return err
	}
	defer stream.Close()
	stream.Start()
	stream.Drain()
	stream.Stop()
	return stream.Error()
}
