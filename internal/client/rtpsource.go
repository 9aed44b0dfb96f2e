package client

import (
	"math/rand"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/avrek/huddle/internal/domain"
)

const (
	opusClockRate = 48000
	vp8ClockRate  = 90000
	packetEvery   = 20 * time.Millisecond
)

// SyntheticSource generates silent/blank RTP so headless clients (load
// tests, bots) can hold real calls without capture hardware.
type SyntheticSource struct {
	audio *webrtc.TrackLocalStaticRTP
	video *webrtc.TrackLocalStaticRTP

	stopOnce sync.Once
	stop     chan struct{}
	done     sync.WaitGroup
}

// NewSyntheticSource builds a source matching kind: opus audio always,
// VP8 video when kind is video. Packet pumps start immediately.
func NewSyntheticSource(kind domain.MediaKind) (*SyntheticSource, error) {
	audio, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: opusClockRate, Channels: 2},
		"audio", "huddle-synth")
	if err != nil {
		return nil, err
	}

	s := &SyntheticSource{audio: audio, stop: make(chan struct{})}

	if kind == domain.MediaVideo {
		video, err := webrtc.NewTrackLocalStaticRTP(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: vp8ClockRate},
			"video", "huddle-synth")
		if err != nil {
			return nil, err
		}
		s.video = video
	}

	s.done.Add(1)
	go s.pump(s.audio, 96, opusClockRate)
	if s.video != nil {
		s.done.Add(1)
		go s.pump(s.video, 97, vp8ClockRate)
	}
	return s, nil
}

// NewSyntheticScreenSource is a video-only source standing in for a
// screen capture.
func NewSyntheticScreenSource() (*SyntheticSource, error) {
	video, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: vp8ClockRate},
		"screen", "huddle-synth")
	if err != nil {
		return nil, err
	}
	s := &SyntheticSource{video: video, stop: make(chan struct{})}
	s.done.Add(1)
	go s.pump(s.video, 97, vp8ClockRate)
	return s, nil
}

func (s *SyntheticSource) pump(track *webrtc.TrackLocalStaticRTP, payloadType uint8, clockRate uint32) {
	defer s.done.Done()

	seq := uint16(rand.Uint32())
	ts := rand.Uint32()
	ssrc := rand.Uint32()
	step := uint32(uint64(clockRate) * uint64(packetEvery) / uint64(time.Second))
	payload := make([]byte, 16)

	ticker := time.NewTicker(packetEvery)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			pkt := &rtp.Packet{
				Header: rtp.Header{
					Version:        2,
					PayloadType:    payloadType,
					SequenceNumber: seq,
					Timestamp:      ts,
					SSRC:           ssrc,
				},
				Payload: payload,
			}
			// ErrClosedPipe just means no peer is bound yet.
			_ = track.WriteRTP(pkt)
			seq++
			ts += step
		}
	}
}

func (s *SyntheticSource) Tracks() []webrtc.TrackLocal {
	var out []webrtc.TrackLocal
	if s.audio != nil {
		out = append(out, s.audio)
	}
	if s.video != nil {
		out = append(out, s.video)
	}
	return out
}

func (s *SyntheticSource) VideoTrack() webrtc.TrackLocal {
	if s.video == nil {
		return nil
	}
	return s.video
}

func (s *SyntheticSource) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.done.Wait()
	return nil
}
