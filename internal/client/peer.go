package client

import (
	"github.com/pion/webrtc/v4"

	"github.com/avrek/huddle/internal/core"
	"github.com/avrek/huddle/internal/domain"
)

// peer is one leg of the mesh: our connection toward a single remote
// participant, plus the candidate queue for it.
type peer struct {
	remote    domain.UserID
	transport core.PeerTransport

	// pending holds remote candidates that arrived before the remote
	// description. Flushed in arrival order, never applied early.
	pending   []webrtc.ICECandidateInit
	remoteSet bool

	// restarted is set after the first ICE restart attempt; a second
	// failure removes the peer instead of restarting again.
	restarted bool
}

func (p *peer) queueOrApply(ci webrtc.ICECandidateInit) error {
	if !p.remoteSet {
		p.pending = append(p.pending, ci)
		return nil
	}
	return p.transport.AddICECandidate(ci)
}

// flush applies queued candidates in order. Call only after the remote
// description is set.
func (p *peer) flush() error {
	for _, ci := range p.pending {
		if err := p.transport.AddICECandidate(ci); err != nil {
			return err
		}
	}
	p.pending = nil
	return nil
}
