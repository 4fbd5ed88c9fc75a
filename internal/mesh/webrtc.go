package mesh

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/emberchat/broadcast/internal/domain"
)

// Signaler carries envelopes back through the signaling transport.
type Signaler interface {
	Send(env domain.Envelope) error
}

// WebRTCFactory builds pion-backed peers using the externally configured
// ICE servers.
type WebRTCFactory struct {
	Cfg      webrtc.Configuration
	Self     domain.UserID
	RoomID   domain.RoomID
	Signaler Signaler
}

func (f *WebRTCFactory) NewPeer(remote domain.UserID) (Peer, error) {
	pc, err := webrtc.NewPeerConnection(f.Cfg)
	if err != nil {
		return nil, err
	}
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio); err != nil {
		_ = pc.Close()
		return nil, err
	}

	p := &webrtcPeer{
		pc:       pc,
		self:     f.Self,
		remote:   remote,
		roomID:   f.RoomID,
		signaler: f.Signaler,
	}

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		payload, err := json.Marshal(cand.ToJSON())
		if err != nil {
			return
		}
		p.send(domain.SignalIceCandidate, payload)
	})

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "mesh.webrtc").Str("remote", string(remote)).
			Str("ice_state", s.String()).Msg("ICE state")
	})

	return p, nil
}

type webrtcPeer struct {
	pc       *webrtc.PeerConnection
	self     domain.UserID
	remote   domain.UserID
	roomID   domain.RoomID
	signaler Signaler
}

func (p *webrtcPeer) Initiate() error {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return err
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return err
	}
	payload, err := json.Marshal(offer)
	if err != nil {
		return err
	}
	p.send(domain.SignalOffer, payload)
	return nil
}

func (p *webrtcPeer) HandleOffer(payload json.RawMessage) error {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(payload, &offer); err != nil {
		return err
	}
	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return err
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return err
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return err
	}
	out, err := json.Marshal(answer)
	if err != nil {
		return err
	}
	p.send(domain.SignalAnswer, out)
	return nil
}

func (p *webrtcPeer) HandleAnswer(payload json.RawMessage) error {
	var answer webrtc.SessionDescription
	if err := json.Unmarshal(payload, &answer); err != nil {
		return err
	}
	return p.pc.SetRemoteDescription(answer)
}

func (p *webrtcPeer) AddCandidate(payload json.RawMessage) error {
	var cand webrtc.ICECandidateInit
	if err := json.Unmarshal(payload, &cand); err != nil {
		return err
	}
	return p.pc.AddICECandidate(cand)
}

func (p *webrtcPeer) Close() {
	if err := p.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "mesh.webrtc").Str("remote", string(p.remote)).Msg("close error")
	}
}

func (p *webrtcPeer) send(kind domain.SignalKind, payload json.RawMessage) {
	err := p.signaler.Send(domain.Envelope{
		RoomID:  p.roomID,
		From:    p.self,
		To:      p.remote,
		Kind:    kind,
		Payload: payload,
	})
	if err != nil {
		log.Warn().Err(err).Str("module", "mesh.webrtc").Str("remote", string(p.remote)).Msg("signal send failed")
	}
}
