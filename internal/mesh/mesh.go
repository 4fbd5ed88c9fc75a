// Package mesh is the client-side collaborator that keeps one peer
// connection per remote participant, reconciled against the authoritative
// session snapshots. Peers live in an arena keyed by participant id with
// explicit teardown on state change, so leaked media tracks cannot hide
// behind garbage collection and cleanup is unit-testable.
package mesh

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/emberchat/broadcast/internal/core"
	"github.com/emberchat/broadcast/internal/domain"
)

// Peer is one live connection to a remote participant.
type Peer interface {
	// Initiate creates and sends the initial (or renegotiation) offer.
	Initiate() error
	HandleOffer(payload json.RawMessage) error
	HandleAnswer(payload json.RawMessage) error
	AddCandidate(payload json.RawMessage) error
	Close()
}

// PeerFactory builds transport-backed peers; tests substitute fakes.
type PeerFactory interface {
	NewPeer(remote domain.UserID) (Peer, error)
}

// Controller reconciles the arena against the speaker/listener partition.
type Controller struct {
	self    domain.UserID
	factory PeerFactory

	mu    sync.Mutex
	arena map[domain.UserID]Peer
}

func NewController(self domain.UserID, factory PeerFactory) *Controller {
	return &Controller{
		self:    self,
		factory: factory,
		arena:   make(map[domain.UserID]Peer),
	}
}

// Reconcile brings the arena in line with a fresh snapshot: tear down
// peers that no longer belong, open and offer to ones newly needed. The
// transmitting side initiates toward each listener; between two
// transmitters the smaller id offers, which avoids glare.
func (c *Controller) Reconcile(snap core.Snapshot, online []domain.UserID) {
	desired := c.desiredRemotes(snap, online)

	c.mu.Lock()
	defer c.mu.Unlock()

	for remote, peer := range c.arena {
		if _, keep := desired[remote]; !keep {
			peer.Close()
			delete(c.arena, remote)
			log.Debug().Str("module", "mesh").Str("remote", string(remote)).Msg("peer torn down")
		}
	}

	for remote := range desired {
		if _, ok := c.arena[remote]; ok {
			continue
		}
		if !c.initiates(remote, snap) {
			// The remote side offers; our peer is created on its offer.
			continue
		}
		peer, err := c.factory.NewPeer(remote)
		if err != nil {
			log.Error().Err(err).Str("module", "mesh").Str("remote", string(remote)).Msg("peer create failed")
			continue
		}
		c.arena[remote] = peer
		if err := peer.Initiate(); err != nil {
			log.Error().Err(err).Str("module", "mesh").Str("remote", string(remote)).Msg("offer failed")
			peer.Close()
			delete(c.arena, remote)
		}
	}
}

// HandleSignal dispatches a relayed envelope to the matching peer. An
// offer for an unknown remote creates the answering side's peer.
func (c *Controller) HandleSignal(env domain.Envelope) error {
	c.mu.Lock()
	peer, ok := c.arena[env.From]
	if !ok {
		if env.Kind != domain.SignalOffer {
			c.mu.Unlock()
			log.Debug().Str("module", "mesh").Str("from", string(env.From)).
				Str("kind", string(env.Kind)).Msg("signal for unknown peer, dropped")
			return nil
		}
		var err error
		peer, err = c.factory.NewPeer(env.From)
		if err != nil {
			c.mu.Unlock()
			return err
		}
		c.arena[env.From] = peer
	}
	c.mu.Unlock()

	switch env.Kind {
	case domain.SignalOffer:
		return peer.HandleOffer(env.Payload)
	case domain.SignalAnswer:
		return peer.HandleAnswer(env.Payload)
	case domain.SignalIceCandidate:
		return peer.AddCandidate(env.Payload)
	}
	return nil
}

// Close tears down every peer. Used on leave and room switch.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for remote, peer := range c.arena {
		peer.Close()
		delete(c.arena, remote)
	}
}

// Peers returns the arena keys, for tests and diagnostics.
func (c *Controller) Peers() []domain.UserID {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.UserID, 0, len(c.arena))
	for id := range c.arena {
		out = append(out, id)
	}
	return out
}

// desiredRemotes computes who we should hold a connection to. A
// transmitter (host or speaker) connects to every other online
// participant; a listener connects only to transmitters.
func (c *Controller) desiredRemotes(snap core.Snapshot, online []domain.UserID) map[domain.UserID]struct{} {
	out := make(map[domain.UserID]struct{})
	if isTransmitter(c.self, snap) {
		for _, id := range online {
			if id != c.self {
				out[id] = struct{}{}
			}
		}
		return out
	}
	for _, id := range online {
		if id != c.self && isTransmitter(id, snap) {
			out[id] = struct{}{}
		}
	}
	return out
}

func (c *Controller) initiates(remote domain.UserID, snap core.Snapshot) bool {
	selfTx := isTransmitter(c.self, snap)
	remoteTx := isTransmitter(remote, snap)
	switch {
	case selfTx && !remoteTx:
		return true
	case selfTx && remoteTx:
		return c.self < remote
	default:
		return false
	}
}

func isTransmitter(uid domain.UserID, snap core.Snapshot) bool {
	if uid == snap.HostID && snap.HostID != "" {
		return true
	}
	return lo.Contains(snap.Speakers, uid)
}
