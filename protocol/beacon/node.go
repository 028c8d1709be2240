package beacon

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	libp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	"github.com/rs/zerolog"
)

const (
	ServiceTag = "snake_duel"
	Topic      = "snake_duel/servers"
)

type discoveryNotifee struct {
	h   host.Host
	log zerolog.Logger
}

func (n *discoveryNotifee) HandlePeerFound(pi peer.AddrInfo) {
	if pi.ID == n.h.ID() {
		return
	}

	n.log.Debug().Str("peer", pi.ID.String()).Msg("Discovered peer")

	if err := n.h.Connect(context.Background(), pi); err != nil {
		n.log.Debug().Err(err).Str("peer", pi.ID.String()).Msg("Connect to peer")
	}
}

// Node is a libp2p host that finds its LAN neighbours over mDNS and shares
// the announcement topic with them.
type Node struct {
	h     host.Host
	mdns  mdns.Service
	topic *pubsub.Topic
	sub   *pubsub.Subscription

	log zerolog.Logger
}

func NewNode(ctx context.Context, listen string, log zerolog.Logger) (*Node, error) {
	if listen == "" {
		listen = "/ip4/0.0.0.0/tcp/0"
	}

	h, err := libp2p.New(libp2p.ListenAddrStrings(listen))
	if err != nil {
		return nil, fmt.Errorf("init libp2p host: %w", err)
	}

	log = log.With().Str("peer", h.ID().String()).Logger()

	disc := mdns.NewMdnsService(h, ServiceTag, &discoveryNotifee{h: h, log: log})
	if err := disc.Start(); err != nil {
		h.Close()
		return nil, fmt.Errorf("setup discovery: %w", err)
	}

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		disc.Close()
		h.Close()
		return nil, fmt.Errorf("enable pubsub: %w", err)
	}

	topic, err := ps.Join(Topic)
	if err != nil {
		disc.Close()
		h.Close()
		return nil, fmt.Errorf("join topic %s: %w", Topic, err)
	}

	sub, err := topic.Subscribe()
	if err != nil {
		topic.Close()
		disc.Close()
		h.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", Topic, err)
	}

	log.Info().Strs("addrs", addrStrings(h)).Msg("LAN node listening")

	return &Node{
		h:     h,
		mdns:  disc,
		topic: topic,
		sub:   sub,
		log:   log,
	}, nil
}

func addrStrings(h host.Host) []string {
	addrs := make([]string, 0, len(h.Addrs()))
	for _, a := range h.Addrs() {
		addrs = append(addrs, a.String())
	}

	return addrs
}

func (n *Node) ID() string {
	return n.h.ID().String()
}

func (n *Node) Publish(ctx context.Context, data []byte) error {
	return n.topic.Publish(ctx, data)
}

// Next blocks until a message from another peer arrives.
func (n *Node) Next(ctx context.Context) (string, []byte, error) {
	for {
		msg, err := n.sub.Next(ctx)
		if err != nil {
			return "", nil, fmt.Errorf("receive next message: %w", err)
		}

		if msg.GetFrom() == n.h.ID() {
			continue
		}

		return msg.GetFrom().String(), msg.Data, nil
	}
}

func (n *Node) Close() error {
	var result error

	n.sub.Cancel()

	if err := n.topic.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close topic: %w", err))
	}

	if err := n.mdns.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close discovery: %w", err))
	}

	if err := n.h.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close host: %w", err))
	}

	return result
}
