package game

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Tnze/go-mc/bot"
	"github.com/Tnze/go-mc/bot/basic"
	"github.com/Tnze/go-mc/bot/playerlist"
	"github.com/Tnze/go-mc/chat"
	"github.com/Tnze/go-mc/data/packetid"
	pk "github.com/Tnze/go-mc/net/packet"
	"github.com/google/uuid"
)

// mcClient adapts a go-mc offline-mode client to the Client interface. One
// instance serves exactly one connection; the supervisor builds a fresh one
// per attempt.
//
// go-mc mutates the player list on the HandleGame goroutine only, so roster
// snapshots are taken there, right after the player-info packets, and copied
// into the guarded roster. Participants and Latency never touch the live map.
type mcClient struct {
	addr     string
	username string
	events   Events
	logger   *slog.Logger

	client *bot.Client
	player *basic.Player
	list   *playerlist.PlayerList

	mu        sync.Mutex
	roster    map[uuid.UUID]string
	latencyMs int
}

func NewClient(addr, username string, events Events, logger *slog.Logger) Client {
	return &mcClient{
		addr:      addr,
		username:  username,
		events:    events,
		logger:    logger,
		roster:    make(map[uuid.UUID]string),
		latencyMs: -1,
	}
}

func (c *mcClient) Connect(_ context.Context) error {
	c.client = bot.NewClient()
	c.client.Auth.Name = c.username

	c.player = basic.NewPlayer(c.client, basic.DefaultSettings, basic.EventsListener{
		GameStart: c.onGameStart,
		Disconnect: func(reason chat.Message) error {
			return &DisconnectError{Reason: reason.ClearString()}
		},
	})
	c.list = playerlist.New(c.client)

	// Snapshot the roster after the player list has applied each info packet.
	c.client.Events.AddListener(
		bot.PacketHandler{ID: packetid.ClientboundPlayerInfoUpdate, Priority: 100, F: c.onRosterPacket},
		bot.PacketHandler{ID: packetid.ClientboundPlayerInfoRemove, Priority: 100, F: c.onRosterPacket},
	)

	if err := c.client.JoinServer(c.addr); err != nil {
		return fmt.Errorf("joining %s as %s: %w", c.addr, c.username, err)
	}
	return nil
}

func (c *mcClient) onGameStart() error {
	if c.events.OnSpawn != nil {
		c.events.OnSpawn()
	}
	return nil
}

// Run drives the protocol loop until the connection ends.
func (c *mcClient) Run(_ context.Context) error {
	err := c.client.HandleGame()

	if c.events.OnEnd != nil {
		c.events.OnEnd(err)
	}
	return err
}

// onRosterPacket runs on the HandleGame goroutine, the only place go-mc
// mutates PlayerInfos, so reading the live map here is safe.
func (c *mcClient) onRosterPacket(_ pk.Packet) error {
	current := make(map[uuid.UUID]string, len(c.list.PlayerInfos))
	latency := -1
	for id, info := range c.list.PlayerInfos {
		current[id] = info.Name
		if info.Name == c.username {
			latency = int(info.Latency)
		}
	}
	c.applyRoster(current, latency)
	return nil
}

// applyRoster swaps in a fresh roster snapshot and fires join/leave callbacks
// for the delta. Our own entry never produces a callback.
func (c *mcClient) applyRoster(current map[uuid.UUID]string, latencyMs int) {
	c.mu.Lock()
	previous := c.roster
	c.roster = current
	c.latencyMs = latencyMs
	c.mu.Unlock()

	for id, name := range current {
		if _, ok := previous[id]; !ok && name != c.username {
			if c.events.OnJoin != nil {
				c.events.OnJoin(Participant{ID: id, Name: name})
			}
		}
	}
	for id, name := range previous {
		if _, ok := current[id]; !ok && name != c.username {
			if c.events.OnLeave != nil {
				c.events.OnLeave(Participant{ID: id, Name: name})
			}
		}
	}
}

func (c *mcClient) Participants() []Participant {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Participant, 0, len(c.roster))
	for id, name := range c.roster {
		out = append(out, Participant{ID: id, Name: name})
	}
	return out
}

func (c *mcClient) Latency() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latencyMs
}

func (c *mcClient) SwingArm() error {
	return c.client.Conn.WritePacket(pk.Marshal(
		packetid.ServerboundSwing,
		pk.VarInt(0), // main hand
	))
}

func (c *mcClient) Look(yaw, pitch float32) error {
	return c.client.Conn.WritePacket(pk.Marshal(
		packetid.ServerboundMovePlayerRot,
		pk.Float(yaw),
		pk.Float(pitch),
		pk.Boolean(true),
	))
}

func (c *mcClient) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
