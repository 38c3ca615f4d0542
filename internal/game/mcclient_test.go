package game

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMCClient(events Events) *mcClient {
	return &mcClient{
		addr:      "localhost:25565",
		username:  "Lurker482",
		events:    events,
		logger:    slog.Default(),
		roster:    make(map[uuid.UUID]string),
		latencyMs: -1,
	}
}

func snapshot(names ...string) map[uuid.UUID]string {
	out := make(map[uuid.UUID]string, len(names))
	for _, n := range names {
		out[uuid.NewSHA1(uuid.NameSpaceOID, []byte(n))] = n
	}
	return out
}

func TestApplyRosterFiresJoinAndLeave(t *testing.T) {
	var mu sync.Mutex
	var joined, left []string
	c := testMCClient(Events{
		OnJoin: func(p Participant) {
			mu.Lock()
			joined = append(joined, p.Name)
			mu.Unlock()
		},
		OnLeave: func(p Participant) {
			mu.Lock()
			left = append(left, p.Name)
			mu.Unlock()
		},
	})

	c.applyRoster(snapshot("Lurker482", "Notch"), 42)
	c.applyRoster(snapshot("Lurker482"), 42)

	require.Equal(t, []string{"Notch"}, joined)
	require.Equal(t, []string{"Notch"}, left)
}

func TestApplyRosterSkipsOwnIdentity(t *testing.T) {
	var joined int
	c := testMCClient(Events{
		OnJoin: func(Participant) { joined++ },
	})

	c.applyRoster(snapshot("Lurker482"), 17)
	c.applyRoster(snapshot(), -1)

	assert.Zero(t, joined)
}

func TestLatencyTracksOwnEntry(t *testing.T) {
	c := testMCClient(Events{})

	assert.Equal(t, -1, c.Latency())

	c.applyRoster(snapshot("Lurker482", "miner_42"), 73)
	assert.Equal(t, 73, c.Latency())

	c.applyRoster(snapshot("miner_42"), -1)
	assert.Equal(t, -1, c.Latency())
}

func TestParticipantsReturnsCopy(t *testing.T) {
	c := testMCClient(Events{})
	c.applyRoster(snapshot("Lurker482", "Notch", "miner_42"), 10)

	got := c.Participants()
	require.Len(t, got, 3)

	got[0].Name = "mangled"
	names := make(map[string]bool)
	for _, p := range c.Participants() {
		names[p.Name] = true
	}
	assert.False(t, names["mangled"])
}

// Roster snapshots land on the packet-handling goroutine while the supervisor
// and the evasion monitor read from their own. The guarded copy keeps the two
// sides apart; this fails under the race detector if either read touches
// shared state unguarded.
func TestRosterReadsSafeDuringUpdates(t *testing.T) {
	c := testMCClient(Events{
		OnJoin:  func(Participant) {},
		OnLeave: func(Participant) {},
	})

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		rosters := []map[uuid.UUID]string{
			snapshot("Lurker482", "Notch"),
			snapshot("Lurker482"),
			snapshot("Lurker482", "miner_42", "EpicGamer"),
		}
		for i := 0; i < 500; i++ {
			c.applyRoster(rosters[i%len(rosters)], i%200)
		}
		close(done)
	}()

	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				_ = c.Participants()
				_ = c.Latency()
			}
		}
	}()

	wg.Wait()
}
