package game

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Tnze/go-mc/bot"
	"github.com/google/uuid"
)

// ServerStatus is the subset of the status response the monitors care about:
// who is online right now and how fast the server answered.
type ServerStatus struct {
	Online  int
	Max     int
	Sample  []Participant
	Latency time.Duration
}

type statusPayload struct {
	Players struct {
		Online int `json:"online"`
		Max    int `json:"max"`
		Sample []struct {
			Name string `json:"name"`
			ID   string `json:"id"`
		} `json:"sample"`
	} `json:"players"`
}

// Ping performs a status query against the server without logging in. The
// player sample lets the return monitor watch the roster while disconnected.
func Ping(addr string, timeout time.Duration) (ServerStatus, error) {
	raw, delay, err := bot.PingAndListTimeout(addr, timeout)
	if err != nil {
		return ServerStatus{}, fmt.Errorf("status ping %s: %w", addr, err)
	}
	st, err := parseStatus(raw)
	if err != nil {
		return ServerStatus{}, err
	}
	st.Latency = delay
	return st, nil
}

func parseStatus(raw []byte) (ServerStatus, error) {
	var payload statusPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ServerStatus{}, fmt.Errorf("decoding status response: %w", err)
	}

	st := ServerStatus{
		Online: payload.Players.Online,
		Max:    payload.Players.Max,
	}
	for _, s := range payload.Players.Sample {
		id, err := uuid.Parse(s.ID)
		if err != nil {
			id = uuid.Nil
		}
		st.Sample = append(st.Sample, Participant{ID: id, Name: s.Name})
	}
	return st, nil
}
