package bot

import (
	"fmt"
	"math/rand"

	"github.com/minelurk/minelurk/internal/session"
)

// usernames are capped at 16 characters by the protocol; the base is trimmed
// so a numeric suffix always fits.
const maxBaseLen = 12

// identityPool hands out connection identities derived from a base name.
// Banned names never come back: the pool consults the session's ban list on
// every draw.
type identityPool struct {
	base string
	sess *session.Session
}

func newIdentityPool(base string, sess *session.Session) *identityPool {
	if len(base) > maxBaseLen {
		base = base[:maxBaseLen]
	}
	return &identityPool{base: base, sess: sess}
}

// next returns a fresh identity, preferring the bare base name, then random
// numeric suffixes. Names that were banned or already burned this process are
// never handed out again; when the random draws run dry, a monotonic sweep of
// suffixes finds the first name still clean.
func (p *identityPool) next() string {
	if !p.sess.IsBanned(p.base) && !p.sess.WasUsed(p.base) {
		return p.base
	}

	for i := 0; i < 64; i++ {
		candidate := fmt.Sprintf("%s%d", p.base, 100+rand.Intn(900))
		if !p.sess.IsBanned(candidate) && !p.sess.WasUsed(candidate) {
			return candidate
		}
	}

	for i := 0; ; i++ {
		candidate := fmt.Sprintf("%s%d", p.base, i)
		if !p.sess.IsBanned(candidate) && !p.sess.WasUsed(candidate) {
			return candidate
		}
	}
}
