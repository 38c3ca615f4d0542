package bot

import (
	"fmt"
	"strings"
	"testing"

	"github.com/minelurk/minelurk/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityPoolPrefersBase(t *testing.T) {
	sess := session.New()
	pool := newIdentityPool("Lurker", sess)

	assert.Equal(t, "Lurker", pool.next())
}

func TestIdentityPoolNeverReusesBanned(t *testing.T) {
	sess := session.New()
	pool := newIdentityPool("Lurker", sess)

	seen := make(map[string]struct{})
	for i := 0; i < 30; i++ {
		name := pool.next()

		_, reused := seen[name]
		require.False(t, reused, "identity %q handed out twice after ban", name)
		seen[name] = struct{}{}

		sess.SetIdentity(name)
		sess.MarkBanned(name)
	}
}

func TestIdentityPoolExhaustedSuffixSpaceStaysClean(t *testing.T) {
	sess := session.New()
	pool := newIdentityPool("Lurker", sess)

	// Burn the base and every four-digit-or-less suffix, covering the whole
	// random draw range. The pool must still find a name outside the ban list.
	sess.MarkBanned("Lurker")
	for i := 0; i < 10000; i++ {
		sess.MarkBanned(fmt.Sprintf("Lurker%d", i))
	}

	name := pool.next()
	require.False(t, sess.IsBanned(name), "pool handed out banned identity %q", name)
	require.False(t, sess.WasUsed(name), "pool handed out used identity %q", name)
	assert.True(t, strings.HasPrefix(name, "Lurker"))
}

func TestIdentityPoolSkipsUsedNames(t *testing.T) {
	sess := session.New()
	pool := newIdentityPool("Lurker", sess)

	first := pool.next()
	sess.SetIdentity(first)

	second := pool.next()
	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasPrefix(second, "Lurker"))
}

func TestIdentityPoolTrimsLongBase(t *testing.T) {
	sess := session.New()
	pool := newIdentityPool("AVeryLongBaseNameIndeed", sess)

	name := pool.next()
	assert.LessOrEqual(t, len(name), 16)
}
