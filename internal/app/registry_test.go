package app

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/CodeRoom/internal/core"
	"github.com/dkeye/CodeRoom/internal/domain"
)

func member(t *testing.T, sid, room, uid, name string) core.MemberSession {
	t.Helper()
	u, err := domain.NewUser(uid, name)
	require.NoError(t, err)
	return core.NewMemberSession(core.SessionID(sid), domain.NewMember(u, domain.RoomID(room)), &fakeConn{})
}

func TestRegistry_EnsureIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	a := reg.Ensure("abc")
	b := reg.Ensure("abc")
	assert.Same(t, a, b)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_AddRemove(t *testing.T) {
	reg := NewRegistry()

	prev := reg.AddMember("abc", member(t, "s1", "abc", "u1", "Ann"), nil)
	assert.Nil(t, prev)
	reg.AddMember("abc", member(t, "s2", "abc", "u2", "Ben"), nil)
	assert.Equal(t, []string{"Ann", "Ben"}, reg.MembersOf("abc"))

	assert.True(t, reg.RemoveMember("abc", "u1"))
	assert.Equal(t, []string{"Ben"}, reg.MembersOf("abc"))

	assert.True(t, reg.RemoveMember("abc", "u2"))
	_, ok := reg.Lookup("abc")
	assert.False(t, ok)
	assert.Nil(t, reg.MembersOf("abc"))
}

func TestRegistry_RemoveUnknownIsNoop(t *testing.T) {
	reg := NewRegistry()
	assert.False(t, reg.RemoveMember("nope", "u1"))

	reg.AddMember("abc", member(t, "s1", "abc", "u1", "Ann"), nil)
	assert.False(t, reg.RemoveMember("abc", "ghost"))
	assert.Equal(t, []string{"Ann"}, reg.MembersOf("abc"))
}

func TestRegistry_AddReplacesSameUser(t *testing.T) {
	reg := NewRegistry()
	reg.AddMember("abc", member(t, "s1", "abc", "u1", "Ann"), nil)
	reg.AddMember("abc", member(t, "s2", "abc", "u2", "Ben"), nil)

	prev := reg.AddMember("abc", member(t, "s3", "abc", "u1", "Annie"), nil)
	require.NotNil(t, prev)
	assert.Equal(t, core.SessionID("s1"), prev.SID())
	assert.Equal(t, []string{"Annie", "Ben"}, reg.MembersOf("abc"))
}

func TestRegistry_ReleaseHonoursBinding(t *testing.T) {
	reg := NewRegistry()
	reg.AddMember("abc", member(t, "s1", "abc", "u1", "Ann"), nil)
	reg.AddMember("abc", member(t, "s2", "abc", "u1", "Ann"), nil)

	_, ok := reg.Release("abc", "u1", "s1", nil)
	assert.False(t, ok)
	assert.Equal(t, []string{"Ann"}, reg.MembersOf("abc"))

	ms, ok := reg.Release("abc", "u1", "s2", nil)
	require.True(t, ok)
	assert.Equal(t, core.SessionID("s2"), ms.SID())
	assert.Zero(t, reg.Len())
}

func TestRegistry_ThenRunsWithRoster(t *testing.T) {
	reg := NewRegistry()
	var seen []string
	reg.AddMember("abc", member(t, "s1", "abc", "u1", "Ann"), func(r core.Roster) {
		seen = r.Names()
	})
	assert.Equal(t, []string{"Ann"}, seen)

	called := false
	reg.Release("abc", "u1", "", func(core.Roster) { called = true })
	assert.False(t, called, "no callback once the room is empty")
}

func TestRegistry_ListOnlyOccupied(t *testing.T) {
	reg := NewRegistry()
	reg.AddMember("a", member(t, "s1", "a", "u1", "Ann"), nil)
	reg.AddMember("b", member(t, "s2", "b", "u2", "Ben"), nil)
	reg.AddMember("b", member(t, "s3", "b", "u3", "Cat"), nil)
	reg.Ensure("empty")

	assert.ElementsMatch(t, []core.RoomInfo{
		{ID: "a", MemberCount: 1},
		{ID: "b", MemberCount: 2},
	}, reg.List())
}

func TestRegistry_WithAbsentRoom(t *testing.T) {
	reg := NewRegistry()
	called := false
	assert.False(t, reg.With("nope", func(core.Roster) { called = true }))
	assert.False(t, called)
}

// Racing the last leave against a join must never lose the joiner to a
// room that was just retired.
func TestRegistry_JoinRacesRetire(t *testing.T) {
	reg := NewRegistry()
	for i := 0; i < 200; i++ {
		reg.AddMember("abc", member(t, "s-old", "abc", "old", "Old"), nil)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			reg.RemoveMember("abc", "old")
		}()
		go func() {
			defer wg.Done()
			reg.AddMember("abc", member(t, fmt.Sprintf("s%d", i), "abc", "new", "New"), nil)
		}()
		wg.Wait()

		require.Equal(t, []string{"New"}, reg.MembersOf("abc"), "iteration %d", i)
		require.True(t, reg.RemoveMember("abc", "new"))
		require.Zero(t, reg.Len())
	}
}
