package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/dkeye/CodeRoom/internal/core"
	"github.com/dkeye/CodeRoom/internal/core/mock_core"
	"github.com/dkeye/CodeRoom/internal/domain"
)

func newMember(t *testing.T, sid, uid, name string, conn core.SignalConnection) core.MemberSession {
	t.Helper()
	u, err := domain.NewUser(uid, name)
	require.NoError(t, err)
	return core.NewMemberSession(core.SessionID(sid), domain.NewMember(u, "abc"), conn)
}

func names(room core.RoomService) []string {
	var out []string
	room.View(func(r core.Roster) { out = r.Names() })
	return out
}

func TestRoom_AdmitKeepsJoinOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	room := core.NewRoomService("abc", nil)

	for _, m := range []struct{ sid, uid, name string }{
		{"s1", "u-z", "Zed"},
		{"s2", "u-a", "Amy"},
		{"s3", "u-m", "Max"},
	} {
		_, ok := room.Admit(newMember(t, m.sid, m.uid, m.name, mock_core.NewMockSignalConnection(ctrl)), nil)
		require.True(t, ok)
	}

	assert.Equal(t, []string{"Zed", "Amy", "Max"}, names(room))
	assert.Equal(t, 3, room.MemberCount())
}

func TestRoom_RejoinReplacesInPlace(t *testing.T) {
	ctrl := gomock.NewController(t)
	room := core.NewRoomService("abc", nil)

	first := newMember(t, "s1", "u1", "Alice", mock_core.NewMockSignalConnection(ctrl))
	_, _ = room.Admit(first, nil)
	_, _ = room.Admit(newMember(t, "s2", "u2", "Bob", mock_core.NewMockSignalConnection(ctrl)), nil)

	prev, ok := room.Admit(newMember(t, "s3", "u1", "Alice2", mock_core.NewMockSignalConnection(ctrl)), nil)
	require.True(t, ok)
	assert.Same(t, first, prev)
	assert.Equal(t, []string{"Alice2", "Bob"}, names(room))
	assert.Equal(t, 2, room.MemberCount())

	var members []core.MemberDTO
	room.View(func(r core.Roster) { members = r.Members() })
	require.Len(t, members, 2)
	assert.LessOrEqual(t, members[0].JoinedAt, members[1].JoinedAt)
}

func TestRoom_RemoveGuardsConnection(t *testing.T) {
	ctrl := gomock.NewController(t)
	room := core.NewRoomService("abc", nil)
	_, _ = room.Admit(newMember(t, "s2", "u1", "Alice", mock_core.NewMockSignalConnection(ctrl)), nil)
	_, _ = room.Admit(newMember(t, "s9", "u9", "Other", mock_core.NewMockSignalConnection(ctrl)), nil)

	_, ok := room.Remove("u1", "s1", nil)
	assert.False(t, ok, "superseded connection must not evict its successor")
	assert.Equal(t, 2, room.MemberCount())

	removed, ok := room.Remove("u1", "s2", nil)
	require.True(t, ok)
	assert.Equal(t, core.SessionID("s2"), removed.SID())
}

func TestRoom_RetiresWhenEmpty(t *testing.T) {
	ctrl := gomock.NewController(t)
	var retired core.RoomService
	room := core.NewRoomService("abc", func(r core.RoomService) { retired = r })

	_, _ = room.Admit(newMember(t, "s1", "u1", "Alice", mock_core.NewMockSignalConnection(ctrl)), nil)

	called := false
	_, ok := room.Remove("u1", "", func(core.Roster) { called = true })
	require.True(t, ok)
	assert.False(t, called, "no roster callback for an emptied room")
	assert.Same(t, room, retired)
	assert.False(t, room.View(func(core.Roster) {}), "retired room has no view")

	_, ok = room.Admit(newMember(t, "s2", "u2", "Bob", mock_core.NewMockSignalConnection(ctrl)), nil)
	assert.False(t, ok, "retired room refuses members")
}

func TestRoom_RemoveUnknownIsNoop(t *testing.T) {
	room := core.NewRoomService("abc", nil)
	_, ok := room.Remove("ghost", "", nil)
	assert.False(t, ok)
	assert.True(t, room.View(func(core.Roster) {}))
}

func TestRoster_BroadcastSkipsSender(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := mock_core.NewMockSignalConnection(ctrl)
	b := mock_core.NewMockSignalConnection(ctrl)
	c := mock_core.NewMockSignalConnection(ctrl)

	frame := core.Frame{Data: []byte(`{"type":"code-update"}`)}
	a.EXPECT().TrySend(gomock.Any()).Times(0)
	b.EXPECT().TrySend(frame).Return(nil)
	c.EXPECT().TrySend(frame).Return(core.ErrBackpressure)

	room := core.NewRoomService("abc", nil)
	_, _ = room.Admit(newMember(t, "sa", "ua", "A", a), nil)
	_, _ = room.Admit(newMember(t, "sb", "ub", "B", b), nil)
	_, _ = room.Admit(newMember(t, "sc", "uc", "C", c), nil)

	var res core.PublishResult
	require.True(t, room.View(func(r core.Roster) {
		assert.True(t, r.Contains("sa"))
		assert.False(t, r.Contains("sx"))
		res = r.Broadcast("sa", frame)
	}))
	assert.Equal(t, 1, res.SendTo)
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, core.SessionID("sc"), res.Dropped[0].SID())
}

func TestRoster_ShedIsNotDropped(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := mock_core.NewMockSignalConnection(ctrl)
	a.EXPECT().TrySend(gomock.Any()).Return(core.ErrShed)

	room := core.NewRoomService("abc", nil)
	_, _ = room.Admit(newMember(t, "sa", "ua", "A", a), nil)

	var res core.PublishResult
	room.View(func(r core.Roster) { res = r.Broadcast("", core.Frame{Lossy: true}) })
	assert.Equal(t, 1, res.Shed)
	assert.Empty(t, res.Dropped)
	assert.Zero(t, res.SendTo)
}
