package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/CodeRoom/internal/core"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Inbound
	}{
		{
			name: "join",
			in:   `{"type":"join-room","roomId":"abc","userId":"u1","userName":"Alice"}`,
			want: JoinRoom{RoomID: "abc", UserID: "u1", UserName: "Alice"},
		},
		{
			name: "join without name",
			in:   `{"type":"join-room","roomId":"abc","userId":"u1"}`,
			want: JoinRoom{RoomID: "abc", UserID: "u1"},
		},
		{
			name: "code change",
			in:   `{"type":"code-change","roomId":"abc","code":"print(1)","userId":"u1"}`,
			want: CodeChange{RoomID: "abc", Code: "print(1)", UserID: "u1"},
		},
		{
			name: "code cleared",
			in:   `{"type":"code-change","roomId":"abc","code":"","userId":"u1"}`,
			want: CodeChange{RoomID: "abc", Code: "", UserID: "u1"},
		},
		{
			name: "input change",
			in:   `{"type":"input-change","roomId":"abc","input":"42","userId":"u1"}`,
			want: InputChange{RoomID: "abc", Input: "42", UserID: "u1"},
		},
		{
			name: "cursor move",
			in:   `{"type":"cursor-move","roomId":"abc","cursorPosition":{"lineNumber":3,"column":7},"userId":"u1"}`,
			want: CursorMove{RoomID: "abc", CursorPosition: json.RawMessage(`{"lineNumber":3,"column":7}`), UserID: "u1"},
		},
		{name: "leave", in: `{"type":"leave-room"}`, want: LeaveRoom{}},
		{name: "ping", in: `{"type":"ping"}`, want: Ping{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	for _, in := range []string{
		`not json`,
		`{"type":"join-room","roomId":"","userId":"u1"}`,
		`{"type":"join-room","roomId":"abc"}`,
		`{"type":"join-room","roomId":7,"userId":"u1"}`,
		`{"type":"code-change","roomId":"abc","userId":"u1"}`,
		`{"type":"code-change","code":"x","userId":"u1"}`,
		`{"type":"input-change","roomId":"abc"}`,
		`{"type":"cursor-move","roomId":"abc","userId":"u1"}`,
		`{"type":"cursor-move","roomId":"abc","cursorPosition":null}`,
	} {
		_, err := Decode([]byte(in))
		assert.ErrorIs(t, err, ErrMalformed, in)
	}
}

func TestDecode_UnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"code-chnage","roomId":"abc"}`))
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = Decode([]byte(`{}`))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestEncode(t *testing.T) {
	data, err := Encode(CodeUpdate{Code: "print(1)", UserID: "u1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"code-update","code":"print(1)","userId":"u1"}`, string(data))

	data, err = Encode(RoomUsers{
		Users:   []string{"Alice", "Bob"},
		Members: []core.MemberDTO{{ID: "u1", Username: "Alice"}, {ID: "u2", Username: "Bob"}},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"room-users","users":["Alice","Bob"],"members":[{"userId":"u1","userName":"Alice"},{"userId":"u2","userName":"Bob"}]}`, string(data))

	data, err = Encode(Pong{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"pong"}`, string(data))
}

func TestCursorPositionIsForwardedVerbatim(t *testing.T) {
	in := `{"type":"cursor-move","roomId":"abc","cursorPosition":{"lineNumber":3,"column":7,"selection":[1,2]},"userId":"u1"}`
	ev, err := Decode([]byte(in))
	require.NoError(t, err)

	f, err := Frame(ev.(Relayed).Update())
	require.NoError(t, err)
	assert.True(t, f.Lossy)
	assert.JSONEq(t, `{"type":"cursor-update","cursorPosition":{"lineNumber":3,"column":7,"selection":[1,2]},"userId":"u1"}`, string(f.Data))
}

func TestStamp(t *testing.T) {
	ev := Stamp(CodeChange{RoomID: "abc", Code: "x"}, "u7")
	assert.Equal(t, CodeChange{RoomID: "abc", Code: "x", UserID: "u7"}, ev)

	kept := Stamp(InputChange{RoomID: "abc", UserID: "u1"}, "u7")
	assert.Equal(t, InputChange{RoomID: "abc", UserID: "u1"}, kept)
}

func TestLossClasses(t *testing.T) {
	assert.False(t, CodeUpdate{}.Lossy())
	assert.False(t, RoomUsers{}.Lossy())
	assert.False(t, UserLeft{}.Lossy())
	assert.True(t, InputUpdate{}.Lossy())
	assert.True(t, CursorUpdate{}.Lossy())
}
