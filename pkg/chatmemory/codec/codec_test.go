package codec

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/chatmemory/pkg/chatmemory"
)

func newTestCodec(opts ...Option) *Codec {
	return New(append([]Option{WithLogger(zerolog.Nop())}, opts...)...)
}

func TestCodec_RoundTrip(t *testing.T) {
	c := newTestCodec()
	msgs := []chatmemory.Message{
		chatmemory.NewUserMessage("hi"),
		chatmemory.NewAssistantMessage("hello there"),
		chatmemory.NewSystemMessage("you are terse"),
		chatmemory.NewUserMessage(""),
		chatmemory.NewAssistantMessage("quotes \" and \\ backslashes\nnewlines, unicode ✓"),
		chatmemory.NewUserMessage(`{"looks":"like json"}`),
	}
	for _, m := range msgs {
		raw, err := c.Encode(m)
		require.NoError(t, err)
		got, err := c.Decode(raw)
		require.NoError(t, err)
		require.Equal(t, m, got, "raw=%s", raw)
	}
}

func TestCodec_EncodeCanonicalShape(t *testing.T) {
	c := newTestCodec()
	raw, err := c.Encode(chatmemory.NewAssistantMessage("ok"))
	require.NoError(t, err)
	require.Equal(t, `{"messageType":"ASSISTANT","content":"ok"}`, raw)

	raw, err = c.Encode(chatmemory.Message{
		Role:     chatmemory.RoleUser,
		Text:     "x",
		Metadata: map[string]any{"lang": "en"},
	})
	require.NoError(t, err)
	require.Equal(t, `{"messageType":"USER","content":"x","metadata":{"lang":"en"}}`, raw)
}

func TestCodec_MetadataRoundTrip(t *testing.T) {
	c := newTestCodec()
	m := chatmemory.Message{
		Role: chatmemory.RoleAssistant,
		Text: "answer",
		Metadata: map[string]any{
			"model":  "gpt-4o",
			"score":  0.5,
			"tags":   []any{"a", "b"},
			"nested": map[string]any{"ok": true},
		},
	}
	raw, err := c.Encode(m)
	require.NoError(t, err)
	got, err := c.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestCodec_EncodeRejectsUnknownRole(t *testing.T) {
	c := newTestCodec()
	_, err := c.Encode(chatmemory.Message{Role: "TOOL", Text: "x"})
	require.Error(t, err)
	require.True(t, errors.Is(err, chatmemory.ErrEncode))

	_, err = c.Encode(chatmemory.Message{Role: chatmemory.RoleUser, Metadata: map[string]any{"ch": make(chan int)}})
	require.Error(t, err)
	require.True(t, errors.Is(err, chatmemory.ErrEncode))
}

func TestCodec_DecodeLegacyShapes(t *testing.T) {
	c := newTestCodec()
	cases := []struct {
		name string
		raw  string
		role chatmemory.Role
		text string
	}{
		{"role lower case with content", `{"role":"user","content":"hi"}`, chatmemory.RoleUser, "hi"},
		{"type with text", `{"type":"ASSISTANT","text":"ok"}`, chatmemory.RoleAssistant, "ok"},
		{"bare string", `"hello"`, chatmemory.RoleUser, "hello"},
		{"messageType wins over type", `{"messageType":"SYSTEM","type":"ASSISTANT","content":"s"}`, chatmemory.RoleSystem, "s"},
		{"type wins over role", `{"type":"assistant","role":"system","content":"a"}`, chatmemory.RoleAssistant, "a"},
		{"content wins over text", `{"role":"assistant","content":"c","text":"t"}`, chatmemory.RoleAssistant, "c"},
		{"record with extra fields", `{"messageType":"ASSISTANT","metadata":{},"toolCalls":[],"media":[],"text":"done"}`, chatmemory.RoleAssistant, "done"},
		{"null content", `{"role":"assistant","content":null}`, chatmemory.RoleAssistant, ""},
		{"numeric content", `{"role":"assistant","content":42}`, chatmemory.RoleAssistant, "42"},
		{"object content", `{"role":"assistant","content":{"a": 1}}`, chatmemory.RoleAssistant, `{"a":1}`},
		{"repeated keys use the first", `{"role":"system","role":"assistant","content":"d","content":"e"}`, chatmemory.RoleSystem, "d"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.Decode(tc.raw)
			require.NoError(t, err)
			require.Equal(t, tc.role, got.Role)
			require.Equal(t, tc.text, got.Text)
		})
	}
}

func TestCodec_DecodeFallsBackToUser(t *testing.T) {
	var reasons []string
	c := newTestCodec(WithFallbackObserver(func(reason string) { reasons = append(reasons, reason) }))

	got, err := c.Decode(`{"type":"ALIEN","content":"x"}`)
	require.NoError(t, err)
	require.Equal(t, chatmemory.NewUserMessage("x"), got)

	got, err = c.Decode(`{"foo": "bar",  "n": 1}`)
	require.NoError(t, err)
	require.Equal(t, chatmemory.RoleUser, got.Role)
	require.Equal(t, `{"foo":"bar","n":1}`, got.Text)

	got, err = c.Decode(`{"messageType":null,"type":"ASSISTANT","content":"n"}`)
	require.NoError(t, err)
	require.Equal(t, chatmemory.RoleUser, got.Role)

	got, err = c.Decode(`[1, 2]`)
	require.NoError(t, err)
	require.Equal(t, chatmemory.NewUserMessage("[1,2]"), got)

	got, err = c.Decode(`12.5`)
	require.NoError(t, err)
	require.Equal(t, chatmemory.NewUserMessage("12.5"), got)

	require.Equal(t, []string{FallbackUnknownType, FallbackMissingType, FallbackUnknownType, FallbackMissingType, FallbackMissingType}, reasons)
}

func TestCodec_DecodeErrors(t *testing.T) {
	c := newTestCodec()
	for _, raw := range []string{"", `{"role":`, "hello", string([]byte{0xff, 0xfe, '"'})} {
		_, err := c.Decode(raw)
		require.Error(t, err, "raw=%q", raw)
		require.True(t, errors.Is(err, chatmemory.ErrDecode), "raw=%q", raw)
	}
}

func TestCodec_CustomRoleTable(t *testing.T) {
	c := newTestCodec(WithRoles(DefaultRoles().With("human", chatmemory.NewUserMessage).With("ai", chatmemory.NewAssistantMessage)))

	got, err := c.Decode(`{"type":"AI","content":"beep"}`)
	require.NoError(t, err)
	require.Equal(t, chatmemory.NewAssistantMessage("beep"), got)

	got, err = c.Decode(`{"role":"human","text":"hey"}`)
	require.NoError(t, err)
	require.Equal(t, chatmemory.NewUserMessage("hey"), got)
}

func TestCodec_TableWithoutUserStillFallsBack(t *testing.T) {
	c := newTestCodec(WithRoles(RoleTable{"SYSTEM": chatmemory.NewSystemMessage}))

	got, err := c.Decode(`{"type":"ASSISTANT","content":"x"}`)
	require.NoError(t, err)
	require.Equal(t, chatmemory.NewUserMessage("x"), got)

	got, err = c.Decode(`"plain"`)
	require.NoError(t, err)
	require.Equal(t, chatmemory.NewUserMessage("plain"), got)
}

func TestCodec_RoleTableIsCopied(t *testing.T) {
	table := DefaultRoles()
	c := newTestCodec(WithRoles(table))
	table["ASSISTANT"] = chatmemory.NewSystemMessage

	got, err := c.Decode(`{"type":"ASSISTANT","content":"x"}`)
	require.NoError(t, err)
	require.Equal(t, chatmemory.RoleAssistant, got.Role)
}
