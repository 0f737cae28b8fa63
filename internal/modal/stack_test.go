package modal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZOrder(t *testing.T) {
	s := NewStack()
	a := s.Open("Settings")
	b := s.Open("ConfirmSend")
	c := s.Open("HardwareWallet")

	assert.Equal(t, BaseZIndex+0*ZIndexStep, a.ZIndex)
	assert.Equal(t, BaseZIndex+1*ZIndexStep, b.ZIndex)
	assert.Equal(t, BaseZIndex+2*ZIndexStep, c.ZIndex)
	assert.Less(t, a.ZIndex, b.ZIndex)
	assert.Less(t, b.ZIndex, c.ZIndex)
}

func TestDefaults(t *testing.T) {
	s := NewStack()
	m := s.Open("Dialog", WithProps(map[string]any{"title": "hi"}))

	assert.NotEmpty(t, m.ID)
	assert.True(t, m.Backdrop)
	assert.True(t, m.CloseOnEscape)
	assert.True(t, m.CloseOnBackdrop)
	assert.Equal(t, "hi", m.Props["title"])
}

func TestCloseMiddleKeepsZIndices(t *testing.T) {
	s := NewStack(WithBaseZIndex(100))
	s.Open("a", WithID("a"))
	s.Open("b", WithID("b"))
	s.Open("c", WithID("c"))

	require.True(t, s.Close("b"))
	items := s.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, 100, items[0].ZIndex)
	assert.Equal(t, "c", items[1].ID)
	assert.Equal(t, 120, items[1].ZIndex)

	// 新弹窗仍然位于栈顶之上
	d := s.Open("d", WithID("d"))
	assert.Equal(t, 130, d.ZIndex)
}

func TestCloseAbsentIsNoop(t *testing.T) {
	s := NewStack()
	assert.False(t, s.Close("nope"))
	_, ok := s.CloseTop()
	assert.False(t, ok)

	s.Open("a", WithID("a"))
	assert.True(t, s.Close("a"))
	assert.False(t, s.Close("a"))
}

func TestCloseTopAndCloseAll(t *testing.T) {
	s := NewStack()
	s.Open("a", WithID("a"))
	s.Open("b", WithID("b"))

	m, ok := s.CloseTop()
	require.True(t, ok)
	assert.Equal(t, "b", m.ID)

	top, ok := s.Top()
	require.True(t, ok)
	assert.Equal(t, "a", top.ID)

	s.Open("c")
	s.CloseAll()
	assert.Equal(t, 0, s.Depth())
	_, ok = s.Top()
	assert.False(t, ok)
}

func TestEscapeClosesOnlyTop(t *testing.T) {
	s := NewStack()
	s.Open("bottom", WithID("bottom"))
	s.Open("top", WithID("top"))

	assert.True(t, s.HandleKey(KeyEscape))
	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "bottom", items[0].ID)
}

func TestEscapeRespectsTopFlag(t *testing.T) {
	s := NewStack()
	s.Open("bottom", WithID("bottom"))
	s.Open("signing", WithID("signing"), KeepOnEscape())

	assert.False(t, s.HandleEscape())
	assert.Equal(t, 2, s.Depth())
}

// 被覆盖的底层弹窗即使禁用了 Escape 也不影响栈顶; 成为栈顶后才生效
func TestEscapeBottomFlagOnlyWhenOnTop(t *testing.T) {
	s := NewStack()
	s.Open("bottom", WithID("bottom"), KeepOnEscape())
	s.Open("top", WithID("top"))

	assert.True(t, s.HandleEscape())
	assert.False(t, s.HandleEscape())
	top, _ := s.Top()
	assert.Equal(t, "bottom", top.ID)
}

func TestNonEscapeKeysIgnored(t *testing.T) {
	s := NewStack()
	s.Open("a")
	assert.False(t, s.HandleKey("Enter"))
	assert.Equal(t, 1, s.Depth())
}

func TestReopenSameID(t *testing.T) {
	s := NewStack()
	first := s.Open("a", WithID("dup"))
	s.Open("b")
	again := s.Open("a", WithID("dup"))

	assert.Equal(t, first, again)
	assert.Equal(t, 2, s.Depth())
}

func TestOnCloseCallbacks(t *testing.T) {
	s := NewStack()
	var closed []string
	record := OnClose(func(m Modal) { closed = append(closed, m.ID) })

	s.Open("a", WithID("a"), record)
	s.Open("b", WithID("b"), record)
	s.Open("c", WithID("c"), record)

	s.Close("b")
	s.HandleEscape()
	s.CloseAll()

	assert.Equal(t, []string{"b", "c", "a"}, closed)
}
