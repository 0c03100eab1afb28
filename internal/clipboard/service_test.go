package clipboard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		command string
		want    []string
	}{
		{"bare", "wl-copy", []string{"wl-copy"}},
		{"with args", "xclip -selection clipboard", []string{"xclip", "-selection", "clipboard"}},
		{"double quoted", `tmux set-buffer "some text"`, []string{"tmux", "set-buffer", "some text"}},
		{"single quoted", "sh -c 'cat > /tmp/clip'", []string{"sh", "-c", "cat > /tmp/clip"}},
		{"empty", "", nil},
		{"extra spaces", "  a   b  ", []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseCommand(tt.command))
		})
	}
}

func TestReadWithCustomCommand(t *testing.T) {
	svc := NewService("echo hello-from-clipboard", nil)

	got, err := svc.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello-from-clipboard", got)
}

func TestReadWithInvalidCommand(t *testing.T) {
	svc := NewService("   ", nil)

	_, err := svc.Read(context.Background())
	require.Error(t, err)
}

func TestWriteEmitsCopiedMsg(t *testing.T) {
	// cat accepts stdin and exits zero, standing in for a real copy tool
	svc := NewService("cat", nil)

	cmd := svc.Write("https://anistream.example/watch/a1/2")
	require.NotNil(t, cmd)

	msg := cmd()
	copied, ok := msg.(CopiedMsg)
	require.True(t, ok, "expected CopiedMsg, got %T", msg)
	assert.Equal(t, "https://anistream.example/watch/a1/2", copied.Text)
}
