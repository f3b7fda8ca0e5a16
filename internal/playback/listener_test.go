package playback

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jmylchreest/playarr/internal/platform"
)

func TestLogListener(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogListener(slog.New(slog.NewTextHandler(&buf, nil)))

	l.StateChanged("s1", StateIdle, StateTokenAcquired)
	l.StateChanged("s1", StatePlaying, StateIntegrityRequired)
	l.AdStateChanged("s1", true)
	l.AdStateChanged("s1", false)
	l.MetadataUpdated("s1", platform.StreamMetadata{Title: "speedrun", GameName: "Celeste", ViewerCount: 42})

	out := buf.String()
	assert.Contains(t, out, "level=INFO msg=\"session state changed\"")
	assert.Contains(t, out, "to=token_acquired")
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "ad break started")
	assert.Contains(t, out, "ad break ended")
	assert.Contains(t, out, "game=Celeste")
	assert.Contains(t, out, "viewers=42")
	assert.Contains(t, out, "component=session")
}
