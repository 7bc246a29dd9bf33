package tui

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/clawinfra/qbank/internal/agenttype"
	"github.com/clawinfra/qbank/internal/qstore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNewModelListsAllAgentTypes(t *testing.T) {
	m := New(nil, testLogger())
	if len(m.types) != len(agenttype.All()) {
		t.Fatalf("types = %d, want %d", len(m.types), len(agenttype.All()))
	}
	if m.selected != 0 {
		t.Errorf("selected = %d, want 0", m.selected)
	}
}

func TestSelectionMovesAndClampsAtBounds(t *testing.T) {
	m := New(nil, testLogger())

	// Up at the top stays put.
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = next.(Model)
	if m.selected != 0 {
		t.Errorf("selected = %d after up at top, want 0", m.selected)
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	if m.selected != 1 {
		t.Errorf("selected = %d after down, want 1", m.selected)
	}

	// Walk past the end.
	for i := 0; i < len(m.types)+5; i++ {
		next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
		m = next.(Model)
	}
	if m.selected != len(m.types)-1 {
		t.Errorf("selected = %d after overrun, want %d", m.selected, len(m.types)-1)
	}
}

func TestQuitKeys(t *testing.T) {
	m := New(nil, testLogger())
	for _, key := range []string{"q", "ctrl+c"} {
		var msg tea.KeyMsg
		if key == "ctrl+c" {
			msg = tea.KeyMsg{Type: tea.KeyCtrlC}
		} else {
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
		}
		_, cmd := m.Update(msg)
		if cmd == nil {
			t.Errorf("key %q: expected quit command", key)
		}
	}
}

func TestRefreshMsgUpdatesState(t *testing.T) {
	m := New(nil, testLogger())

	entry := qstore.Entry{
		Key: qstore.Key{
			AgentType:  agenttype.TestGenerator,
			StateHash:  strings.Repeat("a", 64),
			ActionHash: strings.Repeat("b", 64),
		},
		Value:      3.25,
		VisitCount: 7,
		UpdatedAt:  time.Now(),
	}
	stats := qstore.Stats{
		TotalEntries: 1,
		TotalVisits:  7,
		PerAgentType: map[agenttype.AgentType]int64{agenttype.TestGenerator: 1},
	}

	next, _ := m.Update(refreshMsg{stats: stats, entries: []qstore.Entry{entry}})
	m = next.(Model)

	if m.stats.TotalEntries != 1 {
		t.Errorf("totalEntries = %d, want 1", m.stats.TotalEntries)
	}
	if len(m.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(m.entries))
	}

	table := m.renderTable()
	if !strings.Contains(table, "3.250") {
		t.Errorf("table missing value, got:\n%s", table)
	}
	if !strings.Contains(table, "aaaaaaaaaaaa") {
		t.Errorf("table missing truncated state hash, got:\n%s", table)
	}
}

func TestRenderTableEmpty(t *testing.T) {
	m := New(nil, testLogger())
	out := m.renderTable()
	if !strings.Contains(out, "No Q-values") {
		t.Errorf("unexpected empty render: %q", out)
	}
}

func TestShortHash(t *testing.T) {
	long := strings.Repeat("f", 64)
	if got := shortHash(long); len([]rune(got)) != 13 {
		t.Errorf("shortHash(%q) = %q", long, got)
	}
	if got := shortHash("abc"); got != "abc" {
		t.Errorf("shortHash(abc) = %q", got)
	}
}
