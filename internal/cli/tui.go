package cli

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/xob0t/StoryStencil/pkg/session"
)

var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// PickModel chooses 2–4 images in display order. The order in which images
// are ticked becomes their slot order.
type PickModel struct {
	Paths     []string
	Cursor    int
	Order     []int
	Confirmed bool
	Message   string
	Height    int
	Offset    int
}

// NewPickModel creates a picker over paths.
func NewPickModel(paths []string) PickModel {
	return PickModel{Paths: paths, Height: 15}
}

// Picked returns the chosen paths in slot order.
func (m PickModel) Picked() []string {
	out := make([]string, len(m.Order))
	for i, idx := range m.Order {
		out[i] = m.Paths[idx]
	}
	return out
}

// toggle mirrors the session rule: ticking a fifth image is ignored.
func (m *PickModel) toggle(i int) {
	if pos := slices.Index(m.Order, i); pos >= 0 {
		m.Order = slices.Delete(m.Order, pos, pos+1)
		return
	}
	if len(m.Order) < session.MaxSelected {
		m.Order = append(m.Order, i)
	}
}

func (m PickModel) Init() tea.Cmd {
	return nil
}

func (m PickModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.Message = ""
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Paths)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case " ", "x":
			m.toggle(m.Cursor)
		case "enter":
			if n := len(m.Order); n < session.MinSelected || n > session.MaxSelected {
				m.Message = session.MsgSelectImages
				return m, nil
			}
			m.Confirmed = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-6, 5)
	}
	return m, nil
}

func (m PickModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select images to display"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  space select  ⏎ confirm  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Paths))
	for i := m.Offset; i < end; i++ {
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		mark := "[ ]"
		if pos := slices.Index(m.Order, i); pos >= 0 {
			mark = fmt.Sprintf("[%d]", pos+1)
		}
		style := listNormalStyle
		if i == m.Cursor {
			style = listSelectedStyle
		}
		b.WriteString(cursor + style.Render(mark+" "+filepath.Base(m.Paths[i])) + "\n")
	}

	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("%d of %d selected", len(m.Order), session.MaxSelected)))
	if m.Message != "" {
		b.WriteString("\n" + StyleWarning.Render(m.Message))
	}
	b.WriteString("\n")
	return b.String()
}
