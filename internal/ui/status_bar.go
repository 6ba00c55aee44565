package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/dharper/prview/internal/cache"
	"github.com/dharper/prview/internal/rally"
)

// StatusBar renders the bottom status line
type StatusBar struct {
	Key        cache.PRKey
	LocalMode  bool
	RallyState rally.State
	Iteration  int
	StartTime  time.Time
	Message    string
	MessageOK  bool
	Error      error
}

// NewStatusBar creates a new status bar with default values
func NewStatusBar(key cache.PRKey, localMode bool) StatusBar {
	return StatusBar{
		Key:       key,
		LocalMode: localMode,
		StartTime: time.Now(),
	}
}

// Render renders the status bar to fit the given width
func (s StatusBar) Render(width int) string {
	var sections []string

	brand := StatusBarBrandStyle.Render("prview")
	sections = append(sections, brand)

	if s.LocalMode {
		sections = append(sections, StatusBarSectionStyle.Render("local"))
	} else {
		if s.Key.Repo != "" {
			sections = append(sections, StatusBarSectionStyle.Render(s.Key.Repo))
		}
		if s.Key.Number > 0 {
			sections = append(sections, StatusBarSectionStyle.Render(fmt.Sprintf("PR#%d", s.Key.Number)))
		}
	}

	if rallySection := s.renderRally(); rallySection != "" {
		sections = append(sections, rallySection)
	}

	if s.Error != nil {
		sections = append(sections, StatusBarErrorStyle.Render("● "+truncate(s.Error.Error(), 50)))
	} else if s.Message != "" {
		if s.MessageOK {
			sections = append(sections, StatusBarProgressStyle.Render("✓ "+truncate(s.Message, 50)))
		} else {
			sections = append(sections, StatusBarWarningStyle.Render("! "+truncate(s.Message, 50)))
		}
	}

	elapsed := formatDuration(time.Since(s.StartTime))
	sections = append(sections, DimStyle.Render(elapsed))

	divider := StatusBarDividerStyle.Render(" │ ")
	content := strings.Join(sections, divider)

	// Pad to full width
	contentWidth := lipgloss.Width(content)
	if contentWidth < width {
		padding := strings.Repeat(" ", width-contentWidth)
		content = content + StatusBarStyle.Render(padding)
	}

	return StatusBarStyle.Width(width).Render(content)
}

// renderRally renders the rally state with appropriate styling
func (s StatusBar) renderRally() string {
	switch s.RallyState {
	case "":
		return ""
	case rally.StateInitializing:
		return StatusBarSectionStyle.Render("◌ Rally starting...")
	case rally.StateReviewerReviewing:
		return StatusBarProgressStyle.Render(fmt.Sprintf("● Reviewing (iter %d)", s.Iteration))
	case rally.StateRevieweeFixing:
		return StatusBarProgressStyle.Render(fmt.Sprintf("● Fixing (iter %d)", s.Iteration))
	case rally.StateWaitingForClarification:
		return StatusBarWarningStyle.Render("? Clarification needed")
	case rally.StateWaitingForPermission:
		return StatusBarWarningStyle.Render("? Permission needed")
	case rally.StateWaitingForPostConfirm:
		return StatusBarWarningStyle.Render("? Confirm post")
	case rally.StateCompleted:
		return StatusBarProgressStyle.Render("✓ Rally complete")
	case rally.StateFailed:
		return StatusBarErrorStyle.Render("✗ Rally failed")
	default:
		return StatusBarSectionStyle.Render(string(s.RallyState))
	}
}

// SetError sets the error state
func (s *StatusBar) SetError(err error) {
	s.Error = err
}

// SetMessage sets a transient status message
func (s *StatusBar) SetMessage(ok bool, msg string) {
	s.MessageOK = ok
	s.Message = msg
}

// SetRally updates the rally state section
func (s *StatusBar) SetRally(state rally.State, iteration int) {
	s.RallyState = state
	s.Iteration = iteration
}

// truncate clips a string to at most n runes, appending an ellipsis when it
// had to cut. Byte slicing would split multi-byte characters.
func truncate(str string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(str)
	if len(runes) <= n {
		return str
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

// formatDuration formats a duration as HH:MM:SS or MM:SS
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
