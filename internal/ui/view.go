package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dharper/prview/internal/rally"
)

const (
	statusBarHeight   = 1
	helpHeight        = 1
	headerHeight      = 2
	inputHeight       = 1
	minViewportHeight = 5
	fileListWidth     = 36
	rallyPanelHeight  = 12
)

// diffViewHeight is the number of diff lines visible at the given terminal
// height.
func diffViewHeight(height int) int {
	h := height - statusBarHeight - helpHeight - headerHeight
	if h < minViewportHeight {
		h = minViewportHeight
	}
	return h
}

func diffPageSize(height int) int {
	return diffViewHeight(height) / 2
}

// RenderView renders the complete TUI view
func RenderView(m *Model) string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	if m.err != nil {
		return RenderError(m.err, m.width)
	}

	var sections []string
	sections = append(sections, renderHeader(m))

	contentHeight := m.height - statusBarHeight - helpHeight - headerHeight
	if m.inputMode != inputNone {
		contentHeight -= inputHeight
	}
	panelHeight := 0
	if m.panel != nil {
		panelHeight = rallyPanelHeight
		contentHeight -= panelHeight
	}
	if contentHeight < minViewportHeight {
		contentHeight = minViewportHeight
	}

	fileList := renderFileList(m, contentHeight)
	diff := renderDiff(m, m.width-fileListWidth, contentHeight)
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, fileList, diff))

	if m.panel != nil {
		sections = append(sections, renderRallyPanel(m, panelHeight))
	}
	if m.inputMode != inputNone {
		sections = append(sections, renderInput(m))
	}

	sections = append(sections, renderHelp(m))
	sections = append(sections, m.status.Render(m.width))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderHeader renders the top header
func renderHeader(m *Model) string {
	title := "prview"
	if m.data != nil && m.data.PR.Title != "" {
		title = truncate(m.data.PR.Title, m.width-4)
	}

	var subtitle string
	switch {
	case m.loading:
		subtitle = m.spin.View() + " Loading..."
	case m.dataErr != nil:
		subtitle = ErrorStyle.Render(m.dataErr.Error())
	case m.data != nil && !m.localMode:
		subtitle = fmt.Sprintf("PR #%d by %s · %s → %s",
			m.data.PR.Number, m.data.PR.Author, m.data.PR.HeadBranch, m.data.PR.BaseBranch)
	case m.data != nil:
		subtitle = fmt.Sprintf("%d changed files in the working tree", len(m.data.Files))
	}

	header := HeaderStyle.Width(m.width).Render(title)
	return lipgloss.JoinVertical(lipgloss.Left, header, DimStyle.Render(subtitle))
}

// renderFileList renders the left pane: the PR's ordered file list.
func renderFileList(m *Model, height int) string {
	innerWidth := fileListWidth - 4

	var lines []string
	if m.data == nil {
		lines = append(lines, DimStyle.Render("No files"))
	} else {
		start := m.fileScroll
		if m.selectedFile < start {
			start = m.selectedFile
		}
		if m.selectedFile >= start+height-2 {
			start = m.selectedFile - height + 3
		}

		for i := start; i < len(m.data.Files) && i-start < height-2; i++ {
			f := m.data.Files[i]
			stat := FileStatStyle.Render(fmt.Sprintf("+%d/-%d", f.Additions, f.Deletions))
			name := truncatePath(f.Path, innerWidth-lipgloss.Width(stat)-1)
			row := name + " " + stat
			if i == m.selectedFile {
				row = FileSelectedStyle.Width(innerWidth).Render(row)
			} else {
				row = FileRowStyle.Render(row)
			}
			lines = append(lines, row)
		}
	}

	style := BorderStyle
	if m.focus == FocusFiles {
		style = ActiveBorderStyle
	}
	return style.Width(fileListWidth - 2).Height(height - 2).Render(strings.Join(lines, "\n"))
}

// renderDiff renders the active diff cache with comment markers composed
// from the live comment set.
func renderDiff(m *Model, width, height int) string {
	if width < 8 {
		width = 8
	}
	innerWidth := width - 4
	innerHeight := height - 2

	var body string
	switch {
	case m.active == nil && m.loading:
		body = lipgloss.Place(innerWidth, innerHeight, lipgloss.Center, lipgloss.Center,
			DimStyle.Render(m.spin.View()+" Loading diff..."))
	case m.active == nil:
		body = lipgloss.Place(innerWidth, innerHeight, lipgloss.Center, lipgloss.Center,
			DimStyle.Render("No diff for this file"))
	default:
		body = renderDiffLines(m, innerWidth, innerHeight)
	}

	style := BorderStyle
	if m.focus == FocusDiff {
		style = ActiveBorderStyle
	}
	return style.Width(width - 2).Height(height - 2).Render(body)
}

func renderDiffLines(m *Model, width, height int) string {
	dc := m.active
	markers := m.commentLines()

	start := m.diffScroll
	if start > len(dc.Lines)-height {
		start = len(dc.Lines) - height
	}
	if start < 0 {
		start = 0
	}
	end := start + height
	if end > len(dc.Lines) {
		end = len(dc.Lines)
	}

	lines := make([]string, 0, height)
	for i := start; i < end; i++ {
		line := dc.Lines[i]

		marker := "  "
		if line.NewLine > 0 && markers[line.NewLine] > 0 {
			marker = CommentMarkerStyle.Render("● ")
		}

		gutter := LineNumberStyle.Render("     ")
		if line.NewLine > 0 {
			gutter = LineNumberStyle.Render(fmt.Sprintf("%4d ", line.NewLine))
		}

		var text strings.Builder
		for _, span := range line.Spans {
			text.WriteString(span.Style.Render(dc.Interner.Resolve(span.Content)))
		}

		row := marker + gutter + text.String()
		if i == m.selectedLine && m.focus == FocusDiff {
			row = DiffCursorStyle.Width(width).Render(row)
		}
		lines = append(lines, row)
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// renderRallyPanel renders the orchestrator event log and any pending gate.
func renderRallyPanel(m *Model, height int) string {
	p := m.panel
	innerHeight := height - 2
	innerWidth := m.width - 4

	var lines []string
	title := fmt.Sprintf("AI Rally · %s", p.state)
	if p.iteration > 0 {
		title += fmt.Sprintf(" · iteration %d", p.iteration)
	}
	if p.state.Terminal() && p.reason != "" {
		title += fmt.Sprintf(" (%s)", p.reason)
	}
	lines = append(lines, HeaderStyle.Render(title))

	logHeight := innerHeight - 1
	if p.pendingPermission != nil || p.pendingPost {
		logHeight--
	}

	entryLines := make([]string, 0, len(p.entries))
	for _, e := range p.entries {
		entryLines = append(entryLines, renderLogEntry(e, innerWidth))
	}
	start := p.scroll
	if start < 0 || start > len(entryLines)-logHeight {
		start = len(entryLines) - logHeight
	}
	if start < 0 {
		start = 0
	}
	end := start + logHeight
	if end > len(entryLines) {
		end = len(entryLines)
	}
	lines = append(lines, entryLines[start:end]...)
	for len(lines) < innerHeight-1 {
		lines = append(lines, "")
	}

	switch {
	case p.pendingPermission != nil:
		prompt := fmt.Sprintf("Allow %q? (%s)  ", p.pendingPermission.action, p.pendingPermission.reason)
		lines = append(lines, WarnStyle.Render(prompt)+
			HelpKeyStyle.Render("y")+HelpDescStyle.Render(" allow  ")+
			HelpKeyStyle.Render("n")+HelpDescStyle.Render(" deny"))
	case p.pendingPost:
		lines = append(lines, WarnStyle.Render("Post "+p.pendingPostAction+" to the PR?  ")+
			HelpKeyStyle.Render("y")+HelpDescStyle.Render(" post  ")+
			HelpKeyStyle.Render("n")+HelpDescStyle.Render(" skip"))
	}

	style := BorderStyle
	if m.focus == FocusRally {
		style = ActiveBorderStyle
	}
	return style.Width(m.width - 2).Height(innerHeight).Render(strings.Join(lines, "\n"))
}

func renderLogEntry(e logEntry, maxWidth int) string {
	var style lipgloss.Style
	var bullet string

	switch e.kind {
	case rally.EventAgentThinking:
		style = RallyThinkingStyle
		bullet = "◌"
	case rally.EventAgentToolUse:
		style = RallyToolStyle
		bullet = "▸"
	case rally.EventAgentText, rally.EventReviewCompleted, rally.EventFixCompleted:
		style = RallyTextStyle
		bullet = "●"
	case rally.EventError:
		style = ErrorStyle
		bullet = "✗"
	case rally.EventClarificationNeeded, rally.EventPermissionNeeded, rally.EventPostConfirmNeeded:
		style = WarnStyle
		bullet = "?"
	default:
		style = RallyInfoStyle
		bullet = "·"
	}

	return RallyBulletStyle.Render(bullet) + " " + style.Render(truncate(e.text, maxWidth-4))
}

func renderInput(m *Model) string {
	label := "Comment: "
	if m.inputMode == inputClarification {
		label = "Answer: "
	}
	return HelpKeyStyle.Render(label) + m.input.View()
}

// renderHelp renders the help line
func renderHelp(m *Model) string {
	var bindings []string

	if m.inputMode != inputNone {
		bindings = append(bindings,
			HelpKeyStyle.Render("enter")+" "+HelpDescStyle.Render("submit"),
			HelpKeyStyle.Render("esc")+" "+HelpDescStyle.Render("cancel"),
		)
	} else {
		switch m.focus {
		case FocusFiles:
			bindings = append(bindings,
				HelpKeyStyle.Render("j/k")+" "+HelpDescStyle.Render("select file"),
				HelpKeyStyle.Render("enter")+" "+HelpDescStyle.Render("open diff"),
			)
		case FocusDiff:
			bindings = append(bindings,
				HelpKeyStyle.Render("j/k")+" "+HelpDescStyle.Render("move"),
				HelpKeyStyle.Render("c")+" "+HelpDescStyle.Render("comment"),
				HelpKeyStyle.Render("esc")+" "+HelpDescStyle.Render("files"),
			)
		case FocusRally:
			bindings = append(bindings,
				HelpKeyStyle.Render("j/k")+" "+HelpDescStyle.Render("scroll"),
				HelpKeyStyle.Render("x")+" "+HelpDescStyle.Render("abort rally"),
			)
		}
		bindings = append(bindings,
			HelpKeyStyle.Render("tab")+" "+HelpDescStyle.Render("focus"),
			HelpKeyStyle.Render("a")+" "+HelpDescStyle.Render("rally"),
			HelpKeyStyle.Render("r")+" "+HelpDescStyle.Render("refresh"),
			HelpKeyStyle.Render("q")+" "+HelpDescStyle.Render("quit"),
		)
	}

	return HelpStyle.Render(strings.Join(bindings, "  "))
}

// truncatePath shortens a path from the left so the basename stays visible.
func truncatePath(path string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	runes := []rune(path)
	if len(runes) <= maxWidth {
		return path
	}
	return "…" + string(runes[len(runes)-maxWidth+1:])
}

// RenderError renders a full-screen error message
func RenderError(err error, width int) string {
	message := fmt.Sprintf("Error: %v\n\nPress any key to continue...", err)
	box := BorderStyle.
		BorderForeground(Red).
		Width(width - 4).
		Render(ErrorStyle.Render(message))

	return lipgloss.Place(width, 10, lipgloss.Center, lipgloss.Center, box)
}
