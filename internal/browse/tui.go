package browse

import (
	"fmt"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ReedRawlings/AIJobs/internal/model"
)

// Lines per posting in the list pane (title + subtitle + blank separator).
const postingItemHeight = 3

var (
	activeBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("39")) // bright blue

	inactiveBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240")) // dim gray

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	activeHeaderStyle = headerStyle.
				Foreground(lipgloss.Color("39"))

	inactiveHeaderStyle = headerStyle.
				Foreground(lipgloss.Color("240"))

	statusBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	itemTitleStyle = lipgloss.NewStyle().
			Bold(true)

	itemSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))

	selectedItemTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")). // bright white
				Background(lipgloss.Color("24"))  // dark blue bg

	selectedItemSubtitleStyle = lipgloss.NewStyle().
					Foreground(lipgloss.Color("252")).
					Background(lipgloss.Color("24"))

	detailLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Width(14)

	detailValueStyle = lipgloss.NewStyle()

	detailTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				MarginBottom(1)

	descDividerStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))

	descHintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)

	descBodyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	statusStyles = map[model.Status]lipgloss.Style{
		model.StatusNew:     lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		model.StatusActive:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		model.StatusUpdated: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		model.StatusClosed:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

type browserModel struct {
	company  string
	postings []model.Posting // full company set, newest first
	visible  []model.Posting // after filtering

	filter    Filter
	status    statusFilter
	searching bool

	listViewport   viewport.Model
	detailViewport viewport.Model
	activePane     int // 0=list, 1=detail
	cursor         int
	detailID       string
	width          int
	height         int
	ready          bool

	showDescription bool
	wantQuit        bool
}

func (m browserModel) Init() tea.Cmd {
	return nil
}

func (m browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.updateKeys(msg)
	}

	return m, nil
}

// updateSearch handles keys while the title query is being typed.
func (m browserModel) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.wantQuit = true
		return m, tea.Quit
	case "enter":
		m.searching = false
	case "esc":
		m.searching = false
		m.filter.Query = ""
		m.refilter()
	case "backspace":
		if q := []rune(m.filter.Query); len(q) > 0 {
			m.filter.Query = string(q[:len(q)-1])
			m.refilter()
		}
	default:
		if msg.Type == tea.KeyRunes {
			m.filter.Query += string(msg.Runes)
			m.refilter()
		}
	}
	return m, nil
}

func (m browserModel) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.wantQuit = true
		return m, tea.Quit
	case "esc", "b":
		m.wantQuit = false
		return m, tea.Quit
	case "tab", "left", "right":
		m.activePane = 1 - m.activePane
		m.recalcContent()
		return m, nil
	case "s":
		m.status = m.status.next()
		m.filter.Status = m.status.status()
		m.refilter()
		return m, nil
	case "/":
		m.searching = true
		m.activePane = 0
		return m, nil
	case "r":
		if p := m.selected(); p != nil && p.Description != "" {
			m.showDescription = !m.showDescription
			m.detailViewport.SetContent(m.renderDetail())
			m.detailViewport.SetYOffset(0)
		}
		return m, nil
	case "o":
		if p := m.selected(); p != nil {
			url := p.JobURL
			if p.ApplyURL != "" {
				url = p.ApplyURL
			}
			openURL(url)
		}
		return m, nil
	case "up", "k":
		if m.activePane == 0 {
			m.moveCursor(-1)
			return m, nil
		}
	case "down", "j":
		if m.activePane == 0 {
			m.moveCursor(1)
			return m, nil
		}
	}

	// Everything else (and scrolling while the detail pane is active)
	// goes to the active viewport.
	var cmd tea.Cmd
	if m.activePane == 0 {
		m.listViewport, cmd = m.listViewport.Update(msg)
	} else {
		m.detailViewport, cmd = m.detailViewport.Update(msg)
	}
	return m, cmd
}

func (m *browserModel) moveCursor(delta int) {
	m.cursor = clamp(m.cursor+delta, 0, max(len(m.visible)-1, 0))
	m.recalcContent()
	m.ensureCursorVisible()
}

func (m *browserModel) refilter() {
	m.visible = apply(m.postings, m.filter)
	m.cursor = clamp(m.cursor, 0, max(len(m.visible)-1, 0))
	m.recalcContent()
	m.ensureCursorVisible()
}

func (m *browserModel) ensureCursorVisible() {
	cursorTop := m.cursor * postingItemHeight
	cursorBottom := cursorTop + postingItemHeight - 1

	if cursorTop < m.listViewport.YOffset {
		m.listViewport.SetYOffset(cursorTop)
	} else if cursorBottom >= m.listViewport.YOffset+m.listViewport.Height {
		m.listViewport.SetYOffset(cursorBottom - m.listViewport.Height + 1)
	}
}

func (m browserModel) selected() *model.Posting {
	if len(m.visible) == 0 {
		return nil
	}
	return &m.visible[m.cursor]
}

func (m *browserModel) recalcLayout() {
	// 2 border chars per pane + 1 gap between panes.
	paneWidth := max((m.width-5)/2, 20)

	// Header (1 line) + border top/bottom (2) + status bar (1) = 4 lines overhead.
	paneHeight := max(m.height-4, 5)

	if !m.ready {
		m.listViewport = viewport.New(paneWidth, paneHeight)
		m.detailViewport = viewport.New(paneWidth, paneHeight)
		m.ready = true
	} else {
		m.listViewport.Width = paneWidth
		m.listViewport.Height = paneHeight
		m.detailViewport.Width = paneWidth
		m.detailViewport.Height = paneHeight
	}

	m.recalcContent()
}

func (m *browserModel) recalcContent() {
	m.listViewport.SetContent(renderPostings(m.visible, m.cursor, m.activePane == 0))

	id := ""
	if p := m.selected(); p != nil {
		id = p.JobID
	}
	if id != m.detailID {
		m.detailID = id
		m.showDescription = false
		m.detailViewport.SetYOffset(0)
	}
	m.detailViewport.SetContent(m.renderDetail())
}

func (m browserModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	paneWidth := m.listViewport.Width

	leftHeader := fmt.Sprintf(" %s (%d/%d)", m.company, len(m.visible), len(m.postings))
	rightHeader := " Details"

	var leftHeaderRendered, rightHeaderRendered string
	var leftBorder, rightBorder lipgloss.Style

	if m.activePane == 0 {
		leftHeaderRendered = activeHeaderStyle.Render(leftHeader)
		rightHeaderRendered = inactiveHeaderStyle.Render(rightHeader)
		leftBorder = activeBorderStyle.Width(paneWidth)
		rightBorder = inactiveBorderStyle.Width(paneWidth)
	} else {
		leftHeaderRendered = inactiveHeaderStyle.Render(leftHeader)
		rightHeaderRendered = activeHeaderStyle.Render(rightHeader)
		leftBorder = inactiveBorderStyle.Width(paneWidth)
		rightBorder = activeBorderStyle.Width(paneWidth)
	}

	leftPane := leftBorder.Render(m.listViewport.View())
	rightPane := rightBorder.Render(m.detailViewport.View())

	headerRow := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(paneWidth+2).Render(leftHeaderRendered),
		" ",
		lipgloss.NewStyle().Width(paneWidth+2).Render(rightHeaderRendered),
	)

	panes := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, " ", rightPane)
	statusBar := statusBarStyle.Width(m.width).Render(m.statusLine())

	return headerRow + "\n" + panes + "\n" + statusBar
}

func (m browserModel) statusLine() string {
	if m.searching {
		return fmt.Sprintf(" title filter: %s_    enter keep  esc clear", m.filter.Query)
	}

	line := fmt.Sprintf(" status: %s", m.status.label())
	if m.filter.Query != "" {
		line += fmt.Sprintf("  title: %q", m.filter.Query)
	}
	line += "    s status  / title  ↑/↓ cursor  Tab pane  r desc  o open  Esc back  q quit"
	return line
}

func (m browserModel) renderDetail() string {
	p := m.selected()
	if p == nil {
		return "  (nothing matches the filter)"
	}

	var b strings.Builder

	addField := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(detailLabelStyle.Render(label))
		b.WriteString(detailValueStyle.Render(value))
		b.WriteByte('\n')
	}

	b.WriteString(detailTitleStyle.Render(p.Title) + "\n")

	addField("Company", p.Company)
	addField("Team", p.Team)
	addField("Location", p.Location)
	addField("Type", p.EmploymentType)
	addField("Remote", p.RemotePolicy)
	addField("Experience", p.ExperienceLevel)
	addField("Salary", p.SalaryRange)

	b.WriteByte('\n')
	b.WriteString(detailLabelStyle.Render("Status"))
	b.WriteString(statusStyles[p.Status].Render(string(p.Status)))
	b.WriteByte('\n')
	addField("First seen", fmtTime(p.FirstSeen))
	addField("Last seen", fmtTime(p.LastSeen))
	if p.UpdatedAt != nil {
		addField("Updated", fmtTime(*p.UpdatedAt))
	}
	addField("Source", string(p.Source))
	addField("Job ID", p.JobID)

	b.WriteByte('\n')
	addField("Job URL", p.JobURL)
	if p.ApplyURL != "" && p.ApplyURL != p.JobURL {
		addField("Apply URL", p.ApplyURL)
	}

	wrapWidth := max(m.detailViewport.Width-4, 20)

	if len(p.Requirements) > 0 {
		b.WriteByte('\n')
		b.WriteString(divider("── Requirements ", wrapWidth) + "\n\n")
		for _, req := range p.Requirements {
			b.WriteString(descBodyStyle.Render("  • "+req) + "\n")
		}
	}

	if p.Description != "" {
		b.WriteByte('\n')
		if m.showDescription {
			b.WriteString(divider("── Description ", wrapWidth) + "\n\n")
			b.WriteString(descBodyStyle.Render(wordWrap(p.Description, wrapWidth)) + "\n")
		} else {
			b.WriteString(descHintStyle.Render("  press r to read the description") + "\n")
		}
	}

	return b.String()
}

func divider(label string, width int) string {
	fill := strings.Repeat("─", max(width-len(label), 3))
	return descDividerStyle.Render(label + fill)
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04 MST")
}

func renderPostings(postings []model.Posting, cursor int, isActive bool) string {
	if len(postings) == 0 {
		return "  (no postings)"
	}

	var b strings.Builder
	for i, p := range postings {
		isSelected := isActive && i == cursor

		titleSt := itemTitleStyle
		subtitleSt := itemSubtitleStyle
		prefix := "  "
		if isSelected {
			titleSt = selectedItemTitleStyle
			subtitleSt = selectedItemSubtitleStyle
			prefix = "> "
		}

		b.WriteString(prefix)
		b.WriteString(titleSt.Render(p.Title))
		b.WriteByte('\n')

		loc := p.Location
		if loc == "" {
			loc = string(p.Source)
		}
		seen := p.LastSeen.Local().Format("2006-01-02")
		b.WriteString(prefix)
		b.WriteString(subtitleSt.Render(fmt.Sprintf("%s · %s · %s", p.Status, loc, seen)))
		b.WriteByte('\n')

		if i < len(postings)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// sortPostings orders newest first so fresh listings surface at the top.
func sortPostings(postings []model.Posting) {
	sort.Slice(postings, func(i, j int) bool {
		if !postings[i].FirstSeen.Equal(postings[j].FirstSeen) {
			return postings[i].FirstSeen.After(postings[j].FirstSeen)
		}
		return postings[i].JobID < postings[j].JobID
	})
}

func wordWrap(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) <= width {
			line += " " + w
		} else {
			lines = append(lines, line)
			line = w
		}
	}
	lines = append(lines, line)
	return strings.Join(lines, "\n")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// openURL opens url in the default system browser, fire-and-forget.
func openURL(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return
	}
	_ = cmd.Start()
}

// runBrowser opens the split list/detail view over one company group.
// It returns wantQuit=true if the user pressed q, false if they pressed
// esc to go back to the picker.
func runBrowser(group companyGroup) (bool, error) {
	postings := make([]model.Posting, len(group.Postings))
	copy(postings, group.Postings)
	sortPostings(postings)

	m := browserModel{
		company:  group.Name,
		postings: postings,
		visible:  postings,
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	result, err := p.Run()
	if err != nil {
		return false, err
	}
	final := result.(browserModel)
	return final.wantQuit, nil
}
