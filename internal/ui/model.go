// Package ui is the bubbletea front end: a single-threaded event loop that
// owns the cache hierarchy, drains the loader and rally channels, and
// enforces the diff-cache invariants at state-transition points.
package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/dharper/prview/internal/cache"
	"github.com/dharper/prview/internal/config"
	"github.com/dharper/prview/internal/diffmodel"
	"github.com/dharper/prview/internal/github"
	"github.com/dharper/prview/internal/loader"
	"github.com/dharper/prview/internal/rally"
)

// Focus identifies which pane receives navigation keys.
type Focus int

const (
	// FocusFiles is the changed-file list.
	FocusFiles Focus = iota
	// FocusDiff is the diff pane.
	FocusDiff
	// FocusRally is the rally event panel.
	FocusRally
)

type inputMode int

const (
	inputNone inputMode = iota
	inputComment
	inputClarification
)

// Submitter posts review comments back to the platform.
type Submitter interface {
	SubmitReview(ctx context.Context, repo string, number int, body string, action github.ReviewAction, inline []github.InlineComment) error
}

// RallyStarter launches a rally orchestrator for the given context and
// returns its event stream and command channel. The orchestrator runs on its
// own goroutine; the event channel closes when it returns.
type RallyStarter interface {
	Start(ctx context.Context, rctx *rally.Context) (<-chan rally.Event, chan<- rally.Command, error)
}

// Options configures a Model.
type Options struct {
	Config     *config.Config
	Logger     zerolog.Logger
	Loader     *loader.Loader
	Submitter  Submitter
	Rally      RallyStarter
	Disk       *cache.DiskStore
	Key        cache.PRKey
	LocalMode  bool
	WorkingDir string
	// StartRally launches a rally as soon as PR data is loaded.
	StartRally bool
}

// Model is the bubbletea model. All cache tiers are owned here and mutated
// only inside Update; workers communicate over the receiver channels.
type Model struct {
	cfg        *config.Config
	log        zerolog.Logger
	load       *loader.Loader
	submitter  Submitter
	starter    RallyStarter
	disk       *cache.DiskStore
	key        cache.PRKey
	localMode  bool
	workingDir string

	// Cache hierarchy: L1 session data, L2 prefetched highlighted caches,
	// L3 the active cache the renderer reads.
	session  *cache.SessionCache
	prefetch *cache.PrefetchStore
	active   *cache.DiffCache

	data    *cache.PRData
	dataErr error
	loading bool

	selectedFile int
	fileScroll   int
	selectedLine int
	diffScroll   int

	// Receivers. Replaced wholesale on PR switch; every message carries the
	// channel it came from and is dropped when the channel no longer matches.
	dataCh      <-chan loader.DataResult
	commentsCh  <-chan loader.CommentsResult
	highlightCh <-chan loader.PrefetchResult
	prefetchCh  <-chan loader.PrefetchResult

	buildCancel    context.CancelFunc
	prefetchCancel context.CancelFunc

	panel       *rallyPanel
	rallyCh     <-chan rally.Event
	rallyCmds   chan<- rally.Command
	rallyCancel context.CancelFunc
	startOnLoad bool

	inputMode  inputMode
	input      textinput.Model
	submitting bool

	focus  Focus
	spin   spinner.Model
	status StatusBar
	width  int
	height int
	err    error
}

// New creates the model. A fresh disk snapshot, when present, is installed
// immediately so the first frame renders data; Init still schedules a
// revalidating fetch.
func New(opts Options) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	ti := textinput.New()
	ti.CharLimit = 0

	m := &Model{
		cfg:         opts.Config,
		log:         opts.Logger,
		load:        opts.Loader,
		submitter:   opts.Submitter,
		starter:     opts.Rally,
		disk:        opts.Disk,
		key:         opts.Key,
		localMode:   opts.LocalMode,
		workingDir:  opts.WorkingDir,
		session:     cache.NewSessionCache(),
		prefetch:    cache.NewPrefetchStore(),
		loading:     true,
		startOnLoad: opts.StartRally,
		input:       ti,
		spin:        sp,
		status:      NewStatusBar(opts.Key, opts.LocalMode),
	}

	if m.disk != nil && !m.localMode {
		if data, _, err := m.disk.Load(m.key); err == nil && data != nil {
			m.data = data
			m.loading = false
			m.session.Put(m.key, data)
		}
	}
	return m
}

// Init starts the spinner, the clock tick, and the initial load.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tea.EnterAltScreen, m.spin.Tick, tickCmd()}

	if m.localMode {
		cmds = append(cmds, m.loadLocalCmd())
		return tea.Batch(cmds...)
	}

	// Revalidate a snapshot conditionally; fetch fresh otherwise.
	mode, prev := loader.Fresh, time.Time{}
	if m.data != nil {
		mode, prev = loader.CheckUpdate, m.data.PR.UpdatedAt
	}
	cmds = append(cmds, m.fetchData(mode, prev))

	if m.data != nil {
		if cmd := m.ensureDiffCache(); cmd != nil {
			cmds = append(cmds, cmd)
		}
		if cmd := m.startPrefetch(); cmd != nil {
			cmds = append(cmds, cmd)
		}
		cmds = append(cmds, m.fetchComments())
	}
	return tea.Batch(cmds...)
}

// Update is the single-threaded event loop tick.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case TickMsg:
		return m, tickCmd()

	case DataMsg:
		return m.handleData(msg)

	case LocalDataMsg:
		return m.handleLocalData(msg)

	case CommentsMsg:
		return m.handleComments(msg)

	case HighlightMsg:
		return m.handleHighlight(msg)

	case PrefetchMsg:
		return m.handlePrefetch(msg)

	case RallyMsg:
		return m.handleRally(msg)

	case CommentSubmittedMsg:
		m.submitting = false
		if msg.Err != nil {
			m.status.SetMessage(false, fmt.Sprintf("Failed: %v", msg.Err))
			return m, nil
		}
		m.status.SetMessage(true, "Comment submitted")
		if msg.PRNumber == m.key.Number {
			return m, m.fetchComments()
		}
		return m, nil

	case ErrorMsg:
		m.err = msg.Err
		return m, nil
	}

	return m, nil
}

// View renders the frame.
func (m *Model) View() string {
	return RenderView(m)
}

// Commands

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return TickMsg{}
	})
}

func (m *Model) fetchData(mode loader.Mode, prev time.Time) tea.Cmd {
	m.dataCh = m.load.FetchPRData(context.Background(), m.key, mode, prev)
	return readData(m.dataCh)
}

func (m *Model) fetchComments() tea.Cmd {
	if m.localMode {
		return nil
	}
	m.commentsCh = m.load.FetchComments(context.Background(), m.key)
	return readComments(m.commentsCh)
}

func readData(ch <-chan loader.DataResult) tea.Cmd {
	return func() tea.Msg {
		res, ok := <-ch
		if !ok {
			return nil
		}
		return DataMsg{Res: res, Ch: ch}
	}
}

func readComments(ch <-chan loader.CommentsResult) tea.Cmd {
	return func() tea.Msg {
		res, ok := <-ch
		if !ok {
			return nil
		}
		return CommentsMsg{Res: res, Ch: ch}
	}
}

func readHighlight(ch <-chan loader.PrefetchResult) tea.Cmd {
	return func() tea.Msg {
		res, ok := <-ch
		return HighlightMsg{Res: res, OK: ok, Ch: ch}
	}
}

func readPrefetch(ch <-chan loader.PrefetchResult) tea.Cmd {
	return func() tea.Msg {
		res, ok := <-ch
		return PrefetchMsg{Res: res, OK: ok, Ch: ch}
	}
}

func readRally(ch <-chan rally.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		return RallyMsg{Event: ev, OK: ok, Ch: ch}
	}
}

// Message handlers

func (m *Model) handleData(msg DataMsg) (tea.Model, tea.Cmd) {
	if msg.Ch != m.dataCh {
		return m, nil
	}
	m.dataCh = nil

	res := msg.Res
	if res.Err != nil {
		m.loading = false
		if m.data == nil {
			m.dataErr = res.Err
		}
		m.status.SetError(res.Err)
		return m, nil
	}
	if res.Unchanged {
		m.loading = false
		return m, nil
	}
	if res.Key != m.key {
		// A switch raced the fetch; keep the data warm for a switch back.
		m.session.Put(res.Key, res.Data)
		return m, nil
	}
	return m, m.installData(res.Data)
}

func (m *Model) handleLocalData(msg LocalDataMsg) (tea.Model, tea.Cmd) {
	if !m.localMode {
		return m, nil
	}
	m.loading = false
	if msg.Err != nil {
		if m.data == nil {
			m.dataErr = msg.Err
		}
		m.status.SetError(msg.Err)
		return m, nil
	}
	data := &cache.PRData{
		PR: github.PullRequest{
			Number:    0,
			Title:     "Local changes",
			State:     "LOCAL",
			UpdatedAt: time.Now(),
		},
		Files:     msg.Files,
		FetchedAt: time.Now(),
	}
	return m, m.installData(data)
}

// installData swaps in a full PR data replacement and restores the pipeline
// behind it: active cache, prefetch batch, comments.
func (m *Model) installData(data *cache.PRData) tea.Cmd {
	m.data = data
	m.dataErr = nil
	m.loading = false
	m.status.SetError(nil)
	m.session.Put(m.key, data)
	if m.disk != nil && !m.localMode {
		if err := m.disk.Save(m.key, data); err != nil {
			m.log.Warn().Err(err).Msg("snapshot save failed")
		}
	}

	if len(data.Files) == 0 {
		m.selectedFile = 0
		m.active = nil
	} else if m.selectedFile >= len(data.Files) {
		m.selectedFile = len(data.Files) - 1
	}
	m.selectedLine = 0
	m.diffScroll = 0

	var cmds []tea.Cmd
	if cmd := m.ensureDiffCache(); cmd != nil {
		cmds = append(cmds, cmd)
	}
	if cmd := m.startPrefetch(); cmd != nil {
		cmds = append(cmds, cmd)
	}
	if !m.localMode && data.ReviewComments == nil {
		cmds = append(cmds, m.fetchComments())
	}
	if m.startOnLoad {
		m.startOnLoad = false
		if cmd := m.startRally(); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	if len(cmds) == 0 {
		return nil
	}
	return tea.Batch(cmds...)
}

func (m *Model) handleComments(msg CommentsMsg) (tea.Model, tea.Cmd) {
	if msg.Ch != m.commentsCh {
		return m, nil
	}
	m.commentsCh = nil

	res := msg.Res
	if res.Err != nil {
		m.status.SetError(res.Err)
		return m, nil
	}
	// Comments attach only to a present PR entry; they never outlive it.
	m.session.SetReviewComments(res.Key, res.Review)
	m.session.SetDiscussionComments(res.Key, res.Discussion)
	if res.Key == m.key && m.data != nil {
		m.data.ReviewComments = res.Review
		m.data.DiscussionComments = res.Discussion
	}
	return m, nil
}

func (m *Model) handleHighlight(msg HighlightMsg) (tea.Model, tea.Cmd) {
	if msg.Ch != m.highlightCh {
		return m, nil
	}
	m.highlightCh = nil
	if !msg.OK || msg.Res.Cache == nil {
		return m, nil
	}

	// Validate the triple at receipt; a mismatch means the selection moved
	// underneath the build and the result is discarded.
	res := msg.Res
	if res.Key != m.key {
		return m, nil
	}
	file, ok := m.currentFile()
	if !ok {
		return m, nil
	}
	if res.Cache.FileIndex != m.selectedFile || res.Cache.PatchHash != diffmodel.PatchHash(file.Patch) {
		return m, nil
	}
	m.active = res.Cache
	m.prefetch.Put(m.key, res.Cache, m.selectedFile)
	return m, nil
}

func (m *Model) handlePrefetch(msg PrefetchMsg) (tea.Model, tea.Cmd) {
	if msg.Ch != m.prefetchCh {
		return m, nil
	}
	if !msg.OK {
		m.prefetchCh = nil
		return m, nil
	}

	res := msg.Res
	if res.Key == m.key && res.Cache != nil && m.data != nil {
		if idx := res.Cache.FileIndex; idx < len(m.data.Files) {
			if res.Cache.PatchHash == diffmodel.PatchHash(m.data.Files[idx].Patch) {
				m.prefetch.Put(m.key, res.Cache, m.selectedFile)
			}
		}
	}
	return m, readPrefetch(m.prefetchCh)
}

// Cache management

// ensureDiffCache performs the three-tier lookup for the selected file:
// active cache, prefetch store, then a synchronous plain build with a
// highlighted build dispatched to a worker.
func (m *Model) ensureDiffCache() tea.Cmd {
	file, ok := m.currentFile()
	if !ok || file.Patch == "" {
		m.active = nil
		return nil
	}
	hash := diffmodel.PatchHash(file.Patch)

	if m.active.Matches(m.selectedFile, hash) {
		return nil
	}

	// Drop any in-flight build for the previous selection.
	m.cancelBuild()

	if dc, ok := m.prefetch.Get(m.key, m.selectedFile, hash); ok {
		m.active = dc
		return nil
	}

	m.active = cache.BuildPlain(cache.BuildInput{
		PR:        m.key,
		FileIndex: m.selectedFile,
		Path:      file.Path,
		Patch:     file.Patch,
	})

	ctx, cancel := context.WithCancel(context.Background())
	m.buildCancel = cancel
	m.highlightCh = loader.StartHighlightBuild(ctx, m.key, loader.PrefetchJob{
		FileIndex: m.selectedFile,
		Path:      file.Path,
		Patch:     file.Patch,
	})
	return readHighlight(m.highlightCh)
}

// startPrefetch schedules highlighted builds for files not yet cached.
func (m *Model) startPrefetch() tea.Cmd {
	m.cancelPrefetch()
	if m.data == nil {
		return nil
	}

	candidates := make([]loader.PrefetchJob, 0, len(m.data.Files))
	for i, f := range m.data.Files {
		if f.Patch == "" {
			continue
		}
		candidates = append(candidates, loader.PrefetchJob{FileIndex: i, Path: f.Path, Patch: f.Patch})
	}
	jobs := loader.PrefetchJobs(m.key, candidates, func(i int) bool {
		hash := diffmodel.PatchHash(m.data.Files[i].Patch)
		if m.active.Matches(i, hash) && m.active.Highlighted {
			return true
		}
		return m.prefetch.Contains(m.key, i, hash)
	})
	if len(jobs) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.prefetchCancel = cancel
	m.prefetchCh = loader.StartPrefetch(ctx, m.key, jobs)
	return readPrefetch(m.prefetchCh)
}

func (m *Model) cancelBuild() {
	if m.buildCancel != nil {
		m.buildCancel()
		m.buildCancel = nil
	}
	m.highlightCh = nil
}

func (m *Model) cancelPrefetch() {
	if m.prefetchCancel != nil {
		m.prefetchCancel()
		m.prefetchCancel = nil
	}
	m.prefetchCh = nil
}

// SwitchPR replaces the entire per-PR state: receivers are dropped, the
// prefetch store purged, and data restored from the session cache or
// fetched.
func (m *Model) SwitchPR(key cache.PRKey) tea.Cmd {
	if key == m.key {
		return nil
	}
	m.key = key
	m.status = NewStatusBar(key, m.localMode)
	m.selectedFile = 0
	m.selectedLine = 0
	m.diffScroll = 0
	m.fileScroll = 0
	m.active = nil
	m.data = nil
	m.dataErr = nil
	m.prefetch.PurgeAll()
	m.cancelBuild()
	m.cancelPrefetch()
	m.dataCh = nil
	m.commentsCh = nil

	if data, ok := m.session.Get(key); ok {
		return m.installData(data)
	}
	m.loading = true
	return m.fetchData(loader.Fresh, time.Time{})
}

// refresh invalidates every tier and refetches.
func (m *Model) refresh() tea.Cmd {
	m.session.InvalidateAll()
	m.prefetch.PurgeAll()
	m.active = nil
	m.data = nil
	m.cancelBuild()
	m.cancelPrefetch()
	m.dataCh = nil
	m.commentsCh = nil
	m.loading = true
	if m.localMode {
		return m.loadLocalCmd()
	}
	return m.fetchData(loader.Fresh, time.Time{})
}

// selectFile moves the selection and re-establishes the active cache.
func (m *Model) selectFile(index int) tea.Cmd {
	if m.data == nil || len(m.data.Files) == 0 {
		return nil
	}
	if index < 0 {
		index = 0
	}
	if index >= len(m.data.Files) {
		index = len(m.data.Files) - 1
	}
	if index == m.selectedFile {
		return nil
	}
	m.selectedFile = index
	m.selectedLine = 0
	m.diffScroll = 0
	return m.ensureDiffCache()
}

func (m *Model) currentFile() (github.ChangedFile, bool) {
	if m.data == nil || m.selectedFile >= len(m.data.Files) {
		return github.ChangedFile{}, false
	}
	return m.data.Files[m.selectedFile], true
}

// commentLines returns the set of new-file line numbers of the selected
// file that carry review comments. Computed at render time so caches stay
// untouched by comment arrivals.
func (m *Model) commentLines() map[int]int {
	out := make(map[int]int)
	file, ok := m.currentFile()
	if !ok || m.data == nil {
		return out
	}
	for _, c := range m.data.ReviewComments {
		if c.Path == file.Path && c.Line > 0 {
			out[c.Line]++
		}
	}
	return out
}

// Input handling

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.inputMode != inputNone {
		return m.handleInputKey(msg)
	}

	if m.err != nil {
		m.err = nil
		return m, nil
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, m.quit()

	case "r":
		return m, m.refresh()

	case "tab":
		m.cycleFocus()
		return m, nil

	case "a":
		return m, m.startRally()
	}

	switch m.focus {
	case FocusFiles:
		return m.handleFileListKey(msg)
	case FocusDiff:
		return m.handleDiffKey(msg)
	case FocusRally:
		return m.handleRallyKey(msg)
	}
	return m, nil
}

func (m *Model) handleFileListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		return m, m.selectFile(m.selectedFile + 1)
	case "k", "up":
		return m, m.selectFile(m.selectedFile - 1)
	case "g", "home":
		return m, m.selectFile(0)
	case "G", "end":
		if m.data != nil {
			return m, m.selectFile(len(m.data.Files) - 1)
		}
	case "enter", "l", "right":
		m.focus = FocusDiff
	}
	return m, nil
}

func (m *Model) handleDiffKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	lineCount := 0
	if m.active != nil {
		lineCount = len(m.active.Lines)
	}

	switch msg.String() {
	case "j", "down":
		if m.selectedLine < lineCount-1 {
			m.selectedLine++
			m.scrollToSelected()
		}
	case "k", "up":
		if m.selectedLine > 0 {
			m.selectedLine--
			m.scrollToSelected()
		}
	case "ctrl+d", "pgdown":
		m.selectedLine = min(m.selectedLine+diffPageSize(m.height), lineCount-1)
		if m.selectedLine < 0 {
			m.selectedLine = 0
		}
		m.scrollToSelected()
	case "ctrl+u", "pgup":
		m.selectedLine = max(m.selectedLine-diffPageSize(m.height), 0)
		m.scrollToSelected()
	case "g", "home":
		m.selectedLine = 0
		m.scrollToSelected()
	case "G", "end":
		if lineCount > 0 {
			m.selectedLine = lineCount - 1
		}
		m.scrollToSelected()
	case "c":
		return m, m.openCommentInput()
	case "h", "left", "esc":
		m.focus = FocusFiles
	}
	return m, nil
}

func (m *Model) handleRallyKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.panel == nil {
		m.focus = FocusFiles
		return m, nil
	}

	switch msg.String() {
	case "y":
		if m.panel.pendingPermission != nil {
			m.panel.pendingPermission = nil
			m.sendRally(rally.Command{Kind: rally.CommandPermissionResponse, Approved: true})
		} else if m.panel.pendingPost {
			m.panel.pendingPost = false
			m.sendRally(rally.Command{Kind: rally.CommandPostConfirmResponse, Approved: true})
		}
	case "n":
		if m.panel.pendingPermission != nil {
			m.panel.pendingPermission = nil
			m.sendRally(rally.Command{Kind: rally.CommandPermissionResponse, Approved: false})
		} else if m.panel.pendingPost {
			m.panel.pendingPost = false
			m.sendRally(rally.Command{Kind: rally.CommandPostConfirmResponse, Approved: false})
		}
	case "x":
		if !m.panel.state.Terminal() {
			m.sendRally(rally.Command{Kind: rally.CommandAbort})
		}
	case "j", "down":
		m.panel.scroll++
	case "k", "up":
		if m.panel.scroll > 0 {
			m.panel.scroll--
		}
	case "G", "end":
		m.panel.scroll = -1
	case "esc":
		m.focus = FocusFiles
	}
	return m, nil
}

func (m *Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		value := m.input.Value()
		mode := m.inputMode
		m.closeInput()
		switch mode {
		case inputComment:
			return m, m.submitComment(value)
		case inputClarification:
			if m.panel != nil {
				m.panel.pendingQuestion = ""
			}
			m.sendRally(rally.Command{Kind: rally.CommandClarificationAnswer, Answer: value})
		}
		return m, nil

	case "esc":
		mode := m.inputMode
		m.closeInput()
		if mode == inputClarification {
			if m.panel != nil {
				m.panel.pendingQuestion = ""
			}
			m.sendRally(rally.Command{Kind: rally.CommandSkipClarification})
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) cycleFocus() {
	switch m.focus {
	case FocusFiles:
		m.focus = FocusDiff
	case FocusDiff:
		if m.panel != nil {
			m.focus = FocusRally
		} else {
			m.focus = FocusFiles
		}
	case FocusRally:
		m.focus = FocusFiles
	}
}

func (m *Model) openCommentInput() tea.Cmd {
	if m.localMode {
		m.status.SetMessage(false, "Comments are disabled in local mode")
		return nil
	}
	if m.active == nil || m.selectedLine >= len(m.active.Lines) {
		return nil
	}
	if m.active.Lines[m.selectedLine].NewLine == 0 {
		m.status.SetMessage(false, "Select an added or context line to comment")
		return nil
	}
	m.inputMode = inputComment
	m.input.Placeholder = "Comment"
	m.input.SetValue("")
	return m.input.Focus()
}

func (m *Model) closeInput() {
	m.inputMode = inputNone
	m.input.Blur()
	m.input.SetValue("")
}

func (m *Model) scrollToSelected() {
	height := diffViewHeight(m.height)
	if m.selectedLine < m.diffScroll {
		m.diffScroll = m.selectedLine
	}
	if m.selectedLine >= m.diffScroll+height {
		m.diffScroll = m.selectedLine - height + 1
	}
}

func (m *Model) quit() tea.Cmd {
	if m.rallyCancel != nil {
		m.rallyCancel()
	}
	m.cancelBuild()
	m.cancelPrefetch()
	return tea.Quit
}

// Comment submission

func (m *Model) submitComment(body string) tea.Cmd {
	if body == "" || m.submitter == nil || m.submitting {
		return nil
	}
	file, ok := m.currentFile()
	if !ok || m.active == nil || m.selectedLine >= len(m.active.Lines) {
		return nil
	}
	line := m.active.Lines[m.selectedLine].NewLine
	position, ok := diffmodel.LineNumberToPosition(file.Patch, line)
	if !ok {
		m.status.SetMessage(false, "Line is outside the diff")
		return nil
	}

	m.submitting = true
	repo, number := m.key.Repo, m.key.Number
	path := file.Path
	submitter := m.submitter
	return func() tea.Msg {
		err := submitter.SubmitReview(context.Background(), repo, number, "", github.ReviewCommentAction, []github.InlineComment{
			{Path: path, Position: position, Body: body},
		})
		return CommentSubmittedMsg{PRNumber: number, Err: err}
	}
}
