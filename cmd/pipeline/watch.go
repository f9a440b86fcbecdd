package main

import (
	"context"
	"fmt"
	"time"

	"github.com/terrencegiggy/content-pipeline/internal/types"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// maxReloadLines caps how many fsnotify reload lines the TUI keeps
// on screen, newest last.
const maxReloadLines = 5

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch registry and manifest state live while a run is in flight",
	RunE: func(cmd *cobra.Command, args []string) error {
		wp, err := wire()
		if err != nil {
			return fmt.Errorf("wire pipeline: %w", err)
		}

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("start reload watcher: %w", err)
		}
		defer watcher.Close()
		if err := watcher.Add(cfg.StorageRoot); err != nil {
			log.Warn("watch: could not watch storage root for live reloads", zap.String("path", cfg.StorageRoot), zap.Error(err))
		}
		if err := watcher.Add(configPath); err != nil {
			log.Warn("watch: could not watch config file for live reloads", zap.String("path", configPath), zap.Error(err))
		}

		m := newWatchModel(wp, watcher)
		p := tea.NewProgram(m)
		_, err = p.Run()
		return err
	},
}

var (
	watchHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	watchDimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

type watchSnapshot struct {
	sourcesByStatus   map[types.SourceStatus]int
	pendingInitial    int
	entriesByStatus   map[types.ManifestStatus]int
	extractionPending int
	err               error
}

type watchTickMsg time.Time

// watchReloadMsg is one fsnotify event (or error) formatted for
// display, surfaced as an informational line rather than acted on —
// watch is read-only, it never reloads config or re-wires the
// pipeline mid-run.
type watchReloadMsg string

type watchModel struct {
	wp       *wiredPipeline
	spinner  spinner.Model
	snapshot watchSnapshot
	started  time.Time

	watcher  *fsnotify.Watcher
	reloads  []string
	renderer *glamour.TermRenderer
	summary  string
}

func newWatchModel(wp *wiredPipeline, watcher *fsnotify.Watcher) watchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	return watchModel{wp: wp, spinner: sp, started: time.Now(), watcher: watcher, renderer: renderer}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.poll(), watchTick(), m.waitForReload())
}

func watchTick() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg { return watchTickMsg(t) })
}

// waitForReload blocks on the next fsnotify event or error and
// reports it as a watchReloadMsg; Update re-issues this command after
// every message so the watch keeps listening for the life of the run.
func (m watchModel) waitForReload() tea.Cmd {
	watcher := m.watcher
	if watcher == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			return watchReloadMsg(fmt.Sprintf("%s %s", ev.Op, ev.Name))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return watchReloadMsg(fmt.Sprintf("watch error: %v", err))
		}
	}
}

// poll reads registry/manifest state in the background and reports a
// fresh snapshot; it never blocks the Update loop.
func (m watchModel) poll() tea.Cmd {
	wp := m.wp
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		snap := watchSnapshot{
			sourcesByStatus: map[types.SourceStatus]int{},
			entriesByStatus: map[types.ManifestStatus]int{},
		}

		sources, err := wp.registry.List(ctx, "", "")
		if err != nil {
			snap.err = err
			return snap
		}
		for _, s := range sources {
			snap.sourcesByStatus[s.Status]++
			if s.PendingInitialAcquisition() {
				snap.pendingInitial++
			}
		}

		entries, err := wp.manifest.All(ctx)
		if err != nil {
			snap.err = err
			return snap
		}
		for _, e := range entries {
			snap.entriesByStatus[e.Status]++
			if e.Status == types.ManifestStatusCompleted && !e.Metadata.ExtractionComplete && !e.Metadata.ExtractionSkipped {
				snap.extractionPending++
			}
		}

		return snap
	}
}

// renderSummary renders the snapshot as a short markdown summary
// through glamour, caching the result so View doesn't re-render on
// every spinner frame — only when the snapshot actually changes.
func (m watchModel) renderSummary(snap watchSnapshot) string {
	if m.renderer == nil {
		return ""
	}
	md := fmt.Sprintf(
		"## run summary\n\n- pending initial acquisition: **%d**\n- extraction pending: **%d**\n",
		snap.pendingInitial, snap.extractionPending,
	)
	out, err := m.renderer.Render(md)
	if err != nil {
		return ""
	}
	return out
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}
	case watchTickMsg:
		return m, tea.Batch(m.poll(), watchTick())
	case watchSnapshot:
		m.snapshot = msg
		m.summary = m.renderSummary(msg)
		return m, nil
	case watchReloadMsg:
		m.reloads = append(m.reloads, string(msg))
		if len(m.reloads) > maxReloadLines {
			m.reloads = m.reloads[len(m.reloads)-maxReloadLines:]
		}
		return m, m.waitForReload()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m watchModel) View() string {
	elapsed := time.Since(m.started).Round(time.Second)
	header := fmt.Sprintf("%s %s  elapsed %s\n\n", m.spinner.View(), watchHeaderStyle.Render("content-acquisition pipeline"), elapsed)

	if m.snapshot.err != nil {
		return header + fmt.Sprintf("error reading state: %v\n", m.snapshot.err)
	}

	body := watchHeaderStyle.Render("sources") + "\n"
	for status, count := range m.snapshot.sourcesByStatus {
		body += fmt.Sprintf("  %-16s %d\n", status, count)
	}
	body += fmt.Sprintf("  %-16s %d\n\n", "pending initial", m.snapshot.pendingInitial)

	body += watchHeaderStyle.Render("manifest") + "\n"
	for status, count := range m.snapshot.entriesByStatus {
		body += fmt.Sprintf("  %-16s %d\n", status, count)
	}
	body += fmt.Sprintf("  %-16s %d\n\n", "extraction pending", m.snapshot.extractionPending)

	if m.summary != "" {
		body += m.summary + "\n"
	}

	if len(m.reloads) > 0 {
		body += watchHeaderStyle.Render("reloads") + "\n"
		for _, r := range m.reloads {
			body += fmt.Sprintf("  %s\n", r)
		}
		body += "\n"
	}

	body += watchDimStyle.Render("q to quit")
	return header + body
}
