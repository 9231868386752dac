// Package render turns a chat session into terminal output.
//
// Assistant replies are treated as markdown and rendered with glamour; user
// turns and banners are drawn with lipgloss. Rendering never mutates the session.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/ashureev/cosmic-guide/internal/domain"
)

// Options configures a Renderer.
type Options struct {
	// Width is the word-wrap width. Zero means 80.
	Width int
	// Style is a glamour standard style ("dark", "light", "notty", ...).
	// Empty selects the style from the terminal background.
	Style string
}

// UpsellText is shown under a reply that qualified for the consultation offer.
const UpsellText = "Want a personal reading on this? Book a one-to-one consultation with a senior astrologer."

// PremiumText is the premium offer shown once per session to engaged users.
const PremiumText = `Unlock Your Complete Cosmic Blueprint
You're asking the right questions. Get unlimited guidance with:
- Detailed 3-month business roadmap
- Daily auspicious timing alerts
- Team compatibility analysis
- Priority support`

// Renderer draws messages for a terminal.
type Renderer struct {
	md      *glamour.TermRenderer
	width   int
	user    lipgloss.Style
	guide   lipgloss.Style
	meta    lipgloss.Style
	upsell  lipgloss.Style
	premium lipgloss.Style
}

// New creates a Renderer.
func New(opts Options) (*Renderer, error) {
	if opts.Width <= 0 {
		opts.Width = 80
	}
	styleOpt := glamour.WithAutoStyle()
	if opts.Style != "" {
		styleOpt = glamour.WithStandardStyle(opts.Style)
	}
	md, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(opts.Width))
	if err != nil {
		return nil, fmt.Errorf("create markdown renderer: %w", err)
	}

	return &Renderer{
		md:    md,
		width: opts.Width,
		user: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#1d4ed8", Dark: "#93c5fd"}).
			PaddingLeft(2),
		guide: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#7c3aed", Dark: "#c4b5fd"}),
		meta: lipgloss.NewStyle().
			Faint(true),
		upsell: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#f59e0b")).
			Padding(0, 1).
			Width(opts.Width - 4),
		premium: lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("#eab308")).
			Padding(0, 1).
			Width(opts.Width - 4),
	}, nil
}

// Message renders a single message.
func (r *Renderer) Message(m domain.Message) string {
	if m.Role == domain.RoleUser {
		return r.user.Render("You: " + m.Content)
	}

	var b strings.Builder
	b.WriteString(r.guide.Render(m.Guide.Name()))
	if m.Topic != "" {
		b.WriteString(" ")
		b.WriteString(r.meta.Render(fmt.Sprintf("[%s · phase %d]", m.Topic, int(m.Phase))))
	}
	b.WriteString("\n")

	body, err := r.md.Render(m.Content)
	if err != nil {
		body = m.Content + "\n"
	}
	b.WriteString(body)

	if m.Upsell {
		b.WriteString(r.UpsellBanner())
		b.WriteString("\n")
	}
	return b.String()
}

// Transcript renders every message of the session in order.
func (r *Renderer) Transcript(s *domain.Session) string {
	parts := make([]string, 0, len(s.Messages))
	for _, m := range s.Messages {
		parts = append(parts, r.Message(m))
	}
	return strings.Join(parts, "\n")
}

// Status renders the one-line topic and phase indicator.
func (r *Renderer) Status(s *domain.Session) string {
	topic := s.CurrentTopic
	if topic == "" {
		topic = domain.TopicGeneral
	}
	return r.meta.Render(fmt.Sprintf("%s · topic %s · phase %d (%s)", s.Guide.Name(), topic, int(s.Phase), s.Phase))
}

// UpsellBanner renders the consultation offer.
func (r *Renderer) UpsellBanner() string {
	return r.upsell.Render(UpsellText)
}

// PremiumBanner renders the premium offer.
func (r *Renderer) PremiumBanner() string {
	return r.premium.Render(PremiumText)
}
