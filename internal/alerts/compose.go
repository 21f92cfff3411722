package alerts

import (
	"fmt"
	"html"
	"strings"

	"naijaedu/alerts-service/internal/model"
)

// previewLimit is how many hits are listed in a saved-search email.
const previewLimit = 5

// Composer builds alert messages.
type Composer struct {
	baseURL string
}

// NewComposer returns a Composer linking back to baseURL.
func NewComposer(baseURL string) *Composer {
	return &Composer{baseURL: strings.TrimRight(baseURL, "/")}
}

func greeting(u model.UserProfile) string {
	if name := strings.TrimSpace(u.FullName); name != "" {
		return "Hello " + name + ","
	}
	return "Hello,"
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// SavedSearch composes the new-results email for ss. hits must be non-empty.
func (c *Composer) SavedSearch(u model.UserProfile, ss model.SavedSearch, hits []model.IndexHit) model.NotificationMessage {
	total := len(hits)
	preview := hits
	if len(preview) > previewLimit {
		preview = preview[:previewLimit]
	}
	remaining := total - len(preview)
	link := fmt.Sprintf("%s/saved-searches/%s", c.baseURL, ss.ID)

	subject := fmt.Sprintf("%d new %s for %q", total, plural(total, "result", "results"), ss.Name)

	var text, body strings.Builder
	fmt.Fprintf(&text, "%s\n\nYour saved search %q has %d new %s:\n\n",
		greeting(u), ss.Name, total, plural(total, "match", "matches"))
	fmt.Fprintf(&body, "<p>%s</p><p>Your saved search <strong>%s</strong> has %d new %s:</p><ul>",
		html.EscapeString(greeting(u)), html.EscapeString(ss.Name), total, plural(total, "match", "matches"))

	for _, h := range preview {
		line := h.Name
		if h.InstitutionName != "" {
			line += " — " + h.InstitutionName
		}
		if h.State != "" {
			line += " (" + h.State + ")"
		}
		fmt.Fprintf(&text, "  • %s\n", line)
		fmt.Fprintf(&body, "<li>%s</li>", html.EscapeString(line))
	}
	body.WriteString("</ul>")

	if remaining > 0 {
		fmt.Fprintf(&text, "\n…and %d more.\n", remaining)
		fmt.Fprintf(&body, "<p>…and %d more.</p>", remaining)
	}
	fmt.Fprintf(&text, "\nView all results: %s\n", link)
	fmt.Fprintf(&body, `<p><a href="%s">View all results</a></p>`, html.EscapeString(link))

	return model.NotificationMessage{
		To:      u.Email,
		Subject: subject,
		HTML:    body.String(),
		Text:    text.String(),
	}
}

// Deadline composes a deadline alert for one bookmarking user.
func (c *Composer) Deadline(u model.UserProfile, p model.Program, institution string, daysRemaining int, urgency Urgency) model.NotificationMessage {
	when := "today"
	if daysRemaining > 0 {
		when = fmt.Sprintf("in %d %s", daysRemaining, plural(daysRemaining, "day", "days"))
	}

	var subject string
	switch urgency {
	case UrgencyUrgent:
		subject = fmt.Sprintf("Urgent: %s application closes %s", p.Name, when)
	default:
		subject = fmt.Sprintf("Reminder: %s application deadline %s", p.Name, when)
	}

	deadline := p.ApplicationDeadline.Format("Monday, 2 January 2006")
	link := fmt.Sprintf("%s/programs/%s", c.baseURL, p.ID)

	text := fmt.Sprintf("%s\n\nThe application window for %s at %s closes %s (%s).\n\nView programme: %s\n",
		greeting(u), p.Name, institution, when, deadline, link)
	body := fmt.Sprintf(`<p>%s</p><p>The application window for <strong>%s</strong> at %s closes %s (%s).</p><p><a href="%s">View programme</a></p>`,
		html.EscapeString(greeting(u)), html.EscapeString(p.Name), html.EscapeString(institution),
		when, deadline, html.EscapeString(link))

	return model.NotificationMessage{
		To:      u.Email,
		Subject: subject,
		HTML:    body,
		Text:    text,
	}
}
