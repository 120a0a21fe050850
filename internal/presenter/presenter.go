// Package presenter renders events as chat replies.
package presenter

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/capitalize-ai/hostbot/internal/model"
)

const (
	// NoEvents is shown when nothing is upcoming.
	NoEvents = "No upcoming parties 🎉"
	// ContactLabel labels the per-event contact link.
	ContactLabel = "Message Host"

	anonymousHost = "anonymous"
	dayLayout     = "02 Jan"
	timeLayout    = "15:04"
)

// Presenter formats event listings.
type Presenter struct {
	currency string
}

// New creates a presenter showing costs in currency.
func New(currency string) *Presenter {
	return &Presenter{currency: currency}
}

// Listing returns one reply per event, each carrying a contact link.
func (p *Presenter) Listing(events []model.Event) []model.Reply {
	if len(events) == 0 {
		return []model.Reply{{Text: NoEvents}}
	}

	replies := make([]model.Reply, 0, len(events))
	for _, ev := range events {
		link := ContactLink(ev)
		replies = append(replies, model.Reply{
			Text: p.FormatEvent(ev),
			Link: &link,
		})
	}
	return replies
}

// FormatEvent renders the body of a single event.
func (p *Presenter) FormatEvent(ev model.Event) string {
	host := anonymousHost
	if ev.HostDisplayName != nil && *ev.HostDisplayName != "" {
		host = "@" + *ev.HostDisplayName
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🎉 Host: %s\n", host)
	fmt.Fprintf(&b, "🕒 Time: %s\n", formatSpan(ev))
	fmt.Fprintf(&b, "💵 Cost: %s %s\n", ev.Cost.String(), p.currency)
	fmt.Fprintf(&b, "📍 Area: %s", ev.Area)
	return b.String()
}

func formatSpan(ev model.Event) string {
	start := ev.StartTime.Format(dayLayout + " " + timeLayout)
	sy, sm, sd := ev.StartTime.Date()
	ey, em, ed := ev.EndTime.Date()
	if sy == ey && sm == em && sd == ed {
		return start + " - " + ev.EndTime.Format(timeLayout)
	}
	return start + " - " + ev.EndTime.Format(dayLayout+" "+timeLayout)
}

// ContactLink points at the host's chat. Hosts with a public username get a
// t.me link; others are addressed by numeric id.
func ContactLink(ev model.Event) model.Link {
	if ev.HostDisplayName != nil && *ev.HostDisplayName != "" {
		return model.Link{
			Label: ContactLabel,
			URL:   "https://t.me/" + url.PathEscape(*ev.HostDisplayName),
		}
	}
	return model.Link{
		Label: ContactLabel,
		URL:   "tg://user?id=" + strconv.FormatInt(ev.HostID, 10),
	}
}
