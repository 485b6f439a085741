// Package pages holds the HTML views of the portal as templ components.
package pages

import (
	"fmt"
	"strings"
	"time"

	twmerge "github.com/Oudwins/tailwind-merge-go"
	"github.com/nickoftime/keyvault-spo/internal/models"
)

// SiteName is shown in the header and every page title.
const SiteName = "Nick of Time"

const dateLayout = "Jan 2, 2006"

// ListData is the view model of the home page.
type ListData struct {
	Posts    []models.Post
	ListName string
	Now      time.Time
}

// ErrorData is the view model of the error page.
type ErrorData struct {
	CorrelationID string
}

// statusBadgeClass colours the status badge; expired posts are always muted.
func statusBadgeClass(status string, expired bool) string {
	base := "rounded-full px-2 py-0.5 text-xs font-medium bg-zinc-100 text-zinc-700"
	switch {
	case expired:
		return twmerge.Merge(base, "bg-zinc-200 text-zinc-500 line-through")
	case strings.EqualFold(status, "open"):
		return twmerge.Merge(base, "bg-emerald-100 text-emerald-800")
	case strings.EqualFold(status, "closed"):
		return twmerge.Merge(base, "bg-rose-100 text-rose-800")
	default:
		return base
	}
}

func formatEffort(hours, minutes int) string {
	switch {
	case hours != 0 && minutes != 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case hours != 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(dateLayout)
}

func formatRange(start, end time.Time) string {
	return formatDate(start) + " to " + formatDate(end)
}
