package sorter

import (
	"fmt"
	"strings"

	"gmailsorter/internal/model"
)

// Notice is the user-facing summary of a run.
type Notice struct {
	Title string
	Body  string
	Items []NoticeItem
}

// NoticeItem is one line of a Notice.
type NoticeItem struct {
	Title   string
	Message string
}

// NoticeFor turns a report into the text shown to the user.
func NoticeFor(rep model.Report) Notice {
	if rep.Err != nil {
		return Notice{
			Title: "Gmail Sorter - Error",
			Body:  "An error occurred: " + rep.Err.Error(),
		}
	}

	n := Notice{Title: "Gmail Sorter - Cleanup Finished"}
	if len(rep.Records) == 0 {
		n.Body = "No emails were processed in this run."
		if rep.Failed > 0 {
			n.Body += fmt.Sprintf(" %d could not be moved.", rep.Failed)
		}
		return n
	}

	verb := "Moved to"
	if rep.DryRun {
		n.Title += " (dry run)"
		verb = "Would move to"
	}
	n.Body = fmt.Sprintf("Processed %d email(s).", len(rep.Records))
	if rep.Failed > 0 {
		n.Body += fmt.Sprintf(" %d could not be moved.", rep.Failed)
	}
	for _, rec := range rep.Records {
		title := rec.Subject
		if title == "" {
			title = "Email ID: " + rec.MessageID
		}
		n.Items = append(n.Items, NoticeItem{
			Title:   title,
			Message: fmt.Sprintf("%s: %s", verb, rec.LabelApplied),
		})
	}
	return n
}

// String renders the notice as plain text.
func (n Notice) String() string {
	var b strings.Builder
	b.WriteString(n.Title)
	b.WriteString("\n")
	b.WriteString(n.Body)
	for _, it := range n.Items {
		fmt.Fprintf(&b, "\n  %s → %s", it.Title, it.Message)
	}
	return b.String()
}
