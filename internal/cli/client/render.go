package client

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

var (
	headingColor = color.New(color.FgCyan, color.Bold)
	answerColor  = color.New(color.FgWhite)
	sourceColor  = color.New(color.FgGreen)
	dimColor     = color.New(color.Faint)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
)

// stateLabels are the progress lines printed while an answer streams in.
var stateLabels = map[string]string{
	"AWAITING_TOOL_DECISION": "thinking",
	"EXECUTING_TOOLS":        "searching course materials",
	"AWAITING_FOLLOW_UP":     "reading results",
}

func printJSON(w io.Writer, v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(output))
	return err
}

func renderAnswer(w io.Writer, ans *QueryResponse) {
	fmt.Fprintln(w)
	answerColor.Fprintln(w, strings.TrimSpace(ans.Answer))
	if ans.Truncated {
		warnColor.Fprintln(w, "(answer was cut off at the token limit)")
	}
	if len(ans.Sources) > 0 {
		fmt.Fprintln(w)
		headingColor.Fprintln(w, "Sources")
		for _, s := range ans.Sources {
			if s.Link != "" {
				sourceColor.Fprintf(w, "  • %s ", s.Label)
				dimColor.Fprintln(w, s.Link)
			} else {
				sourceColor.Fprintf(w, "  • %s\n", s.Label)
			}
		}
	}
	fmt.Fprintln(w)
	dimColor.Fprintf(w, "session %s\n", ans.SessionID)
}

func renderTransition(w io.Writer, ev *TransitionEvent) {
	if ev.Error != "" {
		errorColor.Fprintf(w, "  ! %s\n", ev.Error)
		return
	}
	label, ok := stateLabels[ev.To]
	if !ok {
		return
	}
	if len(ev.ToolNames) > 0 {
		label += " (" + strings.Join(ev.ToolNames, ", ") + ")"
	}
	dimColor.Fprintf(w, "  … %s\n", label)
}

func renderOutline(w io.Writer, o *OutlineResponse) {
	headingColor.Fprintln(w, o.Title)
	if o.Link != "" {
		dimColor.Fprintln(w, o.Link)
	}
	if o.Instructor != "" {
		fmt.Fprintf(w, "Instructor: %s\n", o.Instructor)
	}
	fmt.Fprintln(w)
	if len(o.Lessons) == 0 {
		fmt.Fprintln(w, "No lessons.")
		return
	}
	for _, l := range o.Lessons {
		fmt.Fprintf(w, "  Lesson %d: %s\n", l.Number, l.Title)
	}
}

func renderJob(w io.Writer, job *IngestJobResponse) {
	statusColor := dimColor
	switch job.Status {
	case "completed":
		statusColor = sourceColor
	case "failed":
		statusColor = errorColor
	case "processing":
		statusColor = warnColor
	}
	fmt.Fprintf(w, "Job:      %s\n", job.ID)
	fmt.Fprintf(w, "Document: %s\n", job.DocumentName)
	fmt.Fprint(w, "Status:   ")
	statusColor.Fprintln(w, job.Status)
	if job.CourseTitle != "" {
		fmt.Fprintf(w, "Course:   %s (%d chunks)\n", job.CourseTitle, job.ChunkCount)
	}
	if job.Error != "" {
		fmt.Fprintf(w, "Error:    %s\n", job.Error)
	}
}
