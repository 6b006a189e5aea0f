package printer

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/meshup-sh/meshup/internal/model"
)

// TablePrinter prints deployment session information in a table format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintList prints sessions in a table format.
func (t *TablePrinter) PrintList(sessions []model.Session) error {
	if len(sessions) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	// Print header
	fmt.Fprintln(tw, "ID\tWORKSPACE\tSTATUS\tATTEMPT\tELAPSED\tCREATED")

	// Print rows
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%ds\t%s\n",
			s.ID, s.Workspace, s.Status, s.Attempt, s.MaxAttempts, s.ElapsedSeconds(), TimeAgo(s.CreatedAt))
	}

	return nil
}

// PrintStatus prints detailed session status.
func (t *TablePrinter) PrintStatus(s model.Session) error {
	fmt.Fprintf(t.writer, "ID:          %s\n", s.ID)
	fmt.Fprintf(t.writer, "Workspace:   %s\n", s.Workspace)
	fmt.Fprintf(t.writer, "Project:     %s\n", s.ProjectDir)
	fmt.Fprintf(t.writer, "Status:      %s\n", s.Status)
	fmt.Fprintf(t.writer, "Attempt:     %d (budget %d polls)\n", s.Attempt, s.MaxAttempts)
	fmt.Fprintf(t.writer, "Elapsed:     %ds\n", s.ElapsedSeconds())

	if s.Endpoint != "" {
		fmt.Fprintf(t.writer, "Endpoint:    %s\n", s.Endpoint)
	}
	if s.ErrMessage != "" {
		fmt.Fprintf(t.writer, "Error:       %s\n", s.ErrMessage)
	}

	fmt.Fprintf(t.writer, "Owns mesh:   %s\n", yesNo(s.Ownership.MeshDeletable()))
	if s.Ownership.MeshExistedBeforeSession {
		fmt.Fprintf(t.writer, "             mesh pre-existed this session, it will never be deleted\n")
	}

	fmt.Fprintf(t.writer, "Created:     %s\n", FormatTimestamp(s.CreatedAt))
	if s.FinishedAt != nil {
		fmt.Fprintf(t.writer, "Finished:    %s\n", FormatTimestamp(*s.FinishedAt))
	}

	if len(s.Warnings) > 0 {
		fmt.Fprintf(t.writer, "Warnings:\n")
		for _, w := range s.Warnings {
			fmt.Fprintf(t.writer, "  - %s\n", strings.TrimSpace(w))
		}
	}

	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
