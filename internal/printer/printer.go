package printer

import "github.com/meshup-sh/meshup/internal/model"

// Printer knows how to print deployment session information in different
// formats.
type Printer interface {
	PrintList(sessions []model.Session) error
	PrintStatus(session model.Session) error
	PrintMessage(msg string) error
}
