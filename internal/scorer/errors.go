package scorer

import (
	"fmt"
	"strings"
)

// InvalidInputError is returned by Score when a profile or horizon cannot
// be scored. It is the only error the scorer surfaces.
type InvalidInputError struct {
	CompanyID string
	Problems  []string
}

func (e *InvalidInputError) Error() string {
	id := e.CompanyID
	if id == "" {
		id = "<unnamed>"
	}
	return fmt.Sprintf("invalid input for %s: %s", id, strings.Join(e.Problems, "; "))
}
