package converter

import (
	"fmt"

	img "imgconv/converter/image"
)

type Failure struct {
	Index int
	Name  string
	Err   error
}

// BatchResult holds the successes of one run in input order.
type BatchResult struct {
	Format   img.Format
	Images   []*img.Converted
	Failures []Failure
	Progress int
}

func (r *BatchResult) Handles() []img.Handle {
	handles := make([]img.Handle, 0, len(r.Images))
	for _, c := range r.Images {
		if c.Handle != "" {
			handles = append(handles, c.Handle)
		}
	}
	return handles
}

// Message is the single user-facing notification for a finished run.
func (r *BatchResult) Message() string {
	switch {
	case len(r.Images) == 0 && len(r.Failures) == 0:
		return "No images to convert."
	case len(r.Images) == 0:
		return fmt.Sprintf("None of the %d image(s) could be converted.", len(r.Failures))
	case len(r.Failures) == 0:
		return fmt.Sprintf("%d image(s) converted successfully.", len(r.Images))
	}
	return fmt.Sprintf("%d image(s) converted successfully. %d image(s) were skipped because they could not be converted.",
		len(r.Images), len(r.Failures))
}
