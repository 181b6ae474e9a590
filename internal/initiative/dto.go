package initiative

import (
	"strings"

	"github.com/frahmantamala/innovation-portal/internal"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

type ListFilter struct {
	Status Status
	Search string
	Limit  int
	Offset int
}

func (f *ListFilter) Normalize() error {
	f.Status = Status(strings.ToUpper(strings.TrimSpace(string(f.Status))))
	if f.Status != "" && !f.Status.Valid() {
		return internal.NewValidationFieldError("status", "Unknown initiative status", internal.ErrCodeInvalidInput)
	}
	f.Search = strings.TrimSpace(f.Search)
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return nil
}

type ListResponse struct {
	Initiatives []*Initiative `json:"initiatives"`
	Limit       int           `json:"limit"`
	Offset      int           `json:"offset"`
}
