package user

import (
	"strings"

	"github.com/frahmantamala/innovation-portal/internal"
	"github.com/frahmantamala/innovation-portal/internal/core/common/validation"
)

type CompleteProfileDTO struct {
	Name string `json:"name" validate:"required,min=2,max=100"`
}

func (d *CompleteProfileDTO) Normalize() {
	d.Name = strings.TrimSpace(d.Name)
}

func (d CompleteProfileDTO) Validate() *internal.AppError {
	return validation.Struct(d)
}
