package cli

import (
	"github.com/charmbracelet/huh"
	"github.com/rileyhilliard/dutctl/internal/errors"
)

// Prompts are variables so tests can answer them.
var (
	selectDUT = func(title string, ids []string) (string, error) {
		var selected string
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title(title).
					Options(huh.NewOptions(ids...)...).
					Value(&selected),
			),
		)
		if err := form.Run(); err != nil {
			return "", cancelled(err)
		}
		return selected, nil
	}

	confirm = func(title string) (bool, error) {
		var proceed bool
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(title).
					Value(&proceed),
			),
		)
		if err := form.Run(); err != nil {
			return false, cancelled(err)
		}
		return proceed, nil
	}
)

func cancelled(err error) error {
	return errors.WrapWithCode(err, errors.ErrConfig, "Cancelled", "")
}
