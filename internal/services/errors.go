package services

import (
	"errors"

	"github.com/promptguild/promptguild/internal/model"
)

// classify turns store errors into coded errors. what names the missing thing
// for NotFound ("prompt", "guild").
func classify(err error, what string) error {
	if err == nil {
		return nil
	}
	var coded *model.Error
	switch {
	case errors.As(err, &coded):
		return err
	case errors.Is(err, model.ErrNotFound):
		return model.NotFound(what + " not found")
	case errors.Is(err, model.ErrConflict):
		return model.WrapError(model.CodeAborted, "transaction contention, try again", err)
	default:
		return model.Internal("storage failure", err)
	}
}

func codeLabel(err error) string {
	if err == nil {
		return "OK"
	}
	return string(model.CodeOf(err))
}
