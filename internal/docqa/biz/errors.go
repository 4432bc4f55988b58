package biz

import (
	"errors"

	"github.com/kart-io/docqa/internal/docqa/store"
	"github.com/kart-io/docqa/internal/pkg/extractor"
	errs "github.com/kart-io/docqa/pkg/utils/errors"
)

// toErrno maps store and extractor errors to API errnos.
func toErrno(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrSessionNotFound):
		return errs.ErrSessionNotFound.WithCause(err)
	case errors.Is(err, store.ErrDocumentNotFound):
		return errs.ErrDocumentNotFound.WithCause(err)
	case errors.Is(err, extractor.ErrTimeout):
		return errs.ErrExtractionTimeout.WithCause(err)
	case errors.Is(err, extractor.ErrUnsupportedFormat):
		return errs.ErrUnsupportedFile.WithCause(err)
	}
	var e *errs.Errno
	if errors.As(err, &e) {
		return err
	}
	return errs.ErrInternal.WithCause(err)
}
