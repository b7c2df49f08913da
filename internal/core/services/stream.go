package services

import (
	"context"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
)

// consume drains a connector stream, calling fn for each document.
// It returns the first connector error, or ctx.Err if the context ends first.
// An error from fn is not fatal; consume counts it and moves on.
func consume(
	ctx context.Context,
	docs <-chan domain.Document,
	errs <-chan error,
	fn func(domain.Document) error,
) (ok, failed int, err error) {
	for {
		select {
		case <-ctx.Done():
			return ok, failed, ctx.Err()

		case e, open := <-errs:
			if !open {
				errs = nil
				continue
			}
			if e != nil {
				return ok, failed, e
			}

		case doc, open := <-docs:
			if !open {
				// The connector may send its error just before closing both channels.
				if errs != nil {
					if e, open := <-errs; open && e != nil {
						return ok, failed, e
					}
				}
				return ok, failed, nil
			}
			if fnErr := fn(doc); fnErr != nil {
				failed++
				continue
			}
			ok++
		}
	}
}
