package cli

import (
	"context"
	"errors"
	"io"
	"runtime"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var errRepeatedStdin = errors.New(`standard input ("-") given more than once`)

// eachDocument decodes paths concurrently and calls fn for each document.
// fn runs concurrently for different indices. Failures do not stop other
// files; they are returned together, in argument order. Standard input
// ("-") can be read only once.
func eachDocument(ctx context.Context, log *zap.Logger, paths []string, stdin io.Reader, fn func(i int, doc *Document) error) error {
	stdinSeen := false
	for _, path := range paths {
		if path != "-" {
			continue
		}
		if stdinSeen {
			return errRepeatedStdin
		}
		stdinSeen = true
	}

	errs := make([]error, len(paths))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			doc, err := ReadDocument(path, stdin)
			if err == nil {
				err = fn(i, doc)
			}
			if err != nil {
				log.Debug("document failed", zap.String("file", path), zap.Error(err))
				errs[i] = err
			}
			return nil
		})
	}
	_ = eg.Wait()

	var multiE *multierror.Error
	for _, err := range errs {
		if err != nil {
			multiE = multierror.Append(multiE, err)
		}
	}
	return multiE.ErrorOrNil()
}
