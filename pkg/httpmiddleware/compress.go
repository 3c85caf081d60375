package httpmiddleware

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/klauspost/compress/gzhttp"
)

// Compress gzips responses of at least minSize bytes for clients that accept
// it. A non-positive minSize uses gzhttp.DefaultMinSize.
func Compress(minSize int) (Middleware, error) {
	if minSize <= 0 {
		minSize = gzhttp.DefaultMinSize
	}
	wrap, err := gzhttp.NewWrapper(gzhttp.MinSize(minSize))
	if err != nil {
		return nil, errors.Wrap(err, "gzip wrapper")
	}
	return func(next http.Handler) http.Handler {
		return wrap(next)
	}, nil
}
