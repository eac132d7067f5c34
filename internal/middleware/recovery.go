package middleware

import (
	"net/http"
	"runtime/debug"

	"fz-pos-api/pkg/apierror"
	"fz-pos-api/pkg/response"
)

// Recovery is a middleware that recovers from panics.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				Logger(r.Context()).
					WithField("panic", err).
					WithField("path", r.URL.Path).
					Errorf("PANIC\n%s", debug.Stack())

				response.Error(w, apierror.InternalError("internal server error"))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
