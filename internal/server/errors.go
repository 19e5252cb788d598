package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/524D/mzannotate/internal/peptide"
	"github.com/524D/mzannotate/internal/scanindex"
)

var (
	// ErrInvalidLevel means the scan is not an MS2 scan
	ErrInvalidLevel = errors.New("not an MS2 scan")
	// ErrSerialization means the response could not be encoded
	ErrSerialization = errors.New("cannot encode response")
	// ErrBadRequest means the request body, query or path is malformed
	ErrBadRequest = errors.New("bad request")
)

// statusText maps an error to the status code and plain text body that is
// sent to the client.
func statusText(err error) (int, string) {
	var ire *peptide.InvalidResidueError
	switch {
	case errors.Is(err, scanindex.ErrNotFound):
		return http.StatusBadRequest, "Cannot find scan id"
	case errors.Is(err, ErrInvalidLevel):
		return http.StatusBadRequest, "Not an MS2 scan"
	case errors.As(err, &ire):
		if ire.Sequence == "" {
			return http.StatusBadRequest, "Invalid AA: empty sequence"
		}
		return http.StatusBadRequest, fmt.Sprintf("Invalid AA: %q in %s", ire.Residue, ire.Sequence)
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ErrSerialization):
		return http.StatusInternalServerError, err.Error()
	}
	return http.StatusInternalServerError, "internal error"
}

func writeError(w http.ResponseWriter, err error) {
	code, text := statusText(err)
	http.Error(w, text, code)
}
