package httpx

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// MaxBodyBytes bounds JSON request bodies.
const MaxBodyBytes = 1 << 20

var ErrInvalidJSON = errors.New("invalid json")

type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	var body []byte
	var err error
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			// best-effort error response; avoid writing partial JSON
			http.Error(w, `{"error":"encode_error"}`, http.StatusInternalServerError)
			return
		}
	} else {
		body = []byte("null")
	}
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		// nothing we can do at this point
		_ = err
	}
}

func JSONError(w http.ResponseWriter, status int, msg string, details any) {
	JSON(w, status, ErrorResponse{Error: msg, Details: details})
}

// Decode reads a single JSON value from the request body into dst.
// Any decoding failure is reported as ErrInvalidJSON.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return errors.Wrap(ErrInvalidJSON, err.Error())
	}
	return nil
}
