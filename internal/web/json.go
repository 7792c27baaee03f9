package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"strconv"
)

// maxBodyBytes bounds setter request bodies.
const maxBodyBytes = 4 << 10

// aliases maps the control panel's older camelCase field names onto the
// current ones.
var aliases = map[string]string{
	"frameRate": "frame_rate",
	"d4Output":  "output",
	"vsyncLock": "lock",
}

// requestError is a client mistake, answered with 400.
type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// form holds setter fields as strings, whichever encoding they arrived in.
type form map[string]string

// readForm accepts a JSON object body or a url-encoded form.
func readForm(w http.ResponseWriter, r *http.Request) (form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var tooBig *http.MaxBytesError

	out := form{}
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var raw map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			if errors.As(err, &tooBig) {
				return nil, err
			}
			return nil, badRequest("invalid JSON body: %v", err)
		}
		for k, v := range raw {
			var s string
			if err := json.Unmarshal(v, &s); err == nil {
				out.set(k, s)
				continue
			}
			out.set(k, string(v))
		}
		return out, nil
	}

	if err := r.ParseForm(); err != nil {
		if errors.As(err, &tooBig) {
			return nil, err
		}
		return nil, badRequest("invalid form body: %v", err)
	}
	for k, vs := range r.PostForm {
		if len(vs) > 0 {
			out.set(k, vs[len(vs)-1])
		}
	}
	return out, nil
}

func (f form) set(key, value string) {
	if canonical, ok := aliases[key]; ok {
		key = canonical
	}
	f[key] = value
}

// boolean returns the named field and whether it was present.
func (f form) boolean(key string) (bool, bool, error) {
	s, ok := f[key]
	if !ok {
		return false, false, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, true, badRequest("%s: %q is not a boolean", key, s)
	}
	return v, true, nil
}

// integer returns the named field and whether it was present. Values beyond
// the int32 range are saturated; the settings clamp them further.
func (f form) integer(key string) (int, bool, error) {
	s, ok := f[key]
	if !ok {
		return 0, false, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		var numErr *strconv.NumError
		if !errors.As(err, &numErr) || !errors.Is(numErr.Err, strconv.ErrRange) {
			return 0, true, badRequest("%s: %q is not an integer", key, s)
		}
	}
	switch {
	case v > math.MaxInt32:
		v = math.MaxInt32
	case v < math.MinInt32:
		v = math.MinInt32
	}
	return int(v), true, nil
}

type result struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func writeResult(w http.ResponseWriter, code int, res result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(res)
}

func writeOK(w http.ResponseWriter) {
	writeResult(w, http.StatusOK, result{Status: "ok"})
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	var reqErr *requestError
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &reqErr):
		code = http.StatusBadRequest
	case errors.As(err, &tooBig):
		code = http.StatusRequestEntityTooLarge
	}
	writeResult(w, code, result{Status: "error", Error: err.Error()})
}
