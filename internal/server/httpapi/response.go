package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/accounthub/internal/common"
	"github.com/go-chi/chi/v5/middleware"
)

// envelope is the body of every successful response.
type envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// failure is the body of every error response.
type failure struct {
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Success    bool     `json:"success"`
	Errors     []string `json:"errors"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) respond(w http.ResponseWriter, status int, data any, message string) {
	if data == nil {
		data = struct{}{}
	}
	writeJSON(w, status, envelope{StatusCode: status, Data: data, Message: message, Success: status < http.StatusBadRequest})
}

// fail writes the failure envelope for err. Internal errors are logged with
// their cause; the client only ever sees the generic message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := common.AsAPIError(err)
	status := apiErr.StatusCode()

	if apiErr.Kind == common.KindInternal {
		s.logger.Error(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err.Error(),
		)
	} else if apiErr.Err != nil && !errors.Is(apiErr.Err, common.ErrInvalidToken) {
		s.logger.Debug(r.Context(), "request rejected", "message", apiErr.Message, "cause", apiErr.Err.Error())
	}

	message := apiErr.Message
	if apiErr.Kind == common.KindInternal {
		message = common.DefaultInternalMessage
	}

	errs := apiErr.Errors
	if errs == nil {
		errs = []string{}
	}

	writeJSON(w, status, failure{StatusCode: status, Message: message, Success: false, Errors: errs})
}
