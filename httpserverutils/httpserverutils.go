package httpserverutils

import (
	"encoding/json"
	"io/ioutil"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/dluxio/hiveonboard/logger"
)

var log = logger.Logger("SRVR")

// HandlerError is an error an HTTP handler wants rendered to the client with
// a specific status code. ClientMessage may differ from the internal message
// so internals never leak.
type HandlerError struct {
	Code          int
	Message       string
	ClientMessage string
}

func (hErr *HandlerError) Error() string {
	return hErr.Message
}

// NewHandlerError returns a HandlerError whose message is safe to show the
// client.
func NewHandlerError(code int, message string) *HandlerError {
	return &HandlerError{
		Code:          code,
		Message:       message,
		ClientMessage: message,
	}
}

// NewInternalServerHandlerError returns a 500 whose internal message is
// logged but hidden from the client.
func NewInternalServerHandlerError(message string) *HandlerError {
	return &HandlerError{
		Code:          http.StatusInternalServerError,
		Message:       message,
		ClientMessage: http.StatusText(http.StatusInternalServerError),
	}
}

// NewHandlerErrorFromError wraps a plain error as an internal server error.
func NewHandlerErrorFromError(err error) *HandlerError {
	return NewInternalServerHandlerError(err.Error())
}

// ClientError renders a typed domain failure as a 4xx with its message.
func ClientError(code int, err error) *HandlerError {
	return NewHandlerError(code, err.Error())
}

type clientErrorResponse struct {
	ErrorCode    int    `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// SendErr writes a HandlerError to the response.
func SendErr(w http.ResponseWriter, hErr *HandlerError) {
	errMsg := hErr.ClientMessage
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(hErr.Code)
	err := json.NewEncoder(w).Encode(&clientErrorResponse{hErr.Code, errMsg})
	if err != nil {
		log.Warnf("Error writing error response: %s", err)
	}
}

// SendJSONResponse encodes a response as JSON.
func SendJSONResponse(w http.ResponseWriter, response interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	err := json.NewEncoder(w).Encode(response)
	if err != nil {
		log.Warnf("Error writing response: %s", err)
	}
}

// HandlerFunc is the shape of the service's route handlers: route variables
// and the raw body in, a JSON-serializable response or a HandlerError out.
type HandlerFunc func(r *http.Request, routeParams map[string]string,
	requestBody []byte) (interface{}, *HandlerError)

// MakeHandler adapts a HandlerFunc to net/http, centralizing body reading,
// error rendering, and logging.
func MakeHandler(handler HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var requestBody []byte
		if r.Body != nil {
			var err error
			requestBody, err = ioutil.ReadAll(r.Body)
			if err != nil {
				SendErr(w, NewHandlerError(http.StatusBadRequest, "Error reading request body"))
				return
			}
		}

		response, hErr := handler(r, mux.Vars(r), requestBody)
		if hErr != nil {
			if hErr.Code == http.StatusInternalServerError {
				log.Errorf("%s %s: %s", r.Method, r.URL.Path, hErr.Message)
			} else {
				log.Debugf("%s %s: %s", r.Method, r.URL.Path, hErr.Message)
			}
			SendErr(w, hErr)
			return
		}
		if response != nil {
			SendJSONResponse(w, response)
		}
	}
}

// DecodeRequestBody unmarshals a JSON request body into target.
func DecodeRequestBody(requestBody []byte, target interface{}) *HandlerError {
	err := json.Unmarshal(requestBody, target)
	if err != nil {
		return NewHandlerError(http.StatusUnprocessableEntity,
			errors.Wrap(err, "Error unmarshalling request body").Error())
	}
	return nil
}
