package api

import (
	"net/http"

	"github.com/rs/zerolog"
	"text2phenotype.com/svm/logger"
)

var defaultLogger = logger.NewLogger("API")

type endpointLoggerFields struct {
	Method string `json:"method"`
	Url    string `json:"url"`
	Length int64  `json:"content_length"`
}

const RequestInfoFieldsKey = "request_info"

func makeRequestLogger(request *http.Request) zerolog.Logger {
	fields := endpointLoggerFields{
		Method: request.Method,
		Url:    request.URL.String(),
		Length: request.ContentLength,
	}
	return defaultLogger.
		With().Interface(RequestInfoFieldsKey, fields).Logger()
}
