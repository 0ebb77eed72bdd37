package utils

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-tasks-api/internal/gateway"
)

// ErrorBody is the JSON payload returned for failed requests.
type ErrorBody struct {
	Error string `json:"error"`
}

// CORSHeaders returns the headers attached to every JSON response.
func CORSHeaders() map[string]string {
	return map[string]string{
		fiber.HeaderContentType:              fiber.MIMEApplicationJSON,
		fiber.HeaderAccessControlAllowOrigin: "*",
	}
}

// PreflightHeaders returns the headers answered to an OPTIONS request.
func PreflightHeaders() map[string]string {
	return map[string]string{
		fiber.HeaderAccessControlAllowOrigin:  "*",
		fiber.HeaderAccessControlAllowMethods: "GET, POST, OPTIONS",
		fiber.HeaderAccessControlAllowHeaders: "Content-Type, X-User-Id",
		fiber.HeaderAccessControlMaxAge:       "86400",
	}
}

// Preflight builds the CORS preflight answer.
func Preflight() gateway.Response {
	return gateway.Response{
		StatusCode: fiber.StatusOK,
		Headers:    PreflightHeaders(),
		Body:       "",
	}
}

// SendJSON serializes data into a response with the given status code.
func SendJSON(status int, data interface{}) gateway.Response {
	if status == 0 {
		status = fiber.StatusOK
	}

	body, err := json.Marshal(data)
	if err != nil {
		return SendError(fiber.StatusInternalServerError, "Internal server error")
	}

	return gateway.Response{
		StatusCode: status,
		Headers:    CORSHeaders(),
		Body:       string(body),
	}
}

// SendError builds an error response with the given status code.
func SendError(status int, message string) gateway.Response {
	if message == "" {
		message = "error"
	}

	body, _ := json.Marshal(ErrorBody{Error: message})
	return gateway.Response{
		StatusCode: status,
		Headers:    CORSHeaders(),
		Body:       string(body),
	}
}
