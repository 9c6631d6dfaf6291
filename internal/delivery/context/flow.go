package context

import "github.com/labstack/echo/v4"

// KeyErrorRedirect stores where a browser is sent back to when the handler fails.
const KeyErrorRedirect ContextKey = "error_redirect"

// SetErrorRedirect marks the request as a browser form flow returning to location on failure.
func SetErrorRedirect(c echo.Context, location string) {
	c.Set(string(KeyErrorRedirect), location)
}

// GetErrorRedirect returns the failure location of a form flow, or "" for plain requests.
func GetErrorRedirect(c echo.Context) string {
	location, _ := fromEcho[string](c, KeyErrorRedirect)

	return location
}
