package errors

import "net/http"

// StatusCodeFor maps an error's category to an HTTP status code for the dev server.
func StatusCodeFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch GetCategory(err) {
	case CategoryValidation, CategoryConfig:
		return http.StatusBadRequest
	case CategoryNotFound:
		return http.StatusNotFound
	case CategoryAlreadyExists:
		return http.StatusConflict
	case CategoryNetwork, CategoryPublish:
		return http.StatusBadGateway
	case CategoryBuild, CategoryRender, CategoryPlugin:
		return http.StatusUnprocessableEntity
	case CategoryRuntime:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
