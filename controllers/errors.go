package controllers

import (
	"net/http"

	"go-shop/middleware"
	"go-shop/utils"
)

// ErrorController serves the generic error pages.
type ErrorController struct {
	base
}

// NewErrorController creates a new ErrorController.
func NewErrorController(renderer *utils.Renderer, session *middleware.Session) *ErrorController {
	return &ErrorController{base: base{renderer: renderer, session: session}}
}

// NotFound renders the 404 page.
func (c *ErrorController) NotFound(w http.ResponseWriter, r *http.Request) {
	c.notFound(w, r)
}

// ServerError renders the generic error page handlers redirect to.
func (c *ErrorController) ServerError(w http.ResponseWriter, r *http.Request) {
	c.renderer.Render(w, http.StatusInternalServerError, "500.html", c.page(w, r, "Error", "/500"))
}
