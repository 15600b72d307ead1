package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Route describes one endpoint. The same table mounts handlers on the router and
// drives the generated OpenAPI document, so documentation cannot drift from routing.
type Route struct {
	Method      string
	Pattern     string // relative to the resource's mount point, chi syntax, e.g. "/users/{id}"
	Summary     string
	Description string
	Tags        []string

	Request  any // prototype of the JSON body, nil when the endpoint takes none
	Query    any // prototype struct whose `query` tags list the query parameters
	Response any // prototype of the success body
	Status   int // success status code
	Errors   []int

	Handler http.HandlerFunc
}

// Mount registers every route on r.
func Mount(r chi.Router, routes []Route) {
	for _, rt := range routes {
		r.Method(rt.Method, rt.Pattern, rt.Handler)
	}
}
