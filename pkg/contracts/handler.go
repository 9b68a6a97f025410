package contracts

import "github.com/julienschmidt/httprouter"

// Handler is a group of routes mounted on the shared router.
type Handler interface {
	RegisterRoutes(*httprouter.Router)
}
