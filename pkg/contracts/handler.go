package contracts

import "github.com/julienschmidt/httprouter"

// Handler is implemented by each domain's HTTP handler (auth, users,
// facilities, reservations). The application collects them and mounts every
// domain's routes on the shared router at startup.
type Handler interface {
	RegisterRoutes(*httprouter.Router)
}
