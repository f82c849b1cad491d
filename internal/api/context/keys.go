package context

type Key string

const (
	// Intent carries the dispatcher's routing.RouteIntent into handoff
	// handlers (stats pages, API surface).
	Intent Key = "intent"
	Params Key = "params"
)
