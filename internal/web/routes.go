package web

// Paths of the views the client can navigate to
const (
	RouteLogin   = "/"
	RouteBills   = "/employee/bills"
	RouteNewBill = "/employee/bill/new"
)

// Navigator replaces the displayed view with the one at pathname
type Navigator interface {
	Navigate(pathname string)
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(pathname string)

func (f NavigatorFunc) Navigate(pathname string) {
	f(pathname)
}

// Alerter shows a blocking message to the user
type Alerter interface {
	Alert(message string)
}

// AlerterFunc adapts a function to Alerter
type AlerterFunc func(message string)

func (f AlerterFunc) Alert(message string) {
	f(message)
}

// pageNav records the navigation requested while handling one request
type pageNav struct {
	path string
}

func (n *pageNav) Navigate(pathname string) {
	n.path = pathname
}

// pageAlerts collects alerts raised while handling one request
type pageAlerts struct {
	messages []string
}

func (a *pageAlerts) Alert(message string) {
	a.messages = append(a.messages, message)
}
