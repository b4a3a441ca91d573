package flow

type RouteKind int

const (
	RouteHome RouteKind = iota
	RouteProcess
	RouteAsk
)

// Route is a navigation target. VideoID is empty for RouteHome.
type Route struct {
	Kind    RouteKind
	VideoID string
}

func Home() Route                   { return Route{Kind: RouteHome} }
func Process(videoID string) Route  { return Route{Kind: RouteProcess, VideoID: videoID} }
func AskRoute(videoID string) Route { return Route{Kind: RouteAsk, VideoID: videoID} }

func (r Route) Path() string {
	switch r.Kind {
	case RouteProcess:
		return "/process/" + r.VideoID
	case RouteAsk:
		return "/ask/" + r.VideoID
	default:
		return "/"
	}
}

func (r Route) String() string { return r.Path() }
