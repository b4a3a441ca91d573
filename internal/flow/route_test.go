package flow

import "testing"

func TestRoutePath(t *testing.T) {
	cases := []struct {
		route Route
		path  string
	}{
		{Home(), "/"},
		{Process("dQw4w9WgXcQ"), "/process/dQw4w9WgXcQ"},
		{AskRoute("dQw4w9WgXcQ"), "/ask/dQw4w9WgXcQ"},
		{Route{Kind: RouteKind(42), VideoID: "x"}, "/"},
	}
	for _, tc := range cases {
		if got := tc.route.Path(); got != tc.path {
			t.Fatalf("path: got %q want %q", got, tc.path)
		}
		if got := tc.route.String(); got != tc.path {
			t.Fatalf("string: got %q want %q", got, tc.path)
		}
	}
}
