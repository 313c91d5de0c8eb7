package router

import (
	"net/http"
	"strings"

	"automate-chat/internal/api"
	"automate-chat/internal/api/endpoints"
	chatservice "automate-chat/internal/service/chat"
)

// ChannelRoutes exposes the websocket handshake. Auth happens inside the
// endpoint because the token arrives as a query parameter, not a header.
func ChannelRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		service := chatservice.New(s.Database())
		base := strings.TrimRight(prefix, "/")
		paths := endpoints.ChatPaths{
			WebsocketPath: base + "/ws",
		}
		chatEndpoints := endpoints.NewChatEndpointsWithPaths(service, s.Handler(), paths)

		mux.HandleFunc(prefix+"/ws", s.MakeHTTPHandleFunc(chatEndpoints.Websocket))
	}
}
