package router

import (
	"net/http"
	"strings"

	"automate-chat/internal/api"
	"automate-chat/internal/api/endpoints"
	"automate-chat/internal/api/middleware"
	"automate-chat/internal/media"
	chatservice "automate-chat/internal/service/chat"
)

func ChatRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		service := chatservice.New(s.Database())
		base := strings.TrimRight(prefix, "/")
		paths := endpoints.ChatPaths{
			ConversationsPath:  base + "/conversations",
			ConversationPrefix: base + "/conversations/",
			FallbackUsersPath:  base + "/users/fallback",
		}
		chatEndpoints := endpoints.NewChatEndpointsWithPaths(service, s.Handler(), paths)

		mux.HandleFunc(prefix+"/conversations", s.MakeHTTPHandleFunc(chatEndpoints.Conversations, middleware.ValidateAnyJWT))
		mux.HandleFunc(prefix+"/conversations/", s.MakeHTTPHandleFunc(chatEndpoints.ConversationResource, middleware.ValidateAnyJWT))
		mux.HandleFunc(prefix+"/users/fallback", s.MakeHTTPHandleFunc(chatEndpoints.FallbackUsers, middleware.ValidateAnyJWT))
	}
}

func UploadRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		uploadEndpoints := endpoints.NewUploadEndpoints(media.NewUploader())

		mux.HandleFunc(prefix+"/uploads", s.MakeHTTPHandleFunc(uploadEndpoints.Uploads, middleware.ValidateAnyJWT))
	}
}
