package backend

import (
	"net/http"
	"net/url"

	"jobmarket/internal/domain/entity"
)

// Request builders for every endpoint the client core consumes.

func LoginCall(email, password string) Request {
	return Request{Method: http.MethodPost, Path: "/users/login/", Body: LoginRequest{Email: email, Password: password}}
}

func RefreshCall(refreshToken string) Request {
	return Request{Method: http.MethodPost, Path: "/users/token/refresh/", Body: RefreshRequest{Refresh: refreshToken}}
}

func ProfileCall() Request {
	return Request{Method: http.MethodGet, Path: "/users/profile/"}
}

func ListListingsCall(kind entity.ListingKind) Request {
	return Request{Method: http.MethodGet, Path: "/" + kind.Collection() + "/"}
}

func GetListingCall(ref entity.ListingRef) Request {
	return Request{Method: http.MethodGet, Path: listingPath(ref)}
}

func DeleteListingCall(ref entity.ListingRef) Request {
	return Request{Method: http.MethodDelete, Path: listingPath(ref)}
}

func ConversationsCall(ref entity.ListingRef) Request {
	return Request{Method: http.MethodGet, Path: chatPath(ref) + "conversations/"}
}

// MessagesCall lists a listing's messages, narrowed to one counterpart when
// counterpartID is non-zero.
func MessagesCall(ref entity.ListingRef, counterpartID int64) Request {
	req := Request{Method: http.MethodGet, Path: chatPath(ref) + "messages/"}
	if counterpartID != 0 {
		req.Query = url.Values{"user_id": []string{itoa(counterpartID)}}
	}
	return req
}

func SendMessageCall(ref entity.ListingRef, body SendMessageRequest) Request {
	return Request{Method: http.MethodPost, Path: chatPath(ref) + "messages/", Body: body}
}

func NotificationsCall() Request {
	return Request{Method: http.MethodGet, Path: "/notifications/"}
}

func UnreadCountCall() Request {
	return Request{Method: http.MethodGet, Path: "/notifications/unread-count/"}
}

func MarkReadCall(notificationID int64) Request {
	return Request{Method: http.MethodPost, Path: "/notifications/" + itoa(notificationID) + "/mark-read/"}
}

func MarkAllReadCall() Request {
	return Request{Method: http.MethodPost, Path: "/notifications/mark-all-read/"}
}

func listingPath(ref entity.ListingRef) string {
	return "/" + ref.Kind.Collection() + "/" + itoa(ref.ID) + "/"
}

func chatPath(ref entity.ListingRef) string {
	return "/chat/" + string(ref.Kind) + "/" + itoa(ref.ID) + "/"
}
