// Package fakeapi is an in-memory marketplace backend for tests. It serves
// the same /api routes as the real one, counts calls per route and can be
// told to fail or stall specific routes.
package fakeapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Route names accepted by Calls, FailNext and SetDelay.
const (
	RouteLogin         = "login"
	RouteRefresh       = "refresh"
	RouteProfile       = "profile"
	RouteListings      = "listings"
	RouteListing       = "listing"
	RouteDeleteListing = "delete_listing"
	RouteConversations = "conversations"
	RouteMessages      = "messages"
	RouteSend          = "send"
	RouteNotifications = "notifications"
	RouteUnreadCount   = "unread_count"
	RouteMarkRead      = "mark_read"
	RouteMarkAllRead   = "mark_all_read"
)

// DropConnection as a FailNext status closes the connection without an answer.
const DropConnection = -1

var signingKey = []byte("fakeapi")

var epoch = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

type User struct {
	ID       int64
	Username string
	Email    string
	Password string
}

type listing struct {
	kind        string
	id          int64
	title       string
	description string
	category    string
	salary      string
	creatorID   int64
	createdAt   time.Time
}

type message struct {
	id            int64
	kind          string
	listingID     int64
	senderID      int64
	participantID int64
	text          string
	createdAt     time.Time
}

type notification struct {
	id          int64
	recipientID int64
	kind        string
	listingID   int64
	senderID    int64
	text        string
	read        bool
	createdAt   time.Time
}

type fault struct {
	status int
	body   map[string]any
}

type Server struct {
	URL string

	http *httptest.Server
	echo *echo.Echo

	mu            sync.Mutex
	nextID        int64
	users         map[int64]*User
	access        map[string]int64
	refresh       map[string]int64
	listings      map[string]map[int64]*listing
	messages      []*message
	notifications []*notification
	calls         map[string]int
	faults        map[string][]fault
	delays        map[string]time.Duration
	replyDelays   map[string]time.Duration
	countField    string
}

func New() *Server {
	s := &Server{
		users:       make(map[int64]*User),
		access:      make(map[string]int64),
		refresh:     make(map[string]int64),
		listings:    map[string]map[int64]*listing{"job": {}, "issue": {}},
		calls:       make(map[string]int),
		faults:      make(map[string][]fault),
		delays:      make(map[string]time.Duration),
		replyDelays: make(map[string]time.Duration),
		countField:  "unread_count",
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	s.routes(e)
	s.echo = e

	s.http = httptest.NewServer(e)
	s.URL = s.http.URL
	return s
}

func (s *Server) Close() {
	s.http.Close()
}

func (s *Server) routes(e *echo.Echo) {
	api := e.Group("/api")
	api.POST("/users/login/", s.login)
	api.POST("/users/token/refresh/", s.refreshToken)

	authed := api.Group("", s.authenticate)
	authed.GET("/users/profile/", s.profile)
	for _, collection := range []string{"jobs", "issues"} {
		kind := strings.TrimSuffix(collection, "s")
		authed.GET("/"+collection+"/", s.listListings(kind))
		authed.GET("/"+collection+"/:id/", s.getListing(kind))
		authed.DELETE("/"+collection+"/:id/", s.deleteListing(kind))
	}
	authed.GET("/chat/:kind/:id/conversations/", s.conversations)
	authed.GET("/chat/:kind/:id/messages/", s.listMessages)
	authed.POST("/chat/:kind/:id/messages/", s.sendMessage)
	authed.GET("/notifications/", s.listNotifications)
	authed.GET("/notifications/unread-count/", s.unreadCount)
	authed.POST("/notifications/mark-all-read/", s.markAllRead)
	authed.POST("/notifications/:id/mark-read/", s.markRead)
}

// Seeding.

func (s *Server) AddUser(username, email, password string) *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	user := &User{ID: s.nextID, Username: username, Email: email, Password: password}
	s.users[user.ID] = user
	return user
}

// AddListing creates a job or issue owned by creatorID and returns its id.
func (s *Server) AddListing(kind string, creatorID int64, title string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	l := &listing{
		kind:        kind,
		id:          s.nextID,
		title:       title,
		description: title + " description",
		category:    "General",
		salary:      "1500.00",
		creatorID:   creatorID,
		createdAt:   epoch.Add(time.Duration(s.nextID) * time.Minute),
	}
	s.listings[kind][l.id] = l
	return l.id
}

// AddMessage stores a message from senderID in the thread between the
// listing creator and participantID, without creating a notification.
func (s *Server) AddMessage(kind string, listingID, senderID, participantID int64, text string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addMessageLocked(kind, listingID, senderID, participantID, text).id
}

func (s *Server) addMessageLocked(kind string, listingID, senderID, participantID int64, text string) *message {
	s.nextID++
	m := &message{
		id:            s.nextID,
		kind:          kind,
		listingID:     listingID,
		senderID:      senderID,
		participantID: participantID,
		text:          text,
		createdAt:     epoch.Add(time.Duration(s.nextID) * time.Minute),
	}
	s.messages = append(s.messages, m)
	return m
}

func (s *Server) AddNotification(recipientID int64, kind string, listingID, senderID int64, text string, read bool) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addNotificationLocked(recipientID, kind, listingID, senderID, text, read).id
}

func (s *Server) addNotificationLocked(recipientID int64, kind string, listingID, senderID int64, text string, read bool) *notification {
	s.nextID++
	n := &notification{
		id:          s.nextID,
		recipientID: recipientID,
		kind:        kind,
		listingID:   listingID,
		senderID:    senderID,
		text:        text,
		read:        read,
		createdAt:   epoch.Add(time.Duration(s.nextID) * time.Minute),
	}
	s.notifications = append(s.notifications, n)
	return n
}

// IssueTokens returns a fresh access and refresh token for userID.
func (s *Server) IssueTokens(userID int64) (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(userID)
}

func (s *Server) issueLocked(userID int64) (string, string) {
	access := sign(userID, "access", time.Now().Add(5*time.Minute))
	refresh := sign(userID, "refresh", time.Now().Add(24*time.Hour))
	s.access[access] = userID
	s.refresh[refresh] = userID
	return access, refresh
}

func sign(userID int64, tokenType string, expires time.Time) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"token_type": tokenType,
		"user_id":    userID,
		"exp":        expires.Unix(),
		"jti":        uuid.NewString(),
	})
	signed, err := token.SignedString(signingKey)
	if err != nil {
		panic(err)
	}
	return signed
}

// ExpireAccessTokens invalidates every access token issued so far.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = make(map[string]int64)
}

func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh = make(map[string]int64)
}

// UseCountField switches the unread-count answer between "unread_count"
// and "count".
func (s *Server) UseCountField(field string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.countField = field
}

// FailNext makes the next call to route answer status with body. Calls
// queue up in order.
func (s *Server) FailNext(route string, status int, body map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[route] = append(s.faults[route], fault{status: status, body: body})
}

// SetDelay stalls every call to route by d, or until the request is cancelled.
func (s *Server) SetDelay(route string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[route] = d
}

// SetReplyDelay holds the answer to route for d after its data has been
// read, so the reply describes the state at request time.
func (s *Server) SetReplyDelay(route string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replyDelays[route] = d
}

func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = make(map[string]int)
}

// NotificationRead reports the server-side read flag.
func (s *Server) NotificationRead(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.id == id {
			return n.read
		}
	}
	return false
}

// Unread counts the unread notifications of userID.
func (s *Server) Unread(userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unreadLocked(userID)
}

func (s *Server) unreadLocked(userID int64) int {
	count := 0
	for _, n := range s.notifications {
		if n.recipientID == userID && !n.read {
			count++
		}
	}
	return count
}

// enter counts the call, applies any delay and reports whether an injected
// fault has already been written.
func (s *Server) enter(c echo.Context, route string) (bool, error) {
	s.mu.Lock()
	s.calls[route]++
	delay := s.delays[route]
	var injected *fault
	if queue := s.faults[route]; len(queue) > 0 {
		injected = &queue[0]
		s.faults[route] = queue[1:]
	}
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-c.Request().Context().Done():
			return true, nil
		}
	}

	if injected == nil {
		return false, nil
	}
	if injected.status == DropConnection {
		if hijacker, ok := c.Response().Writer.(http.Hijacker); ok {
			if conn, _, err := hijacker.Hijack(); err == nil {
				conn.Close()
			}
		}
		return true, nil
	}
	if injected.body == nil {
		return true, c.NoContent(injected.status)
	}
	return true, c.JSON(injected.status, injected.body)
}

func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")

		s.mu.Lock()
		userID, ok := s.access[token]
		s.mu.Unlock()

		if header == token || !ok {
			// Still counted so tests can see the rejected attempt.
			s.mu.Lock()
			s.calls[routeOf(c)]++
			s.mu.Unlock()
			return c.JSON(http.StatusUnauthorized, map[string]any{
				"detail": "Given token not valid for any token type",
				"code":   "token_not_valid",
			})
		}
		c.Set("user_id", userID)
		return next(c)
	}
}

func routeOf(c echo.Context) string {
	path := c.Path()
	method := c.Request().Method
	switch {
	case strings.HasSuffix(path, "/profile/"):
		return RouteProfile
	case strings.HasSuffix(path, "/conversations/"):
		return RouteConversations
	case strings.HasSuffix(path, "/messages/") && method == http.MethodPost:
		return RouteSend
	case strings.HasSuffix(path, "/messages/"):
		return RouteMessages
	case strings.HasSuffix(path, "/unread-count/"):
		return RouteUnreadCount
	case strings.HasSuffix(path, "/mark-all-read/"):
		return RouteMarkAllRead
	case strings.HasSuffix(path, "/mark-read/"):
		return RouteMarkRead
	case path == "/api/notifications/":
		return RouteNotifications
	case strings.HasSuffix(path, "/:id/") && method == http.MethodDelete:
		return RouteDeleteListing
	case strings.HasSuffix(path, "/:id/"):
		return RouteListing
	default:
		return RouteListings
	}
}

// Handlers.

func (s *Server) login(c echo.Context) error {
	if done, err := s.enter(c, RouteLogin); done {
		return err
	}

	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"detail": "Malformed request"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == body.Email && user.Password == body.Password {
			access, refresh := s.issueLocked(user.ID)
			return c.JSON(http.StatusOK, map[string]any{"access": access, "refresh": refresh})
		}
	}
	return c.JSON(http.StatusUnauthorized, map[string]any{"detail": "No active account found with the given credentials"})
}

func (s *Server) refreshToken(c echo.Context) error {
	if done, err := s.enter(c, RouteRefresh); done {
		return err
	}

	var body struct {
		Refresh string `json:"refresh"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"detail": "Malformed request"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.refresh[body.Refresh]
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]any{
			"detail": "Token is invalid or expired",
			"code":   "token_not_valid",
		})
	}
	access := sign(userID, "access", time.Now().Add(5*time.Minute))
	s.access[access] = userID
	return c.JSON(http.StatusOK, map[string]any{"access": access})
}

func (s *Server) profile(c echo.Context) error {
	if done, err := s.enter(c, RouteProfile); done {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[viewer(c)]
	return c.JSON(http.StatusOK, map[string]any{
		"id":              user.ID,
		"username":        user.Username,
		"email":           user.Email,
		"phone_number":    nil,
		"location":        "Tashkent",
		"selected_avatar": nil,
	})
}

func (s *Server) listListings(kind string) echo.HandlerFunc {
	return func(c echo.Context) error {
		if done, err := s.enter(c, RouteListings); done {
			return err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		items := make([]*listing, 0, len(s.listings[kind]))
		for _, l := range s.listings[kind] {
			items = append(items, l)
		}
		sort.Slice(items, func(i, j int) bool { return items[i].id > items[j].id })

		out := make([]map[string]any, 0, len(items))
		for _, l := range items {
			out = append(out, l.payload())
		}
		return c.JSON(http.StatusOK, out)
	}
}

func (s *Server) getListing(kind string) echo.HandlerFunc {
	return func(c echo.Context) error {
		if done, err := s.enter(c, RouteListing); done {
			return err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		l, ok := s.findListingLocked(kind, c.Param("id"))
		if !ok {
			return c.JSON(http.StatusNotFound, map[string]any{"detail": "Not found."})
		}
		return c.JSON(http.StatusOK, l.payload())
	}
}

func (s *Server) deleteListing(kind string) echo.HandlerFunc {
	return func(c echo.Context) error {
		if done, err := s.enter(c, RouteDeleteListing); done {
			return err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		l, ok := s.findListingLocked(kind, c.Param("id"))
		if !ok {
			return c.JSON(http.StatusNotFound, map[string]any{"detail": "Not found."})
		}
		if l.creatorID != viewer(c) {
			return c.JSON(http.StatusForbidden, map[string]any{"detail": "You do not have permission to perform this action."})
		}
		delete(s.listings[kind], l.id)
		return c.NoContent(http.StatusNoContent)
	}
}

func (s *Server) conversations(c echo.Context) error {
	if done, err := s.enter(c, RouteConversations); done {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.findListingLocked(c.Param("kind"), c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]any{"detail": "Not found."})
	}

	out := []map[string]any{}
	if l.creatorID != viewer(c) {
		return c.JSON(http.StatusOK, out)
	}

	latest := make(map[int64]*message)
	var order []int64
	for _, m := range s.messages {
		if m.kind != l.kind || m.listingID != l.id {
			continue
		}
		if _, seen := latest[m.participantID]; !seen {
			order = append(order, m.participantID)
		}
		latest[m.participantID] = m
	}
	for _, participantID := range order {
		m := latest[participantID]
		out = append(out, map[string]any{
			"user_id":  participantID,
			"username": s.users[participantID].Username,
			"latest_message": map[string]any{
				"text":       m.text,
				"created_at": m.createdAt,
			},
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) listMessages(c echo.Context) error {
	if done, err := s.enter(c, RouteMessages); done {
		return err
	}

	s.mu.Lock()
	l, ok := s.findListingLocked(c.Param("kind"), c.Param("id"))
	if !ok {
		s.mu.Unlock()
		return c.JSON(http.StatusNotFound, map[string]any{"detail": "Not found."})
	}

	userID := viewer(c)
	var filter int64
	if l.creatorID == userID {
		if raw := c.QueryParam("user_id"); raw != "" {
			filter, _ = strconv.ParseInt(raw, 10, 64)
		}
	} else {
		filter = userID
	}

	out := []map[string]any{}
	for _, m := range s.messages {
		if m.kind != l.kind || m.listingID != l.id {
			continue
		}
		if filter != 0 && m.participantID != filter {
			continue
		}
		out = append(out, s.messagePayloadLocked(m, userID))
	}
	lag := s.replyDelays[RouteMessages]
	s.mu.Unlock()

	if lag > 0 {
		select {
		case <-time.After(lag):
		case <-c.Request().Context().Done():
			return nil
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) sendMessage(c echo.Context) error {
	if done, err := s.enter(c, RouteSend); done {
		return err
	}

	var body struct {
		Text   string `json:"text"`
		UserID *int64 `json:"user_id"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"detail": "Malformed request"})
	}
	if strings.TrimSpace(body.Text) == "" {
		return c.JSON(http.StatusBadRequest, map[string]any{"text": []string{"This field may not be blank."}})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.findListingLocked(c.Param("kind"), c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]any{"detail": "Not found."})
	}

	userID := viewer(c)
	participantID := userID
	recipientID := l.creatorID
	if l.creatorID == userID {
		switch {
		case body.UserID != nil:
			if _, ok := s.users[*body.UserID]; !ok {
				return c.JSON(http.StatusBadRequest, map[string]any{"error": "Recipient does not exist"})
			}
			participantID = *body.UserID
		default:
			participants := s.participantsLocked(l)
			if len(participants) != 1 {
				return c.JSON(http.StatusBadRequest, map[string]any{"error": "user_id is required"})
			}
			participantID = participants[0]
		}
		recipientID = participantID
	}

	m := s.addMessageLocked(l.kind, l.id, userID, participantID, body.Text)
	sender := s.users[userID].Username
	s.addNotificationLocked(recipientID, l.kind+"_message", l.id, userID, fmt.Sprintf("New message from %s", sender), false)
	return c.JSON(http.StatusCreated, s.messagePayloadLocked(m, userID))
}

func (s *Server) listNotifications(c echo.Context) error {
	if done, err := s.enter(c, RouteNotifications); done {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	userID := viewer(c)
	out := []map[string]any{}
	for i := len(s.notifications) - 1; i >= 0; i-- {
		n := s.notifications[i]
		if n.recipientID != userID {
			continue
		}
		out = append(out, s.notificationPayloadLocked(n))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) unreadCount(c echo.Context) error {
	if done, err := s.enter(c, RouteUnreadCount); done {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(http.StatusOK, map[string]any{s.countField: s.unreadLocked(viewer(c))})
}

func (s *Server) markRead(c echo.Context) error {
	if done, err := s.enter(c, RouteMarkRead); done {
		return err
	}

	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.id == id && n.recipientID == viewer(c) {
			n.read = true
			return c.JSON(http.StatusOK, map[string]any{"status": "notification marked as read"})
		}
	}
	return c.JSON(http.StatusNotFound, map[string]any{"error": "Notification not found"})
}

func (s *Server) markAllRead(c echo.Context) error {
	if done, err := s.enter(c, RouteMarkAllRead); done {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.recipientID == viewer(c) {
			n.read = true
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "all notifications marked as read"})
}

// Helpers, called with s.mu held.

func viewer(c echo.Context) int64 {
	id, _ := c.Get("user_id").(int64)
	return id
}

func (s *Server) findListingLocked(kind, rawID string) (*listing, bool) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return nil, false
	}
	l, ok := s.listings[kind][id]
	return l, ok
}

func (s *Server) participantsLocked(l *listing) []int64 {
	seen := make(map[int64]bool)
	var out []int64
	for _, m := range s.messages {
		if m.kind == l.kind && m.listingID == l.id && !seen[m.participantID] {
			seen[m.participantID] = true
			out = append(out, m.participantID)
		}
	}
	return out
}

func (s *Server) messagePayloadLocked(m *message, viewerID int64) map[string]any {
	return map[string]any{
		"id":              m.id,
		"text":            m.text,
		"is_sender":       m.senderID == viewerID,
		"sender_username": s.users[m.senderID].Username,
		"created_at":      m.createdAt,
	}
}

func (s *Server) notificationPayloadLocked(n *notification) map[string]any {
	payload := map[string]any{
		"id":                n.id,
		"notification_type": n.kind,
		"message":           n.text,
		"is_read":           n.read,
		"created_at":        n.createdAt,
		"job":               nil,
		"issue":             nil,
	}
	if sender, ok := s.users[n.senderID]; ok {
		payload["sender_username"] = sender.Username
	}
	title := ""
	if l, ok := s.listings[strings.TrimSuffix(n.kind, "_message")][n.listingID]; ok {
		title = l.title
	}
	switch n.kind {
	case "job_message":
		payload["job"] = n.listingID
		payload["job_title"] = title
	case "issue_message":
		payload["issue"] = n.listingID
		payload["issue_title"] = title
	}
	return payload
}

func (l *listing) payload() map[string]any {
	if l.kind == "job" {
		return map[string]any{
			"id":            l.id,
			"title":         l.title,
			"description":   l.description,
			"category_name": l.category,
			"salary":        l.salary,
			"created_by":    l.creatorID,
			"is_active":     true,
			"created_at":    l.createdAt,
		}
	}
	salary, _ := strconv.ParseFloat(l.salary, 64)
	return map[string]any{
		"id":          l.id,
		"title":       l.title,
		"description": l.description,
		"category":    l.category,
		"salary":      salary,
		"user":        l.creatorID,
		"status":      "open",
		"created_at":  l.createdAt,
	}
}

// WaitForCalls blocks until route has been called at least n times or ctx
// is done.
func (s *Server) WaitForCalls(ctx context.Context, route string, n int) bool {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		if s.Calls(route) >= n {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}
