package handler

import (
	ws "jobmarket/internal/infrastructure/websocket"
	"jobmarket/internal/usecase"
)

var (
	authHandler         *AuthHandler
	notificationHandler *NotificationHandler
	feedHandler         *FeedHandler
	listingHandler      *ListingHandler
	chatHandler         *ChatHandler
	healthHandler       *HealthHandler
)

func Setup(
	authUseCase *usecase.AuthUseCase,
	userUseCase *usecase.UserUseCase,
	notificationUseCase *usecase.NotificationUseCase,
	listingUseCase *usecase.ListingUseCase,
	chatUseCase *usecase.ChatUseCase,
	hub *ws.Hub,
) {
	authHandler = NewAuthHandler(authUseCase, userUseCase, chatUseCase)
	notificationHandler = NewNotificationHandler(notificationUseCase)
	feedHandler = NewFeedHandler(notificationUseCase, hub)
	listingHandler = NewListingHandler(listingUseCase)
	chatHandler = NewChatHandler(chatUseCase, listingUseCase)
	healthHandler = NewHealthHandler(authUseCase, notificationUseCase, hub)
}

func GetAuthHandler() *AuthHandler {
	return authHandler
}

func GetNotificationHandler() *NotificationHandler {
	return notificationHandler
}

func GetFeedHandler() *FeedHandler {
	return feedHandler
}

func GetListingHandler() *ListingHandler {
	return listingHandler
}

func GetChatHandler() *ChatHandler {
	return chatHandler
}

func GetHealthHandler() *HealthHandler {
	return healthHandler
}
