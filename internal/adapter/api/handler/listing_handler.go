package handler

import (
	"github.com/labstack/echo/v4"

	"jobmarket/internal/domain/entity"
	"jobmarket/internal/usecase"
	"jobmarket/pkg/errors"
	"jobmarket/pkg/response"
)

type ListingHandler struct {
	listingUseCase *usecase.ListingUseCase
}

func NewListingHandler(listingUseCase *usecase.ListingUseCase) *ListingHandler {
	return &ListingHandler{
		listingUseCase: listingUseCase,
	}
}

type collectionResponse struct {
	Kind       entity.ListingKind    `json:"kind"`
	Listings   []entity.Listing      `json:"listings"`
	OpenedChat *usecase.ChatSnapshot `json:"opened_chat,omitempty"`
}

func (h *ListingHandler) ListListings(c echo.Context) error {
	kind, err := parseKind(c.Param("kind"))
	if err != nil {
		return response.Error(c, err)
	}

	collection, err := h.listingUseCase.LoadCollection(c.Request().Context(), kind)
	if err != nil {
		return response.Error(c, err)
	}

	resp := collectionResponse{
		Kind:     collection.Kind,
		Listings: collection.Listings,
	}
	if collection.Opened != nil {
		snapshot := collection.Opened.Snapshot()
		resp.OpenedChat = &snapshot
	}
	return response.Success(c, resp)
}

func (h *ListingHandler) GetListing(c echo.Context) error {
	ref, err := parseRef(c)
	if err != nil {
		return response.Error(c, err)
	}

	listing, err := h.listingUseCase.Get(c.Request().Context(), ref)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, listing)
}

func (h *ListingHandler) DeleteListing(c echo.Context) error {
	ref, err := parseRef(c)
	if err != nil {
		return response.Error(c, err)
	}

	if err := h.listingUseCase.Delete(c.Request().Context(), ref); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{
		"message": "Listing deleted",
	})
}

func parseKind(raw string) (entity.ListingKind, error) {
	kind, ok := entity.ParseListingKind(raw)
	if !ok {
		return "", errors.BadRequest("Listing kind must be jobs or issues", nil)
	}
	return kind, nil
}

func parseRef(c echo.Context) (entity.ListingRef, error) {
	kind, err := parseKind(c.Param("kind"))
	if err != nil {
		return entity.ListingRef{}, err
	}
	id, err := parseID(c.Param("id"))
	if err != nil {
		return entity.ListingRef{}, err
	}
	return entity.ListingRef{Kind: kind, ID: id}, nil
}
