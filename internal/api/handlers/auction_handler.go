package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Mariaiaiaia/auction-sub000/internal/domain"
	"github.com/Mariaiaiaia/auction-sub000/internal/services"
	"github.com/Mariaiaiaia/auction-sub000/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type AuctionHandler struct {
	coordinator *services.Coordinator
	log         logger.Logger
}

type CreateAuctionRequest struct {
	ItemID        int64           `json:"item_id"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	StartDate     time.Time       `json:"start_date"`
	EndDate       time.Time       `json:"end_date"`
	PublicAccess  bool            `json:"public_access"`
}

type UpdateAuctionRequest struct {
	StartingPrice *decimal.Decimal `json:"starting_price,omitempty"`
	StartDate     *time.Time       `json:"start_date,omitempty"`
	EndDate       *time.Time       `json:"end_date,omitempty"`
	PublicAccess  *bool            `json:"public_access,omitempty"`
}

type InvitationRequest struct {
	Emails []string `json:"emails"`
}

type RemoveUserRequest struct {
	UserID int64 `json:"user_id"`
}

type AuctionResponse struct {
	AuctionID     int64           `json:"auction_id"`
	ItemID        int64           `json:"item_id"`
	SellerID      int64           `json:"seller_id"`
	BidderID      *int64          `json:"bidder_id,omitempty"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	StartDate     time.Time       `json:"start_date"`
	EndDate       time.Time       `json:"end_date"`
	Status        string          `json:"status"`
	PublicAccess  bool            `json:"public_access"`
}

func NewAuctionHandler(coordinator *services.Coordinator, log logger.Logger) *AuctionHandler {
	return &AuctionHandler{
		coordinator: coordinator,
		log:         log,
	}
}

func (h *AuctionHandler) Register(e *echo.Echo) {
	e.GET("/health", h.Health)

	e.POST("/auctions", h.CreateAuction)
	e.GET("/auctions", h.ListAuctions)
	e.GET("/auctions/my_auctions", h.ListMyAuctions)
	e.GET("/auctions/private", h.ListPrivateAuctions)
	e.GET("/auctions/sell", h.ListSellerAuctions)
	e.GET("/auctions/get_seller/:id", h.GetSeller)
	e.GET("/auctions/:id", h.GetAuction)
	e.PATCH("/auctions/:id", h.UpdateAuction)
	e.DELETE("/auctions/:id", h.DeleteAuction)
	e.POST("/auctions/close/:id", h.CloseAuction)
	e.POST("/auctions/invitation/:id", h.SendInvitations)
	e.POST("/auctions/remove_user/:id", h.RemoveUser)
}

func (h *AuctionHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *AuctionHandler) CreateAuction(c echo.Context) error {
	requesterID, err := requester(c)
	if err != nil {
		return h.fail(c, err)
	}

	var req CreateAuctionRequest
	if err := c.Bind(&req); err != nil {
		return h.fail(c, domain.ErrInvalidRequest("invalid request body"))
	}
	if req.ItemID <= 0 {
		return h.fail(c, domain.ErrInvalidRequest("item id is required"))
	}
	if !req.StartingPrice.IsPositive() {
		return h.fail(c, domain.ErrInvalidRequest("starting price must be positive"))
	}

	auction, err := h.coordinator.Create(c.Request().Context(), services.CreateAuctionRequest{
		ItemID:        req.ItemID,
		StartingPrice: req.StartingPrice,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		PublicAccess:  req.PublicAccess,
	}, requesterID)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(http.StatusCreated, toResponse(auction))
}

func (h *AuctionHandler) GetAuction(c echo.Context) error {
	requesterID, err := requester(c)
	if err != nil {
		return h.fail(c, err)
	}
	auctionID, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}

	auction, err := h.coordinator.Get(c.Request().Context(), auctionID, requesterID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, toResponse(auction))
}

// ListAuctions is the public storefront listing of active public auctions.
func (h *AuctionHandler) ListAuctions(c echo.Context) error {
	auctions, err := h.coordinator.ActivePublic(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, toResponses(auctions))
}

// ListMyAuctions returns the active auctions of other sellers the requester
// may see, public and participated-private alike.
func (h *AuctionHandler) ListMyAuctions(c echo.Context) error {
	requesterID, err := requester(c)
	if err != nil {
		return h.fail(c, err)
	}

	auctions, err := h.coordinator.ActiveForUser(c.Request().Context(), requesterID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, toResponses(auctions))
}

func (h *AuctionHandler) ListPrivateAuctions(c echo.Context) error {
	requesterID, err := requester(c)
	if err != nil {
		return h.fail(c, err)
	}

	auctions, err := h.coordinator.ActivePrivateForUser(c.Request().Context(), requesterID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, toResponses(auctions))
}

// ListSellerAuctions returns every auction the requester sells.
func (h *AuctionHandler) ListSellerAuctions(c echo.Context) error {
	requesterID, err := requester(c)
	if err != nil {
		return h.fail(c, err)
	}

	auctions, err := h.coordinator.BySeller(c.Request().Context(), requesterID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, toResponses(auctions))
}

// GetSeller resolves an auction's seller for the other marketplace services.
func (h *AuctionHandler) GetSeller(c echo.Context) error {
	auctionID, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}

	sellerID, err := h.coordinator.SellerID(c.Request().Context(), auctionID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int64{"seller_id": sellerID})
}

func (h *AuctionHandler) UpdateAuction(c echo.Context) error {
	requesterID, err := requester(c)
	if err != nil {
		return h.fail(c, err)
	}
	auctionID, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}

	var req UpdateAuctionRequest
	if err := c.Bind(&req); err != nil {
		return h.fail(c, domain.ErrInvalidRequest("invalid request body"))
	}

	auction, err := h.coordinator.Update(c.Request().Context(), auctionID, requesterID, services.UpdateAuctionPatch{
		StartingPrice: req.StartingPrice,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		PublicAccess:  req.PublicAccess,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, toResponse(auction))
}

func (h *AuctionHandler) DeleteAuction(c echo.Context) error {
	requesterID, err := requester(c)
	if err != nil {
		return h.fail(c, err)
	}
	auctionID, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}

	if err := h.coordinator.Delete(c.Request().Context(), auctionID, requesterID); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "auction deleted"})
}

func (h *AuctionHandler) CloseAuction(c echo.Context) error {
	requesterID, err := requester(c)
	if err != nil {
		return h.fail(c, err)
	}
	auctionID, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}

	auction, err := h.coordinator.Close(c.Request().Context(), auctionID, requesterID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, toResponse(auction))
}

func (h *AuctionHandler) SendInvitations(c echo.Context) error {
	requesterID, err := requester(c)
	if err != nil {
		return h.fail(c, err)
	}
	auctionID, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}

	var req InvitationRequest
	if err := c.Bind(&req); err != nil {
		return h.fail(c, domain.ErrInvalidRequest("invalid request body"))
	}
	if len(req.Emails) == 0 {
		return h.fail(c, domain.ErrInvalidRequest("at least one email is required"))
	}

	if err := h.coordinator.SendInvitations(c.Request().Context(), auctionID, requesterID, req.Emails); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "invitations sent"})
}

func (h *AuctionHandler) RemoveUser(c echo.Context) error {
	requesterID, err := requester(c)
	if err != nil {
		return h.fail(c, err)
	}
	auctionID, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}

	var req RemoveUserRequest
	if err := c.Bind(&req); err != nil {
		return h.fail(c, domain.ErrInvalidRequest("invalid request body"))
	}
	if req.UserID <= 0 {
		return h.fail(c, domain.ErrInvalidRequest("user id is required"))
	}

	if err := h.coordinator.RemoveParticipant(c.Request().Context(), auctionID, requesterID, req.UserID); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "user removed from auction"})
}

// fail is the single mapping from domain codes to transport statuses.
// Internal failures get a stable message; details stay in the log.
func (h *AuctionHandler) fail(c echo.Context, err error) error {
	code, ok := domain.CodeOf(err)
	if !ok {
		h.log.Error("Unclassified error", "path", c.Path(), "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody("internal error"))
	}

	switch code {
	case domain.CodeAuctionNotFound, domain.CodeItemNotFound:
		return c.JSON(http.StatusNotFound, errorBody(err.Error()))
	case domain.CodeAuctionNotAvailable, domain.CodeNotAParticipant:
		return c.JSON(http.StatusForbidden, errorBody(err.Error()))
	case domain.CodeBidRejected, domain.CodeInvalidAuctionWindow,
		domain.CodeAuctionAlreadyExists, domain.CodeAuctionAlreadyStarted,
		domain.CodeInvalidRequest:
		return c.JSON(http.StatusBadRequest, errorBody(err.Error()))
	case domain.CodeCacheFailed, domain.CodeCollaboratorUnavailable:
		h.log.Error("Dependency failure", "path", c.Path(), "error", err)
		return c.JSON(http.StatusServiceUnavailable, errorBody("service temporarily unavailable"))
	case domain.CodeStoreFailed:
		h.log.Error("Store failure", "path", c.Path(), "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody("internal error"))
	default:
		h.log.Error("Unmapped error code", "path", c.Path(), "code", int(code), "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody("internal error"))
	}
}

// requester reads the user id the gateway injects after authentication.
func requester(c echo.Context) (int64, error) {
	userID, err := strconv.ParseInt(c.Request().Header.Get("X-User-Id"), 10, 64)
	if err != nil || userID <= 0 {
		return 0, domain.ErrInvalidRequest("user id header is missing or invalid")
	}
	return userID, nil
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidRequest("invalid auction id")
	}
	return id, nil
}

func errorBody(message string) map[string]string {
	return map[string]string{"error": message}
}

func toResponse(auction *domain.Auction) AuctionResponse {
	return AuctionResponse{
		AuctionID:     auction.ID,
		ItemID:        auction.ItemID,
		SellerID:      auction.SellerID,
		BidderID:      auction.BidderID,
		StartingPrice: auction.StartingPrice,
		CurrentPrice:  auction.CurrentPrice,
		StartDate:     auction.StartDate,
		EndDate:       auction.EndDate,
		Status:        auction.Status(time.Now()).String(),
		PublicAccess:  auction.PublicAccess,
	}
}

func toResponses(auctions []*domain.Auction) []AuctionResponse {
	responses := make([]AuctionResponse, 0, len(auctions))
	for _, auction := range auctions {
		responses = append(responses, toResponse(auction))
	}
	return responses
}
