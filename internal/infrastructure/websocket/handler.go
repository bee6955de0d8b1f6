package websocket

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Mariaiaiaia/auction-sub000/internal/domain"
	"github.com/Mariaiaiaia/auction-sub000/pkg/logger"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // origin policy is the gateway's job
	},
}

// AuctionGetter is the coordinator's visibility-checked read.
type AuctionGetter interface {
	Get(ctx context.Context, auctionID, requesterID int64) (*domain.Auction, error)
}

type FeedHandler struct {
	auctions    AuctionGetter
	connManager *ConnectionManager
	log         logger.Logger
}

func NewFeedHandler(auctions AuctionGetter, connManager *ConnectionManager, log logger.Logger) *FeedHandler {
	return &FeedHandler{
		auctions:    auctions,
		connManager: connManager,
		log:         log,
	}
}

func (h *FeedHandler) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/ws/auctions/{auctionID}", h.HandleConnection)
	return router
}

// HandleConnection upgrades a watcher after the same visibility check the
// REST read applies, so private auctions never leak through the feed.
func (h *FeedHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	auctionID, err := strconv.ParseInt(vars["auctionID"], 10, 64)
	if err != nil {
		http.Error(w, "invalid auction id", http.StatusBadRequest)
		return
	}

	userID, err := strconv.ParseInt(r.Header.Get("X-User-Id"), 10, 64)
	if err != nil {
		http.Error(w, "user id required", http.StatusBadRequest)
		return
	}

	auction, err := h.auctions.Get(r.Context(), auctionID, userID)
	if err != nil {
		switch code, _ := domain.CodeOf(err); code {
		case domain.CodeAuctionNotFound:
			http.Error(w, "auction not found", http.StatusNotFound)
		case domain.CodeNotAParticipant:
			http.Error(w, "not a participant", http.StatusForbidden)
		default:
			http.Error(w, "service error", http.StatusInternalServerError)
		}
		return
	}
	if auction.Finished {
		http.Error(w, "auction has already ended", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	h.connManager.Register(auctionID, userID, conn)

	// Watchers only listen; the read loop exists to notice the close.
	go func() {
		defer func() {
			h.connManager.Unregister(auctionID, userID)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
