package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Mariaiaiaia/auction-sub000/internal/domain"
	"github.com/Mariaiaiaia/auction-sub000/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/peterldowns/testy/check"
)

func newTestContext(t *testing.T, headers map[string]string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/auctions/1", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func TestFail_MapsEveryCode(t *testing.T) {
	h := NewAuctionHandler(nil, logger.Nop())

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"auction not found", domain.ErrAuctionNotFound(), http.StatusNotFound},
		{"item not found", domain.ErrItemNotFound(), http.StatusNotFound},
		{"not available", domain.ErrAuctionNotAvailable(), http.StatusForbidden},
		{"not a participant", domain.ErrNotAParticipant(), http.StatusForbidden},
		{"bid rejected", domain.ErrBidRejected(domain.RejectBidTooLow), http.StatusBadRequest},
		{"invalid window", domain.ErrInvalidAuctionWindow(), http.StatusBadRequest},
		{"already exists", domain.ErrAuctionAlreadyExists(), http.StatusBadRequest},
		{"already started", domain.ErrAuctionAlreadyStarted(), http.StatusBadRequest},
		{"invalid request", domain.ErrInvalidRequest("bad"), http.StatusBadRequest},
		{"cache failed", domain.ErrCacheFailed("down", nil), http.StatusServiceUnavailable},
		{"collaborator unavailable", domain.ErrCollaboratorUnavailable(nil), http.StatusServiceUnavailable},
		{"store failed", domain.ErrStoreFailed("down", nil), http.StatusInternalServerError},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newTestContext(t, nil)
			check.Nil(t, h.fail(c, tt.err))
			check.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestFail_InternalDetailsStayOut(t *testing.T) {
	h := NewAuctionHandler(nil, logger.Nop())

	c, rec := newTestContext(t, nil)
	check.Nil(t, h.fail(c, domain.ErrStoreFailed("dsn user:pass@tcp", errors.New("sql: driver bad"))))
	body := rec.Body.String()
	check.Equal(t, false, len(body) == 0)
	check.Equal(t, false, strings.Contains(body, "dsn"))
	check.Equal(t, false, strings.Contains(body, "sql:"))
}

func TestRequester_ParsesHeader(t *testing.T) {
	c, _ := newTestContext(t, map[string]string{"X-User-Id": "42"})
	id, err := requester(c)
	check.Nil(t, err)
	check.Equal(t, int64(42), id)
}

func TestRequester_RejectsMissingOrInvalid(t *testing.T) {
	for _, header := range []string{"", "abc", "-1", "0"} {
		c, _ := newTestContext(t, map[string]string{"X-User-Id": header})
		_, err := requester(c)
		check.True(t, domain.IsCode(err, domain.CodeInvalidRequest))
	}
}
