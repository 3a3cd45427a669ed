package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carpool/internal/app"
	"carpool/internal/handler"
	"carpool/internal/logger"
)

const jwtSecret = "jwt-test-secret"

func newTestRouter(h *harness) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return app.NewRouter(app.RouterDeps{
		RideHandler:    handler.NewRideHandler(h.rides),
		BookingHandler: handler.NewBookingHandler(h.bookings),
		DriverHandler:  handler.NewDriverHandler(h.rides),
		PaymentHandler: handler.NewPaymentHandler(h.bookings),
		UserHandler:    handler.NewUserHandler(h.bookings, h.vouchers),
		JWTSecret:      jwtSecret,
		Logger:         logger.Discard(),
	})
}

func tokenFor(t *testing.T, uid string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   uid,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return signed
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		MessageAr string `json:"message_ar"`
	} `json:"error"`
}

func do(t *testing.T, router *gin.Engine, method, path, uid string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if uid != "" {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, uid))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func TestHTTP_RequiresToken(t *testing.T) {
	router := newTestRouter(newHarness(t))

	code, env := do(t, router, http.MethodGet, "/v1/rides", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)
	assert.NotEmpty(t, env.Error.MessageAr)
}

func TestHTTP_BookPayAndCancel(t *testing.T) {
	h := newHarness(t)
	h.seedRide("r1", 2, 10*time.Hour, time.Hour)
	router := newTestRouter(h)

	code, env := do(t, router, http.MethodPost, "/v1/rides/r1/book", aliceID, handler.BookRideRequest{
		PaymentMethod: "CARD", Seats: 2,
	})
	require.Equal(t, http.StatusOK, code)
	require.True(t, env.Success)

	var booking handler.BookingResponse
	require.NoError(t, json.Unmarshal(env.Data, &booking))
	assert.Equal(t, int64(210), booking.Invoice.GrandTotal)
	assert.Equal(t, "AWAITING_PAYMENT", booking.Passenger.Status)
	require.NotEmpty(t, booking.PaymentHash)

	code, env = do(t, router, http.MethodPost, "/v1/rides/r1/book", bobID, handler.BookRideRequest{
		PaymentMethod: "CASH", Seats: 1,
	})
	assert.Equal(t, http.StatusGone, code)
	assert.Equal(t, "GONE", env.Error.Code)

	confirmPath := "/v1/passengers/" + booking.Passenger.ID + "/confirm-payment"
	code, env = do(t, router, http.MethodPost, confirmPath, "", handler.ConfirmPaymentRequest{
		Reference: "pi_forged", Signature: booking.PaymentHash,
	})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	code, _ = do(t, router, http.MethodPost, confirmPath, "", handler.ConfirmPaymentRequest{
		Reference: "pi_1", Signature: h.gateway.Sign(booking.Passenger.ID, "pi_1", 210),
	})
	require.Equal(t, http.StatusOK, code)

	code, env = do(t, router, http.MethodPost, "/v1/rides/r1/cancel-booking", aliceID, nil)
	require.Equal(t, http.StatusOK, code)
	var inv handler.InvoiceResponse
	require.NoError(t, json.Unmarshal(env.Data, &inv))
	assert.Equal(t, "REVERSED", inv.PaymentStatus)
	assert.Equal(t, int64(210), h.store.Balance(aliceID))
}

func TestHTTP_ErrorStatuses(t *testing.T) {
	h := newHarness(t)
	h.seedRide("r1", 4, 2*time.Hour, time.Hour)
	router := newTestRouter(h)

	tests := []struct {
		name   string
		method string
		path   string
		uid    string
		body   any
		status int
		code   string
	}{
		{"unknown ride", http.MethodGet, "/v1/rides/missing", aliceID, nil, http.StatusNotFound, "NOT_FOUND"},
		{"malformed body", http.MethodPost, "/v1/rides/r1/book", aliceID, "seats", http.StatusBadRequest, "BAD_REQUEST"},
		{"bad page", http.MethodGet, "/v1/rides?limit=abc", aliceID, nil, http.StatusBadRequest, "BAD_REQUEST"},
		{"not the driver", http.MethodPost, "/v1/rides/r1/start", aliceID, nil, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"too early", http.MethodPost, "/v1/rides/r1/start", driverID, nil, http.StatusUnprocessableEntity, "POLICY_VIOLATION"},
		{"not ongoing", http.MethodPost, "/v1/rides/r1/checkout", driverID, nil, http.StatusConflict, "INVALID_STATE"},
		{"payment for unknown booking", http.MethodPost, "/v1/passengers/p1/confirm-payment", "", handler.ConfirmPaymentRequest{Reference: "x", Signature: "00"}, http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := do(t, router, tt.method, tt.path, tt.uid, tt.body)
			assert.Equal(t, tt.status, code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestHTTP_ListRidesPages(t *testing.T) {
	h := newHarness(t)
	h.seedRide("r1", 4, 10*time.Hour, 2*time.Hour)
	h.seedRide("r2", 4, 10*time.Hour, time.Hour)
	router := newTestRouter(h)

	code, env := do(t, router, http.MethodGet, "/v1/rides?limit=1", bobID, nil)
	require.Equal(t, http.StatusOK, code)

	var page handler.PageResponse[handler.RideResponse]
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "r2", page.Items[0].ID)
	assert.Equal(t, "r2", page.NextCursor)

	code, env = do(t, router, http.MethodGet, "/v1/rides?limit=1&after=r2", bobID, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "r1", page.Items[0].ID)
}

func TestHTTP_DriverLocationRoundTrip(t *testing.T) {
	h := newHarness(t)
	h.seedRide("r1", 4, 10*time.Hour, time.Hour)
	router := newTestRouter(h)

	code, _ := do(t, router, http.MethodPost, "/v1/drivers/location", driverID, handler.PointDTO{Lat: 24.7, Lng: 46.6})
	require.Equal(t, http.StatusOK, code)

	code, env := do(t, router, http.MethodGet, "/v1/rides/r1/driver-location", aliceID, nil)
	require.Equal(t, http.StatusOK, code)
	var loc handler.LocationResponse
	require.NoError(t, json.Unmarshal(env.Data, &loc))
	require.NotNil(t, loc.Location)
	assert.Equal(t, handler.PointDTO{Lat: 24.7, Lng: 46.6}, *loc.Location)
}
