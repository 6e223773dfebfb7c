package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/oakandember/tablebook/internal/escalation"
	"github.com/oakandember/tablebook/internal/health"
	"github.com/oakandember/tablebook/pkg/booking"
)

type httpHandler struct {
	cfg       Config
	logger    *zap.Logger
	bookings  *booking.Service
	callbacks *escalation.Service
	health    *health.Runner
	monitor   *health.Monitor
	calls     health.CallRecorder
}

type availabilityRequest struct {
	RestaurantID string `json:"restaurant_id"`
	Time         string `json:"time"`
	PartySize    int    `json:"party_size"`
	Seating      string `json:"seating"`
	Phone        string `json:"phone"`
}

type slotOptionPayload struct {
	Time    time.Time `json:"time"`
	Seating string    `json:"seating"`
}

type availabilityResponse struct {
	Available        bool                `json:"available"`
	Reason           string              `json:"reason,omitempty"`
	Message          string              `json:"message,omitempty"`
	TransferRequired bool                `json:"transfer_required,omitempty"`
	Alternatives     []slotOptionPayload `json:"alternatives,omitempty"`
}

func (handler *httpHandler) handleCheckAvailability(ctx *gin.Context) {
	var payload availabilityRequest
	if err := ctx.ShouldBindJSON(&payload); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	request, err := buildAvailabilityRequest(payload)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("validation_failed", err.Error()))
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	availability, err := handler.bookings.CheckAvailability(requestCtx, request)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, availabilityResponse{
		Available:        availability.Available,
		Reason:           string(availability.Reason),
		Message:          availability.Message,
		TransferRequired: availability.TransferRequired,
		Alternatives:     slotOptions(availability.Alternatives),
	})
}

type createBookingRequest struct {
	RestaurantID    string `json:"restaurant_id"`
	RequestID       string `json:"request_id"`
	CustomerName    string `json:"customer_name"`
	Phone           string `json:"phone"`
	Email           string `json:"email"`
	Time            string `json:"time"`
	PartySize       int    `json:"party_size"`
	Seating         string `json:"seating"`
	SpecialRequests string `json:"special_requests"`
	SMSConsent      bool   `json:"sms_consent"`
	Source          string `json:"source"`
}

type bookingResponse struct {
	Success          bool                `json:"success"`
	Replayed         bool                `json:"replayed,omitempty"`
	TransferRequired bool                `json:"transfer_required,omitempty"`
	ReservationID    string              `json:"reservation_id,omitempty"`
	ConfirmationCode string              `json:"confirmation_code,omitempty"`
	Message          string              `json:"message,omitempty"`
	FailureReason    string              `json:"failure_reason,omitempty"`
	Alternatives     []slotOptionPayload `json:"alternatives,omitempty"`
}

func (handler *httpHandler) handleCreateBooking(ctx *gin.Context) {
	var payload createBookingRequest
	if err := ctx.ShouldBindJSON(&payload); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	request, err := buildBookingRequest(payload)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("validation_failed", err.Error()))
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	result, err := handler.bookings.CreateBooking(requestCtx, request)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	status := http.StatusOK
	if result.Success && !result.Replayed {
		status = http.StatusCreated
	}
	ctx.JSON(status, bookingResult(result))
}

type updateBookingRequest struct {
	RequestID       string  `json:"request_id"`
	PartySize       *int    `json:"party_size"`
	Time            *string `json:"time"`
	Seating         *string `json:"seating"`
	SpecialRequests *string `json:"special_requests"`
}

func (handler *httpHandler) handleUpdateBooking(ctx *gin.Context) {
	reservationID, err := booking.NewReservationID(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("validation_failed", err.Error()))
		return
	}
	var payload updateBookingRequest
	if err := ctx.ShouldBindJSON(&payload); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	request := booking.UpdateRequest{ReservationID: reservationID}
	if payload.RequestID != "" {
		requestID, err := booking.NewRequestID(payload.RequestID)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, errorResponse("validation_failed", err.Error()))
			return
		}
		request.RequestID = requestID
	}
	if payload.PartySize != nil {
		partySize, err := booking.NewPartySize(*payload.PartySize)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, errorResponse("validation_failed", err.Error()))
			return
		}
		request.PartySize = &partySize
	}
	if payload.Time != nil {
		at, err := time.Parse(time.RFC3339, *payload.Time)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, errorResponse("validation_failed", "time must be RFC3339"))
			return
		}
		request.At = &at
	}
	if payload.Seating != nil {
		seating, err := booking.ParseSeatingType(*payload.Seating)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, errorResponse("validation_failed", err.Error()))
			return
		}
		request.Seating = &seating
	}
	request.SpecialRequests = payload.SpecialRequests

	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	result, err := handler.bookings.UpdateBooking(requestCtx, request)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, bookingResult(result))
}

type cancelBookingRequest struct {
	Reason string `json:"reason"`
}

func (handler *httpHandler) handleCancelBooking(ctx *gin.Context) {
	reservationID, err := booking.NewReservationID(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("validation_failed", err.Error()))
		return
	}
	var payload cancelBookingRequest
	_ = ctx.ShouldBindJSON(&payload)

	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	result, err := handler.bookings.CancelBooking(requestCtx, reservationID, payload.Reason)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"success":           result.Success,
		"late_cancellation": result.LateCancellation,
		"message":           result.Message,
	})
}

type advanceStatusRequest struct {
	Status string `json:"status"`
}

func (handler *httpHandler) handleAdvanceStatus(ctx *gin.Context) {
	reservationID, err := booking.NewReservationID(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("validation_failed", err.Error()))
		return
	}
	var payload advanceStatusRequest
	if err := ctx.ShouldBindJSON(&payload); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	status, err := booking.ParseReservationStatus(payload.Status)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("validation_failed", err.Error()))
		return
	}

	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	switch status {
	case booking.ReservationStatusSeated:
		err = handler.bookings.MarkSeated(requestCtx, reservationID)
	case booking.ReservationStatusCompleted:
		err = handler.bookings.MarkCompleted(requestCtx, reservationID)
	case booking.ReservationStatusNoShow:
		err = handler.bookings.MarkNoShow(requestCtx, reservationID)
	default:
		ctx.JSON(http.StatusBadRequest, errorResponse("validation_failed", "status must be seated, completed, or no_show"))
		return
	}
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": status.String()})
}

func (handler *httpHandler) handlePendingCallbacks(ctx *gin.Context) {
	restaurantID, err := booking.NewRestaurantID(ctx.Query("restaurant_id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("validation_failed", err.Error()))
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	callbacks, err := handler.callbacks.PendingQueue(requestCtx, restaurantID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	payload := make([]gin.H, 0, len(callbacks))
	for _, callback := range callbacks {
		payload = append(payload, callbackPayload(callback))
	}
	ctx.JSON(http.StatusOK, gin.H{"callbacks": payload})
}

type enqueueCallbackRequest struct {
	RestaurantID  string `json:"restaurant_id"`
	CustomerName  string `json:"customer_name"`
	Phone         string `json:"phone"`
	RequestedTime string `json:"requested_time"`
	PartySize     int    `json:"party_size"`
	FailureReason string `json:"failure_reason"`
	ErrorCode     string `json:"error_code"`
	Priority      string `json:"priority"`
}

func (handler *httpHandler) handleEnqueueCallback(ctx *gin.Context) {
	var payload enqueueCallbackRequest
	if err := ctx.ShouldBindJSON(&payload); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	restaurantID, err := booking.NewRestaurantID(payload.RestaurantID)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("validation_failed", err.Error()))
		return
	}
	request := escalation.EnqueueRequest{
		RestaurantID:  restaurantID,
		CustomerName:  payload.CustomerName,
		PartySize:     payload.PartySize,
		FailureReason: payload.FailureReason,
		ErrorCode:     payload.ErrorCode,
	}
	if payload.Phone != "" {
		phone, err := booking.NewPhoneNumber(payload.Phone)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, errorResponse("validation_failed", err.Error()))
			return
		}
		request.Phone = phone
	}
	if payload.RequestedTime != "" {
		requestedTime, err := time.Parse(time.RFC3339, payload.RequestedTime)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, errorResponse("validation_failed", "requested_time must be RFC3339"))
			return
		}
		request.RequestedTime = requestedTime
	}
	if payload.Priority != "" {
		priority, err := escalation.ParsePriority(payload.Priority)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, errorResponse("validation_failed", err.Error()))
			return
		}
		request.Priority = priority
	}

	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	callback, err := handler.callbacks.Enqueue(requestCtx, request)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, callbackPayload(callback))
}

func (handler *httpHandler) handleStartCallback(ctx *gin.Context) {
	callbackID, err := escalation.NewCallbackID(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("validation_failed", err.Error()))
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	callback, err := handler.callbacks.Start(requestCtx, callbackID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, callbackPayload(callback))
}

type resolveCallbackRequest struct {
	Action  string `json:"action"`
	Outcome string `json:"outcome"`
	Notes   string `json:"notes"`
}

func (handler *httpHandler) handleResolveCallback(ctx *gin.Context) {
	callbackID, err := escalation.NewCallbackID(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("validation_failed", err.Error()))
		return
	}
	var payload resolveCallbackRequest
	if err := ctx.ShouldBindJSON(&payload); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}

	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	var callback escalation.Callback
	switch payload.Action {
	case "complete":
		callback, err = handler.callbacks.Complete(requestCtx, callbackID, escalation.Outcome(payload.Outcome), payload.Notes)
	case "fail":
		callback, err = handler.callbacks.Fail(requestCtx, callbackID, payload.Notes)
	case "cancel":
		callback, err = handler.callbacks.Cancel(requestCtx, callbackID, payload.Notes)
	default:
		ctx.JSON(http.StatusBadRequest, errorResponse("validation_failed", "action must be complete, fail, or cancel"))
		return
	}
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, callbackPayload(callback))
}

type callRecordRequest struct {
	RestaurantID     string `json:"restaurant_id"`
	Status           string `json:"status"`
	BookingAttempted bool   `json:"booking_attempted"`
	BookingSucceeded bool   `json:"booking_succeeded"`
	EndedAt          string `json:"ended_at"`
}

func (handler *httpHandler) handleCallRecord(ctx *gin.Context) {
	var payload callRecordRequest
	if err := ctx.ShouldBindJSON(&payload); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	restaurantID, err := booking.NewRestaurantID(payload.RestaurantID)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("validation_failed", err.Error()))
		return
	}
	status := health.CallStatus(payload.Status)
	switch status {
	case health.CallStatusCompleted, health.CallStatusFailed, health.CallStatusAbandoned:
	default:
		ctx.JSON(http.StatusBadRequest, errorResponse("validation_failed", "status must be completed, failed, or abandoned"))
		return
	}
	record := health.CallRecord{
		RestaurantID:     restaurantID,
		Status:           status,
		BookingAttempted: payload.BookingAttempted,
		BookingSucceeded: payload.BookingSucceeded,
	}
	if payload.EndedAt != "" {
		endedAt, err := time.Parse(time.RFC3339, payload.EndedAt)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, errorResponse("validation_failed", "ended_at must be RFC3339"))
			return
		}
		record.EndedAt = endedAt
	}

	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	if err := handler.calls.InsertCallRecord(requestCtx, record); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"status": "recorded"})
}

func (handler *httpHandler) handleRestaurantHealth(ctx *gin.Context) {
	restaurantID, err := booking.NewRestaurantID(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("validation_failed", err.Error()))
		return
	}
	var snapshot health.Snapshot
	if handler.health != nil {
		if cached, known := handler.health.Latest(restaurantID); known {
			ctx.JSON(http.StatusOK, healthPayload(cached))
			return
		}
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	snapshot, err = handler.monitor.Evaluate(requestCtx, restaurantID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, healthPayload(snapshot))
}

func (handler *httpHandler) requestContext(ctx *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), handler.cfg.RequestTimeout)
}

func (handler *httpHandler) respondError(ctx *gin.Context, err error) {
	status, code := classifyHTTPError(err)
	if status >= http.StatusInternalServerError {
		handler.logger.Error("request failed", zap.Error(err))
	}
	ctx.JSON(status, errorResponse(code, err.Error()))
}

var validationSentinels = []error{
	booking.ErrInvalidRestaurantID,
	booking.ErrInvalidReservationID,
	booking.ErrInvalidRequestID,
	booking.ErrInvalidPhoneNumber,
	booking.ErrInvalidCustomerName,
	booking.ErrInvalidPartySize,
	booking.ErrInvalidSeatingType,
	booking.ErrInvalidReservationStatus,
	booking.ErrInvalidBookingTime,
	booking.ErrInvalidConfirmationCode,
	booking.ErrInvalidSettings,
	escalation.ErrInvalidCallbackID,
	escalation.ErrInvalidPriority,
	escalation.ErrInvalidStatus,
	escalation.ErrInvalidOutcome,
	escalation.ErrResolutionRequired,
}

var conflictSentinels = []error{
	booking.ErrStatusConflict,
	booking.ErrDuplicateBooking,
	booking.ErrDuplicateRequest,
	booking.ErrCapacityConflict,
	escalation.ErrStatusConflict,
}

func classifyHTTPError(err error) (int, string) {
	switch {
	case errors.Is(err, booking.ErrUnknownRestaurant),
		errors.Is(err, booking.ErrUnknownReservation),
		errors.Is(err, escalation.ErrUnknownCallback):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, booking.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	}
	for _, sentinel := range conflictSentinels {
		if errors.Is(err, sentinel) {
			return http.StatusConflict, "conflict"
		}
	}
	for _, sentinel := range validationSentinels {
		if errors.Is(err, sentinel) {
			return http.StatusBadRequest, "validation_failed"
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

func buildAvailabilityRequest(payload availabilityRequest) (booking.AvailabilityRequest, error) {
	restaurantID, err := booking.NewRestaurantID(payload.RestaurantID)
	if err != nil {
		return booking.AvailabilityRequest{}, err
	}
	at, err := time.Parse(time.RFC3339, payload.Time)
	if err != nil {
		return booking.AvailabilityRequest{}, errors.New("time must be RFC3339")
	}
	partySize, err := booking.NewPartySize(payload.PartySize)
	if err != nil {
		return booking.AvailabilityRequest{}, err
	}
	seating, err := booking.ParseSeatingPreference(payload.Seating)
	if err != nil {
		return booking.AvailabilityRequest{}, err
	}
	request := booking.AvailabilityRequest{
		RestaurantID: restaurantID,
		At:           at,
		PartySize:    partySize,
		Seating:      seating,
	}
	if payload.Phone != "" {
		phone, err := booking.NewPhoneNumber(payload.Phone)
		if err != nil {
			return booking.AvailabilityRequest{}, err
		}
		request.Phone = phone
	}
	return request, nil
}

func buildBookingRequest(payload createBookingRequest) (booking.BookingRequest, error) {
	restaurantID, err := booking.NewRestaurantID(payload.RestaurantID)
	if err != nil {
		return booking.BookingRequest{}, err
	}
	requestID, err := booking.NewRequestID(payload.RequestID)
	if err != nil {
		return booking.BookingRequest{}, err
	}
	customerName, err := booking.NewCustomerName(payload.CustomerName)
	if err != nil {
		return booking.BookingRequest{}, err
	}
	phone, err := booking.NewPhoneNumber(payload.Phone)
	if err != nil {
		return booking.BookingRequest{}, err
	}
	at, err := time.Parse(time.RFC3339, payload.Time)
	if err != nil {
		return booking.BookingRequest{}, errors.New("time must be RFC3339")
	}
	partySize, err := booking.NewPartySize(payload.PartySize)
	if err != nil {
		return booking.BookingRequest{}, err
	}
	seating, err := booking.ParseSeatingPreference(payload.Seating)
	if err != nil {
		return booking.BookingRequest{}, err
	}
	return booking.BookingRequest{
		RestaurantID:    restaurantID,
		RequestID:       requestID,
		CustomerName:    customerName,
		Phone:           phone,
		Email:           payload.Email,
		At:              at,
		PartySize:       partySize,
		Seating:         seating,
		SpecialRequests: payload.SpecialRequests,
		SMSConsent:      payload.SMSConsent,
		Source:          payload.Source,
	}, nil
}

func bookingResult(result booking.BookingResult) bookingResponse {
	return bookingResponse{
		Success:          result.Success,
		Replayed:         result.Replayed,
		TransferRequired: result.TransferRequired,
		ReservationID:    result.ReservationID.String(),
		ConfirmationCode: result.ConfirmationCode.String(),
		Message:          result.Message,
		FailureReason:    string(result.FailureReason),
		Alternatives:     slotOptions(result.Alternatives),
	}
}

func slotOptions(options []booking.SlotOption) []slotOptionPayload {
	if len(options) == 0 {
		return nil
	}
	payload := make([]slotOptionPayload, 0, len(options))
	for _, option := range options {
		payload = append(payload, slotOptionPayload{Time: option.At, Seating: option.Seating.String()})
	}
	return payload
}

func callbackPayload(callback escalation.Callback) gin.H {
	payload := gin.H{
		"callback_id":        callback.ID.String(),
		"restaurant_id":      callback.RestaurantID.String(),
		"customer_name":      callback.CustomerName,
		"phone":              callback.Phone.String(),
		"party_size":         callback.PartySize,
		"failure_reason":     callback.FailureReason,
		"error_code":         callback.ErrorCode,
		"priority":           callback.Priority.String(),
		"status":             callback.Status.String(),
		"immediate_transfer": callback.ImmediateTransfer,
		"attempt_count":      callback.AttemptCount,
		"created_at":         callback.CreatedAt,
	}
	if !callback.RequestedTime.IsZero() {
		payload["requested_time"] = callback.RequestedTime
	}
	if callback.LastAttemptAt != nil {
		payload["last_attempt_at"] = callback.LastAttemptAt
	}
	if callback.ResolutionOutcome != "" {
		payload["resolution_outcome"] = callback.ResolutionOutcome.String()
		payload["resolution_notes"] = callback.ResolutionNotes
	}
	return payload
}

func healthPayload(snapshot health.Snapshot) gin.H {
	return gin.H{
		"restaurant_id":  snapshot.RestaurantID.String(),
		"status":         string(snapshot.Status),
		"generated_at":   snapshot.GeneratedAt,
		"window_seconds": int(snapshot.Window.Seconds()),
		"metrics":        snapshot.Metrics,
		"alerts":         snapshot.Alerts,
	}
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}
