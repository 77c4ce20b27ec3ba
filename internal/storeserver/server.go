package storeserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"counselchat/pkg/types"
)

// Server exposes the store over REST. Writes answer with plain text;
// listing endpoints answer with JSON arrays.
type Server struct {
	store  *Store
	logger *zap.Logger
}

// NewServer creates the REST surface for store. A nil logger is
// replaced with a no-op logger.
func NewServer(store *Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{store: store, logger: logger}
}

// Register mounts the store routes on router.
func (s *Server) Register(router *mux.Router) {
	router.HandleFunc("/users/save", s.handleSaveUser).Methods(http.MethodPost)
	router.HandleFunc("/users/counsellors", s.handleListCounsellors).Methods(http.MethodGet)
	router.HandleFunc("/messages/sendRequest", s.handleSendRequest).Methods(http.MethodPost)
	router.HandleFunc("/messages/getRequests", s.handleListRequests).Methods(http.MethodGet)
	router.HandleFunc("/messages/updateBookingStatus", s.handleUpdateBookingStatus).Methods(http.MethodPut)
	router.HandleFunc("/bookings/create", s.handleCreateAppointment).Methods(http.MethodPost)
	router.HandleFunc("/bookings/counsellor/{uuid}", s.handleCounsellorAppointments).Methods(http.MethodGet)
	router.HandleFunc("/bookings/customer/{uuid}", s.handleCustomerAppointments).Methods(http.MethodGet)
}

func (s *Server) handleSaveUser(w http.ResponseWriter, r *http.Request) {
	var record types.UserRecord
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		s.fail(w, http.StatusBadRequest, "invalid user payload")
		return
	}
	if err := s.store.SaveUser(r.Context(), &record); err != nil {
		if errors.Is(err, types.ErrInvalidUserID) {
			s.fail(w, http.StatusBadRequest, err.Error())
			return
		}
		s.storeFailure(w, "save user", err)
		return
	}
	s.text(w, "User saved successfully")
}

func (s *Server) handleListCounsellors(w http.ResponseWriter, r *http.Request) {
	counsellors, err := s.store.ListCounsellors(r.Context())
	if err != nil {
		s.storeFailure(w, "list counsellors", err)
		return
	}
	s.json(w, counsellors)
}

func (s *Server) handleSendRequest(w http.ResponseWriter, r *http.Request) {
	var req types.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := s.store.SendRequest(r.Context(), &req); err != nil {
		if errors.Is(err, types.ErrIncompleteRequest) {
			s.fail(w, http.StatusBadRequest, err.Error())
			return
		}
		s.storeFailure(w, "send request", err)
		return
	}
	s.text(w, "Request sent successfully")
}

func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := s.store.ListRequests(r.Context())
	if err != nil {
		s.storeFailure(w, "list requests", err)
		return
	}
	s.json(w, requests)
}

func (s *Server) handleUpdateBookingStatus(w http.ResponseWriter, r *http.Request) {
	senderID := r.URL.Query().Get("senderId")
	receiverID := r.URL.Query().Get("receiverId")
	if senderID == "" || receiverID == "" {
		s.fail(w, http.StatusBadRequest, "senderId and receiverId are required")
		return
	}
	if err := s.store.UpdateBookingStatus(r.Context(), senderID, receiverID); err != nil {
		if errors.Is(err, ErrNoMatchingRequest) {
			s.fail(w, http.StatusNotFound, err.Error())
			return
		}
		s.storeFailure(w, "update booking status", err)
		return
	}
	s.text(w, "Booking status updated successfully")
}

func (s *Server) handleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	var appt types.Appointment
	if err := json.NewDecoder(r.Body).Decode(&appt); err != nil {
		s.fail(w, http.StatusBadRequest, "invalid appointment payload")
		return
	}
	if err := s.store.CreateAppointment(r.Context(), &appt); err != nil {
		if errors.Is(err, types.ErrIncompleteSchedule) {
			s.fail(w, http.StatusBadRequest, err.Error())
			return
		}
		s.storeFailure(w, "create appointment", err)
		return
	}
	s.text(w, "Booking created successfully")
}

func (s *Server) handleCounsellorAppointments(w http.ResponseWriter, r *http.Request) {
	appts, err := s.store.ListCounsellorAppointments(r.Context(), mux.Vars(r)["uuid"])
	if err != nil {
		s.storeFailure(w, "list counsellor appointments", err)
		return
	}
	s.json(w, appts)
}

func (s *Server) handleCustomerAppointments(w http.ResponseWriter, r *http.Request) {
	appts, err := s.store.ListCustomerAppointments(r.Context(), mux.Vars(r)["uuid"])
	if err != nil {
		s.storeFailure(w, "list customer appointments", err)
		return
	}
	s.json(w, appts)
}

func (s *Server) text(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(msg))
}

func (s *Server) json(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("encode response failed", zap.Error(err))
	}
}

func (s *Server) fail(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}

func (s *Server) storeFailure(w http.ResponseWriter, op string, err error) {
	s.logger.Error("store operation failed", zap.String("operation", op), zap.Error(err))
	s.fail(w, http.StatusInternalServerError, "internal store error")
}
