// Package storeserver implements the directory/booking store the core
// consumes: the REST surface backed by SQLite, used by the dev daemon
// and the end-to-end tests.
package storeserver

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"counselchat/pkg/types"
)

const writeQueueTimeout = 30 * time.Second

// Store is the SQLite-backed booking store. All writes funnel through
// a single goroutine; SQLite tolerates concurrent readers but not
// concurrent writers.
type Store struct {
	db     *sql.DB
	logger *zap.Logger

	writeCh  chan writeOp
	shutdown chan struct{}
	wg       sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type writeOp struct {
	operation func(db *sql.DB) error
	result    chan error
}

// Open opens (and if needed creates) the store at path. A nil logger
// is replaced with a no-op logger.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	s := &Store{
		db:       db,
		logger:   logger,
		writeCh:  make(chan writeOp, 100),
		shutdown: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.writeLoop()
	return s, nil
}

func (s *Store) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case op := <-s.writeCh:
			op.result <- op.operation(s.db)
		case <-s.shutdown:
			return
		}
	}
}

func (s *Store) executeWrite(operation func(db *sql.DB) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	s.mu.RUnlock()

	result := make(chan error, 1)
	select {
	case s.writeCh <- writeOp{operation: operation, result: result}:
		return <-result
	case <-time.After(writeQueueTimeout):
		return ErrWriteTimeout
	case <-s.shutdown:
		return ErrStoreClosed
	}
}

// Close stops the writer goroutine and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.shutdown)
	s.wg.Wait()
	return s.db.Close()
}

// SaveUser upserts a directory record. Saving the same record twice
// has no observable effect beyond the first call.
func (s *Store) SaveUser(ctx context.Context, record *types.UserRecord) error {
	if record.UUID == "" || record.Name == "" {
		return types.ErrInvalidUserID
	}
	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO users (uuid, email, name, role, specialization)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(uuid) DO UPDATE SET
				email = excluded.email,
				name = excluded.name,
				role = excluded.role,
				specialization = excluded.specialization`,
			record.UUID, record.Email, record.Name, string(record.Role), record.Specialization)
		return err
	})
}

// ListCounsellors returns every user registered with the counsellor
// role.
func (s *Store) ListCounsellors(ctx context.Context) ([]types.Counsellor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT uuid, name, specialization FROM users
		WHERE role = ? ORDER BY name`, string(types.RoleCounsellor))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counsellors := []types.Counsellor{}
	for rows.Next() {
		var c types.Counsellor
		if err := rows.Scan(&c.UUID, &c.Name, &c.Specialization); err != nil {
			return nil, err
		}
		counsellors = append(counsellors, c)
	}
	return counsellors, rows.Err()
}

// SendRequest stores a new PENDING booking request.
func (s *Store) SendRequest(ctx context.Context, req *types.BookingRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	id := uuid.New().String()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO booking_requests (id, customer_name, sender_id, receiver_id, session, booking_status, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, req.CustomerName, req.SenderID, req.ReceiverID, req.Session, types.BookingPending, now)
		return err
	})
}

// ListRequests returns every booking request, newest last; callers
// filter by status themselves.
func (s *Store) ListRequests(ctx context.Context) ([]types.BookingRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_name, sender_id, receiver_id, session, booking_status, timestamp
		FROM booking_requests ORDER BY timestamp`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := []types.BookingRequest{}
	for rows.Next() {
		var req types.BookingRequest
		var ts string
		if err := rows.Scan(&req.ID, &req.CustomerName, &req.SenderID, &req.ReceiverID, &req.Session, &req.BookingStatus, &ts); err != nil {
			return nil, err
		}
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			req.Timestamp = parsed
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// CreateAppointment persists a confirmed appointment slot.
func (s *Store) CreateAppointment(ctx context.Context, appt *types.Appointment) error {
	if err := appt.Validate(); err != nil {
		return err
	}
	id := uuid.New().String()
	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO appointments (id, customer_id, customer_name, counsellor_id, counsellor_name, session_date, session_time, session)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, appt.CustomerID, appt.CustomerName, appt.CounsellorID, appt.CounsellorName,
			appt.SessionDate, appt.SessionTime, appt.Session)
		return err
	})
}

// UpdateBookingStatus confirms the request addressed by the pair. The
// caller addresses in chat-session order (sender = counsellor), while
// the stored request has the customer as sender, so the lookup swaps
// the pair.
func (s *Store) UpdateBookingStatus(ctx context.Context, senderID, receiverID string) error {
	return s.executeWrite(func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, `
			UPDATE booking_requests SET booking_status = ?
			WHERE sender_id = ? AND receiver_id = ? AND booking_status = ?`,
			types.BookingConfirmed, receiverID, senderID, types.BookingPending)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNoMatchingRequest
		}
		return nil
	})
}

// ListCounsellorAppointments returns confirmed appointments for the
// counsellor.
func (s *Store) ListCounsellorAppointments(ctx context.Context, counsellorID string) ([]types.Appointment, error) {
	return s.listAppointments(ctx, "counsellor_id", counsellorID)
}

// ListCustomerAppointments returns confirmed appointments for the
// customer.
func (s *Store) ListCustomerAppointments(ctx context.Context, customerID string) ([]types.Appointment, error) {
	return s.listAppointments(ctx, "customer_id", customerID)
}

func (s *Store) listAppointments(ctx context.Context, column, id string) ([]types.Appointment, error) {
	query := fmt.Sprintf(`
		SELECT id, customer_id, customer_name, counsellor_id, counsellor_name, session_date, session_time, session
		FROM appointments WHERE %s = ? ORDER BY session_date, session_time`, column)
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	appts := []types.Appointment{}
	for rows.Next() {
		var a types.Appointment
		if err := rows.Scan(&a.ID, &a.CustomerID, &a.CustomerName, &a.CounsellorID, &a.CounsellorName,
			&a.SessionDate, &a.SessionTime, &a.Session); err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	return appts, rows.Err()
}
