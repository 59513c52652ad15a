package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	repository "github.com/paulebil/UniHostel/internal/database/postgres"
	"github.com/paulebil/UniHostel/internal/entity"
	"github.com/sirupsen/logrus"
)

type bookingService struct {
	bookingRepo repository.BookingRepository
	roomRepo    repository.RoomRepository
	hostelRepo  repository.HostelRepository
	events      EventPublisher
	validate    *Validator
	logger      logrus.FieldLogger
}

// NewBookingService создает новый экземпляр BookingService
func NewBookingService(
	bookingRepo repository.BookingRepository,
	roomRepo repository.RoomRepository,
	hostelRepo repository.HostelRepository,
	events EventPublisher,
	validate *Validator,
	logger logrus.FieldLogger,
) BookingService {
	if validate == nil {
		validate = NewValidator()
	}
	return &bookingService{
		bookingRepo: bookingRepo,
		roomRepo:    roomRepo,
		hostelRepo:  hostelRepo,
		events:      events,
		validate:    validate,
		logger:      logger,
	}
}

// CreateBooking validates the guest, checks the room belongs to the hostel
// and then reserves a slot and inserts the booking in one transaction.
func (s *bookingService) CreateBooking(ctx context.Context, principal entity.Principal, req *CreateBookingRequest) (*entity.Booking, error) {
	if principal.Role != entity.RoleStudent && !principal.IsAdmin() {
		return nil, fmt.Errorf("only students can book rooms: %w", entity.ErrForbidden)
	}

	req = normalizeBooking(req)
	if err := s.validate.Struct("booking", req); err != nil {
		return nil, err
	}

	if _, err := s.hostelRepo.GetByID(ctx, req.HostelID); err != nil {
		if errors.Is(err, entity.ErrHostelNotFound) {
			return nil, entity.Validation("hostel %d does not exist", req.HostelID)
		}
		return nil, err
	}

	room, err := s.roomRepo.GetByID(ctx, req.RoomID)
	if err != nil {
		if errors.Is(err, entity.ErrRoomNotFound) {
			return nil, entity.Validation("room %d does not exist", req.RoomID)
		}
		return nil, err
	}
	if room.HostelID != req.HostelID {
		return nil, fmt.Errorf("room %d, hostel %d: %w", req.RoomID, req.HostelID, entity.ErrRoomNotInHostel)
	}

	booking := &entity.Booking{
		StudentID: principal.ID,
		HostelID:  req.HostelID,
		RoomID:    req.RoomID,
		Guest: entity.Guest{
			FirstName:  req.FirstName,
			LastName:   req.LastName,
			Email:      req.Email,
			Phone:      req.Phone,
			University: req.University,
		},
	}

	if err := s.bookingRepo.CreateWithReservation(ctx, booking); err != nil {
		return nil, fmt.Errorf("create booking for room %d: %w", req.RoomID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"room_id":    booking.RoomID,
		"student_id": booking.StudentID,
	}).Info("Booking created")

	emit(ctx, s.events, s.logger, entity.EventBookingCreated, bookingKey(booking.ID), map[string]interface{}{
		"booking_id": booking.ID,
		"room_id":    booking.RoomID,
		"hostel_id":  booking.HostelID,
		"student_id": booking.StudentID,
	})

	return booking, nil
}

// CancelBooking releases the slot exactly once. A booking that is already
// cancelled is reported as not found.
func (s *bookingService) CancelBooking(ctx context.Context, principal entity.Principal, bookingID int64, reason string) (*entity.Booking, error) {
	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, principal, booking); err != nil {
		return nil, err
	}

	reason = strings.TrimSpace(reason)
	if len(reason) > 500 {
		return nil, entity.Validation("cancel reason is longer than 500 characters")
	}

	cancelled, err := s.bookingRepo.CancelWithRelease(ctx, bookingID, reason)
	if err != nil {
		return nil, fmt.Errorf("cancel booking %d: %w", bookingID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": cancelled.ID,
		"room_id":    cancelled.RoomID,
		"by":         principal.ID,
	}).Info("Booking cancelled")

	emit(ctx, s.events, s.logger, entity.EventBookingCancelled, bookingKey(cancelled.ID), map[string]interface{}{
		"booking_id": cancelled.ID,
		"room_id":    cancelled.RoomID,
		"reason":     cancelled.CancelReason,
	})

	return cancelled, nil
}

func (s *bookingService) GetBooking(ctx context.Context, principal entity.Principal, bookingID int64) (*entity.Booking, error) {
	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, principal, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *bookingService) ListBookingsByGuest(ctx context.Context, studentID int64) ([]*entity.Booking, error) {
	return s.bookingRepo.GetByStudentID(ctx, studentID)
}

func (s *bookingService) ListBookingsByOwner(ctx context.Context, ownerID int64) ([]*entity.Booking, error) {
	return s.bookingRepo.GetByOwnerID(ctx, ownerID)
}

func (s *bookingService) ListBookingsByHostel(ctx context.Context, principal entity.Principal, hostelID int64) ([]*entity.Booking, error) {
	hostel, err := s.hostelRepo.GetByID(ctx, hostelID)
	if err != nil {
		return nil, err
	}
	if !principal.IsAdmin() && hostel.OwnerID != principal.ID {
		return nil, fmt.Errorf("hostel %d: %w", hostelID, entity.ErrForbidden)
	}
	return s.bookingRepo.GetByHostelID(ctx, hostelID)
}

func (s *bookingService) authorize(ctx context.Context, principal entity.Principal, booking *entity.Booking) error {
	return authorizeBooking(ctx, s.hostelRepo, principal, booking)
}

// authorizeBooking allows the guest, the hostel owner and admins
func authorizeBooking(ctx context.Context, hostels repository.HostelRepository, principal entity.Principal, booking *entity.Booking) error {
	if principal.IsAdmin() || booking.StudentID == principal.ID && principal.Role == entity.RoleStudent {
		return nil
	}
	if principal.Role == entity.RoleOwner {
		hostel, err := hostels.GetByID(ctx, booking.HostelID)
		if err != nil {
			return err
		}
		if hostel.OwnerID == principal.ID {
			return nil
		}
	}
	return fmt.Errorf("booking %d: %w", booking.ID, entity.ErrForbidden)
}

// normalizeBooking trims the guest fields and strips phone separators
func normalizeBooking(req *CreateBookingRequest) *CreateBookingRequest {
	normalized := *req
	normalized.FirstName = strings.TrimSpace(req.FirstName)
	normalized.LastName = strings.TrimSpace(req.LastName)
	normalized.Email = strings.TrimSpace(req.Email)
	normalized.Phone = strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(req.Phone))
	normalized.University = strings.TrimSpace(req.University)
	return &normalized
}

func bookingKey(id int64) string {
	return fmt.Sprintf("booking:%d", id)
}
