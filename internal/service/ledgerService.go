package service

import (
	"context"
	"fmt"

	repository "github.com/paulebil/UniHostel/internal/database/postgres"
	"github.com/paulebil/UniHostel/internal/entity"
	"github.com/sirupsen/logrus"
)

type ledgerService struct {
	roomRepo repository.RoomRepository
	logger   logrus.FieldLogger
}

func NewLedgerService(roomRepo repository.RoomRepository, logger logrus.FieldLogger) LedgerService {
	return &ledgerService{roomRepo: roomRepo, logger: logger}
}

// Reserve takes one slot or fails with ErrRoomFull
func (s *ledgerService) Reserve(ctx context.Context, roomID int64) error {
	if err := s.roomRepo.Reserve(ctx, roomID); err != nil {
		return fmt.Errorf("reserve room %d: %w", roomID, err)
	}
	s.logger.WithField("room_id", roomID).Debug("Room slot reserved")
	return nil
}

// Release gives one slot back; occupancy never drops below zero
func (s *ledgerService) Release(ctx context.Context, roomID int64) error {
	if err := s.roomRepo.Release(ctx, roomID); err != nil {
		return fmt.Errorf("release room %d: %w", roomID, err)
	}
	s.logger.WithField("room_id", roomID).Debug("Room slot released")
	return nil
}

func (s *ledgerService) CapacityOf(ctx context.Context, roomID int64) (int, error) {
	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return 0, err
	}
	return room.Capacity, nil
}

func (s *ledgerService) OccupancyOf(ctx context.Context, roomID int64) (int, error) {
	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return 0, err
	}
	return room.Occupancy, nil
}

func (s *ledgerService) Availability(ctx context.Context, roomID int64) (*entity.RoomCapacity, error) {
	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return &entity.RoomCapacity{
		RoomID:    room.ID,
		Capacity:  room.Capacity,
		Occupancy: room.Occupancy,
		Available: room.Available(),
	}, nil
}
