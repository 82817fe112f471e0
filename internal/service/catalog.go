package service

import (
	"context"
	"errors"
	"strings"

	"github.com/iliyamo/hotel-reservation/internal/apperror"
	"github.com/iliyamo/hotel-reservation/internal/database"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/repository"
)

// CatalogService manages room types and rooms.
type CatalogService struct {
	db    *database.DB
	repos Repos
}

func NewCatalogService(db *database.DB, r Repos) *CatalogService {
	if db == nil || r.Rooms == nil || r.RoomTypes == nil {
		panic("nil dependency passed to NewCatalogService")
	}
	return &CatalogService{db: db, repos: r}
}

func (s *CatalogService) ListRoomTypes(ctx context.Context) ([]model.RoomType, error) {
	list, err := s.repos.RoomTypes.List(ctx)
	return list, dbErr(err, "room type")
}

func (s *CatalogService) GetRoomType(ctx context.Context, id uint64) (model.RoomType, error) {
	rt, err := s.repos.RoomTypes.GetByID(ctx, id)
	return rt, dbErr(err, "room type")
}

func (s *CatalogService) CreateRoomType(ctx context.Context, cmd CreateRoomType) (model.RoomType, error) {
	if err := check(cmd); err != nil {
		return model.RoomType{}, err
	}
	if err := positive("base_price", cmd.BasePrice); err != nil {
		return model.RoomType{}, err
	}
	if err := s.nameFree(ctx, cmd.Name, 0); err != nil {
		return model.RoomType{}, err
	}
	rt := model.RoomType{
		Name:        strings.TrimSpace(cmd.Name),
		Description: cmd.Description,
		BasePrice:   cmd.BasePrice.Round(2),
		MaxCapacity: cmd.MaxCapacity,
		Amenities:   cmd.Amenities,
	}
	if err := s.repos.RoomTypes.Create(ctx, &rt); err != nil {
		return model.RoomType{}, dbErr(err, "room type")
	}
	return rt, nil
}

// UpdateRoomType edits the catalog entry.  Prices already frozen on
// reservation lines are not touched.
func (s *CatalogService) UpdateRoomType(ctx context.Context, id uint64, cmd UpdateRoomType) (model.RoomType, error) {
	if err := check(cmd); err != nil {
		return model.RoomType{}, err
	}
	rt, err := s.repos.RoomTypes.GetByID(ctx, id)
	if err != nil {
		return model.RoomType{}, dbErr(err, "room type")
	}
	if cmd.Name != nil {
		if strings.TrimSpace(*cmd.Name) == "" {
			return model.RoomType{}, apperror.Validation("name is required")
		}
		if err := s.nameFree(ctx, *cmd.Name, id); err != nil {
			return model.RoomType{}, err
		}
		rt.Name = strings.TrimSpace(*cmd.Name)
	}
	if cmd.Description != nil {
		rt.Description = *cmd.Description
	}
	if cmd.BasePrice != nil {
		if err := positive("base_price", *cmd.BasePrice); err != nil {
			return model.RoomType{}, err
		}
		rt.BasePrice = cmd.BasePrice.Round(2)
	}
	if cmd.MaxCapacity != nil {
		rt.MaxCapacity = *cmd.MaxCapacity
	}
	if cmd.Amenities != nil {
		rt.Amenities = cmd.Amenities
	}
	if err := s.repos.RoomTypes.Update(ctx, &rt); err != nil {
		return model.RoomType{}, dbErr(err, "room type")
	}
	return rt, nil
}

func (s *CatalogService) DeleteRoomType(ctx context.Context, id uint64) error {
	err := s.repos.RoomTypes.Delete(ctx, id)
	if err != nil && isReferenced(err) {
		return apperror.Conflict("room type is used by existing rooms")
	}
	return dbErr(err, "room type")
}

func (s *CatalogService) nameFree(ctx context.Context, name string, excludeID uint64) error {
	taken, err := s.repos.RoomTypes.NameTaken(ctx, name, excludeID)
	if err != nil {
		return dbErr(err, "room type")
	}
	if taken {
		return apperror.Conflictf("room type %q already exists", strings.TrimSpace(name))
	}
	return nil
}

func (s *CatalogService) ListRooms(ctx context.Context, f repository.RoomFilter) ([]model.Room, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperror.Validationf("unknown status %q", f.Status)
	}
	list, err := s.repos.Rooms.List(ctx, f)
	return list, dbErr(err, "room")
}

func (s *CatalogService) GetRoom(ctx context.Context, id uint64) (model.Room, error) {
	r, err := s.repos.Rooms.GetByID(ctx, id)
	return r, dbErr(err, "room")
}

func (s *CatalogService) CreateRoom(ctx context.Context, cmd CreateRoom) (model.Room, error) {
	if err := check(cmd); err != nil {
		return model.Room{}, err
	}
	if err := s.numberFree(ctx, cmd.Number, 0); err != nil {
		return model.Room{}, err
	}
	if _, err := s.repos.RoomTypes.GetByID(ctx, cmd.RoomTypeID); err != nil {
		return model.Room{}, dbErr(err, "room type")
	}
	room := model.Room{Number: cmd.Number, Floor: cmd.Floor, RoomTypeID: cmd.RoomTypeID, Status: model.RoomFree, Notes: cmd.Notes}
	if err := s.repos.Rooms.Create(ctx, &room); err != nil {
		return model.Room{}, dbErr(err, "room")
	}
	return room, nil
}

func (s *CatalogService) UpdateRoom(ctx context.Context, id uint64, cmd UpdateRoom) (model.Room, error) {
	if err := check(cmd); err != nil {
		return model.Room{}, err
	}
	room, err := s.repos.Rooms.GetByID(ctx, id)
	if err != nil {
		return model.Room{}, dbErr(err, "room")
	}
	if cmd.Number != nil {
		if strings.TrimSpace(*cmd.Number) == "" {
			return model.Room{}, apperror.Validation("number is required")
		}
		if err := s.numberFree(ctx, *cmd.Number, id); err != nil {
			return model.Room{}, err
		}
		room.Number = *cmd.Number
	}
	if cmd.Floor != nil {
		room.Floor = *cmd.Floor
	}
	if cmd.RoomTypeID != nil && *cmd.RoomTypeID != room.RoomTypeID {
		if _, err := s.repos.RoomTypes.GetByID(ctx, *cmd.RoomTypeID); err != nil {
			return model.Room{}, dbErr(err, "room type")
		}
		room.RoomTypeID = *cmd.RoomTypeID
	}
	if cmd.Notes != nil {
		room.Notes = *cmd.Notes
	}
	if err := s.repos.Rooms.Update(ctx, &room); err != nil {
		return model.Room{}, dbErr(err, "room")
	}
	return room, nil
}

// DeleteRoom refuses rooms with pending or confirmed reservations.
func (s *CatalogService) DeleteRoom(ctx context.Context, id uint64) error {
	if _, err := s.repos.Rooms.GetByID(ctx, id); err != nil {
		return dbErr(err, "room")
	}
	active, err := s.repos.Rooms.HasActiveReservations(ctx, id)
	if err != nil {
		return dbErr(err, "room")
	}
	if active {
		return apperror.Conflict("room has active reservations")
	}
	err = s.repos.Rooms.Delete(ctx, id)
	if err != nil && isReferenced(err) {
		return apperror.Conflict("room is referenced by past reservations")
	}
	return dbErr(err, "room")
}

// ChangeRoomStatus applies a manual status change.  Asking for the
// current status is a no-op.
func (s *CatalogService) ChangeRoomStatus(ctx context.Context, id uint64, cmd ChangeRoomStatus) (model.Room, error) {
	if err := check(cmd); err != nil {
		return model.Room{}, err
	}
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return model.Room{}, dbErr(err, "room")
	}
	committed := false
	defer rollback(tx, &committed)

	room, err := s.repos.Rooms.GetForUpdateTx(ctx, tx.Tx, id)
	if err != nil {
		return model.Room{}, dbErr(err, "room")
	}
	if room.Status == cmd.Status {
		return room, nil
	}
	if !CanTransitionRoom(room.Status, cmd.Status) {
		return model.Room{}, apperror.Validationf("cannot change room from %s to %s", room.Status, cmd.Status)
	}
	if _, err := s.repos.Rooms.UpdateStatusTx(ctx, tx.Tx, []uint64{id}, cmd.Status); err != nil {
		return model.Room{}, dbErr(err, "room")
	}
	if err := tx.Commit(); err != nil {
		return model.Room{}, apperror.Infra("commit failed", err)
	}
	committed = true
	room.Status = cmd.Status
	return room, nil
}

func (s *CatalogService) numberFree(ctx context.Context, number string, excludeID uint64) error {
	taken, err := s.repos.Rooms.NumberTaken(ctx, number, excludeID)
	if err != nil {
		return dbErr(err, "room")
	}
	if taken {
		return apperror.Conflictf("room number %s already exists", strings.TrimSpace(number))
	}
	return nil
}

func isReferenced(err error) bool { return errors.Is(err, repository.ErrReferenced) }
