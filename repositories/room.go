package repositories

import (
	"context"
	"fmt"
	"project-hub/domain"
	"project-hub/errors"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

const roomPrefix = "room:"

// RoomRepository persists the set of rooms each user belongs to.
// One key per membership, "room:{len(userID)}:{userID}:{roomID}", so appending twice
// is a no-op and reading the set is a prefix scan. The length keeps ids containing
// ':' from matching another user's prefix.
type RoomRepository struct {
	db *badger.DB
}

func NewRoomRepository(db *badger.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

func userRoomsPrefix(userID domain.UserID) string {
	return fmt.Sprintf("%s%d:%s:", roomPrefix, len(userID), userID)
}

func (r *RoomRepository) GetUserRooms(ctx context.Context, userID domain.UserID) ([]domain.RoomID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rooms []domain.RoomID
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := userRoomsPrefix(userID)
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			rooms = append(rooms, domain.RoomID(strings.TrimPrefix(string(it.Item().Key()), prefix)))
		}
		return nil
	})
	return rooms, err
}

func (r *RoomRepository) AppendUserRoom(ctx context.Context, userID domain.UserID, roomID domain.RoomID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if userID == "" || roomID == "" {
		return fmt.Errorf("%w: user and room are required", errors.ErrInvalidInput)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(userRoomsPrefix(userID)+string(roomID)), []byte{})
	})
}
