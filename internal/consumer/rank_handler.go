package consumer

import (
	"context"
	"encoding/json"

	"github.com/dhiryansd999-cell/runrealm/internal/events"
	"github.com/dhiryansd999-cell/runrealm/internal/rank"
)

// RankHandler folds moment.recorded events into the leaderboard. Events from
// other realms and other event types are skipped, not failed.
type RankHandler struct {
	realmID string
	board   *rank.Board
}

// NewRankHandler constructs a RankHandler for one realm.
func NewRankHandler(realmID string, board *rank.Board) *RankHandler {
	return &RankHandler{realmID: realmID, board: board}
}

// Handle implements Handler.
func (h *RankHandler) Handle(ctx context.Context, msg Message) error {
	if msg.EventType != "moment.recorded" {
		recordSkipped(msg.EventType, "event_type")
		return nil
	}
	if msg.RealmID != "" && msg.RealmID != h.realmID {
		recordSkipped(msg.EventType, "foreign_realm")
		return nil
	}

	var evt events.MomentRecorded
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		return err
	}

	at := evt.RecordedAt
	if at.IsZero() {
		at = msg.Timestamp
	}
	h.board.Record(evt.MomentID, evt.OwnerUID, evt.XPAwarded, evt.DistanceMeters, at)
	return nil
}
