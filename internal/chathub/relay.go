package chathub

import (
	"context"
	"log"
	"time"

	"strangerchat/backend/internal/config"
	"strangerchat/backend/internal/models"
	"strangerchat/backend/internal/storage"
)

// RelayHooks receive what a Relay observes in its room. Hooks run on the
// relay goroutine, except during StartRelay where they run on the caller's.
type RelayHooks struct {
	OnHistory    func([]models.ChatHistory)
	OnMessage    func(models.ChatHistory)
	OnRoomClosed func()
	OnPeerTyping func(bool)
}

// Relay streams one room's messages, typing flags and close event to a
// single participant.
type Relay struct {
	Storage        storage.Storage
	SessionID      string
	RoomID         string
	ResyncInterval time.Duration

	hooks    RelayHooks
	sub      storage.Subscription
	cancel   context.CancelFunc
	seen     map[string]struct{}
	reported bool
}

// StartRelay subscribes to the room, delivers its history through OnHistory
// and then follows live updates until Stop. Subscribing happens before the
// history read so nothing written in between is lost. A failed subscription
// leaves the relay on periodic resync only.
func StartRelay(ctx context.Context, s storage.Storage, sessionID, roomID string, resync time.Duration, hooks RelayHooks) *Relay {
	if resync <= 0 {
		resync = config.DefaultRelayResyncInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	r := &Relay{
		Storage:        s,
		SessionID:      sessionID,
		RoomID:         roomID,
		ResyncInterval: resync,
		hooks:          hooks,
		cancel:         cancel,
		seen:           make(map[string]struct{}),
	}

	sub, err := s.Subscribe(ctx, storage.MessagesTopic(roomID), storage.RoomTopic(roomID), storage.TypingTopic(roomID))
	if err != nil {
		log.Printf("WARNING: Live updates unavailable for room %s: %v", roomID, err)
	} else {
		r.sub = sub
	}

	history, err := s.GetChatHistory(ctx, roomID)
	if err != nil {
		log.Printf("ERROR: Failed to load history of room %s: %v", roomID, err)
	}
	for _, msg := range history {
		r.seen[msg.ID] = struct{}{}
	}
	if r.hooks.OnHistory != nil {
		r.hooks.OnHistory(history)
	}

	// the peer may have left before we subscribed
	r.checkRoom(ctx)

	go r.run(ctx)
	return r
}

// Stop detaches the relay. It does not wait for the goroutine, so it is safe
// to call from a hook.
func (r *Relay) Stop() {
	r.cancel()
	if r.sub != nil {
		r.sub.Close()
	}
}

func (r *Relay) run(ctx context.Context) {
	var events <-chan models.ChangeEvent
	if r.sub != nil {
		defer r.sub.Close()
		events = r.sub.Events()
	}

	ticker := time.NewTicker(r.ResyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			r.handle(ev)
		case <-ticker.C:
			r.resync(ctx)
		}
	}
}

func (r *Relay) handle(ev models.ChangeEvent) {
	switch ev.Table {
	case models.TableMessages:
		var msg models.ChatHistory
		if err := ev.Decode(&msg); err != nil {
			log.Printf("WARNING: Bad message event in room %s: %v", r.RoomID, err)
			return
		}
		r.deliver(msg)

	case models.TableChatRooms:
		var room models.ChatRoom
		if err := ev.Decode(&room); err != nil {
			log.Printf("WARNING: Bad room event in room %s: %v", r.RoomID, err)
			return
		}
		if room.RoomID == r.RoomID && !room.IsActive {
			r.roomClosed()
		}

	case models.TableTyping:
		var st models.TypingStatus
		if err := ev.Decode(&st); err != nil {
			log.Printf("WARNING: Bad typing event in room %s: %v", r.RoomID, err)
			return
		}
		if st.RoomID == r.RoomID && st.SessionID != r.SessionID && r.hooks.OnPeerTyping != nil {
			r.hooks.OnPeerTyping(st.IsTyping)
		}
	}
}

// deliver passes on peer messages of this room, each id once.
func (r *Relay) deliver(msg models.ChatHistory) {
	if msg.RoomID != r.RoomID || msg.SenderID == r.SessionID {
		return
	}
	if _, dup := r.seen[msg.ID]; dup {
		return
	}
	r.seen[msg.ID] = struct{}{}
	if r.hooks.OnMessage != nil {
		r.hooks.OnMessage(msg)
	}
}

func (r *Relay) roomClosed() {
	if r.reported {
		return
	}
	r.reported = true
	if r.hooks.OnRoomClosed != nil {
		r.hooks.OnRoomClosed()
	}
}

func (r *Relay) checkRoom(ctx context.Context) {
	room, err := r.Storage.GetRoomByID(ctx, r.RoomID)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("WARNING: Failed to check room %s: %v", r.RoomID, err)
		}
		return
	}
	if !room.IsActive {
		r.roomClosed()
	}
}

// resync re-reads the room to pick up anything the change feed dropped.
func (r *Relay) resync(ctx context.Context) {
	history, err := r.Storage.GetChatHistory(ctx, r.RoomID)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("WARNING: Resync of room %s failed: %v", r.RoomID, err)
		}
		return
	}
	for _, msg := range history {
		r.deliver(msg)
	}
	r.checkRoom(ctx)
}
