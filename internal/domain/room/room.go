// Package room holds the authoritative state of one voice room: its
// seats, admins, bans, waiting queue and listeners. All methods are
// pure in-memory mutations; callers are responsible for loading,
// locking and persisting the aggregate.
package room

import (
	"fmt"
	"time"

	"github.com/voiceroom/server/internal/domain/fault"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

type Role string

const (
	RoleOwner    Role = "owner"
	RoleAdmin    Role = "admin"
	RoleSpeaker  Role = "speaker"
	RoleListener Role = "listener"
	RoleGuest    Role = "guest"
)

type Permission string

const (
	PermKick        Permission = "kick"
	PermMute        Permission = "mute"
	PermManageSeats Permission = "manage_seats"
	PermManageChat  Permission = "manage_chat"
	PermManageMedia Permission = "manage_media"
	PermInvite      Permission = "invite"
)

type Seat struct {
	SeatNumber int       `json:"seat_number"`
	UserID     string    `json:"user_id,omitempty"`
	IsVIP      bool      `json:"is_vip"`
	IsMuted    bool      `json:"is_muted"`
	IsLocked   bool      `json:"is_locked"`
	JoinedAt   time.Time `json:"joined_at"`
}

func (s Seat) Occupied() bool {
	return s.UserID != ""
}

type AdminPermissions struct {
	CanKick        bool `json:"can_kick"`
	CanMute        bool `json:"can_mute"`
	CanManageSeats bool `json:"can_manage_seats"`
	CanManageChat  bool `json:"can_manage_chat"`
	CanManageMedia bool `json:"can_manage_media"`
	CanInvite      bool `json:"can_invite"`
}

func DefaultAdminPermissions() AdminPermissions {
	return AdminPermissions{
		CanKick:        true,
		CanMute:        true,
		CanManageSeats: true,
		CanInvite:      true,
	}
}

func (p AdminPermissions) Has(perm Permission) bool {
	switch perm {
	case PermKick:
		return p.CanKick
	case PermMute:
		return p.CanMute
	case PermManageSeats:
		return p.CanManageSeats
	case PermManageChat:
		return p.CanManageChat
	case PermManageMedia:
		return p.CanManageMedia
	case PermInvite:
		return p.CanInvite
	}

	return false
}

type Admin struct {
	UserID      string           `json:"user_id"`
	AssignedAt  time.Time        `json:"assigned_at"`
	AssignedBy  string           `json:"assigned_by"`
	Permissions AdminPermissions `json:"permissions"`
}

type Ban struct {
	UserID   string    `json:"user_id"`
	BannedAt time.Time `json:"banned_at"`
	BannedBy string    `json:"banned_by"`
	Reason   string    `json:"reason"`
	// nil means permanent.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type Listener struct {
	UserID   string    `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}

type Stats struct {
	TotalJoins       int       `json:"total_joins"`
	TotalMessages    int       `json:"total_messages"`
	PeakParticipants int       `json:"peak_participants"`
	LastActivity     time.Time `json:"last_activity"`
}

type Room struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	OwnerID   string `json:"owner_id"`
	IsPrivate bool   `json:"is_private"`
	Status    Status `json:"status"`

	TotalMics int `json:"total_mics"`
	VIPMics   int `json:"vip_mics"`
	GuestMics int `json:"guest_mics"`

	Seats        []Seat       `json:"seats"`
	Admins       []Admin      `json:"admins"`
	BannedUsers  []Ban        `json:"banned_users"`
	WaitingQueue []QueueEntry `json:"waiting_queue"`
	Listeners    []Listener   `json:"listeners"`

	Stats     Stats     `json:"stats"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a room with pre-populated empty seats.
func New(id, ownerID, title string, totalMics int, isPrivate bool, now time.Time) (*Room, error) {
	if !ValidMicCount(totalMics) {
		return nil, ErrInvalidMicCount
	}

	return &Room{
		ID:        id,
		Title:     title,
		OwnerID:   ownerID,
		IsPrivate: isPrivate,
		Status:    StatusActive,
		TotalMics: totalMics,
		VIPMics:   VIPMicsFor(totalMics),
		GuestMics: totalMics - VIPMicsFor(totalMics),
		Seats:     newSeats(totalMics),
		Stats:     Stats{LastActivity: now},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// RoleOf derives the caller's role. Every permission check goes through
// here so seat-join and mic-count checks cannot diverge.
func (r *Room) RoleOf(userID string) Role {
	if r.OwnerID == userID {
		return RoleOwner
	}
	if r.adminOf(userID) != nil {
		return RoleAdmin
	}
	if r.SeatOf(userID) != nil {
		return RoleSpeaker
	}
	for i := range r.Listeners {
		if r.Listeners[i].UserID == userID {
			return RoleListener
		}
	}

	return RoleGuest
}

func (r *Room) adminOf(userID string) *Admin {
	for i := range r.Admins {
		if r.Admins[i].UserID == userID {
			return &r.Admins[i]
		}
	}

	return nil
}

// HasPermission reports whether the user may perform the given admin
// action. The owner always may.
func (r *Room) HasPermission(userID string, perm Permission) bool {
	switch r.RoleOf(userID) {
	case RoleOwner:
		return true
	case RoleAdmin:
		return r.adminOf(userID).Permissions.Has(perm)
	}

	return false
}

// IsBanned reports whether the user has an active ban. A ban is active
// while it has no expiry or its expiry is in the future.
func (r *Room) IsBanned(userID string, now time.Time) bool {
	for i := range r.BannedUsers {
		b := &r.BannedUsers[i]
		if b.UserID == userID && (b.ExpiresAt == nil || b.ExpiresAt.After(now)) {
			return true
		}
	}

	return false
}

// SeatOf returns the seat occupied by the user, or nil.
func (r *Room) SeatOf(userID string) *Seat {
	for i := range r.Seats {
		if r.Seats[i].UserID == userID {
			return &r.Seats[i]
		}
	}

	return nil
}

func (r *Room) seatByNumber(seatNumber int) *Seat {
	if seatNumber < 1 || seatNumber > len(r.Seats) {
		return nil
	}

	return &r.Seats[seatNumber-1]
}

// JoinSeat seats the user. A user already seated elsewhere is moved,
// never duplicated. Taking a seat removes the user from the waiting
// queue and the listener set.
func (r *Room) JoinSeat(userID string, seatNumber int, now time.Time) error {
	if r.IsBanned(userID, now) {
		return ErrBanned
	}

	seat := r.seatByNumber(seatNumber)
	if seat == nil {
		return ErrSeatNotFound
	}
	if seat.Occupied() {
		return ErrSeatTaken
	}
	if seat.IsLocked {
		return ErrSeatLocked
	}
	if seat.IsVIP {
		role := r.RoleOf(userID)
		if role != RoleOwner && role != RoleAdmin {
			return ErrVIPSeatForbidden
		}
	}

	r.LeaveSeat(userID)
	r.RemoveFromQueue(userID)
	r.RemoveListener(userID)

	seat.UserID = userID
	seat.JoinedAt = now
	r.touch(now)
	r.bumpPeak()

	return nil
}

// LeaveSeat vacates the user's seat and unmutes it. Returns the freed
// seat number, or false if the user was not seated.
func (r *Room) LeaveSeat(userID string) (int, bool) {
	seat := r.SeatOf(userID)
	if seat == nil {
		return 0, false
	}

	n := seat.SeatNumber
	seat.UserID = ""
	seat.JoinedAt = time.Time{}
	seat.IsMuted = false

	return n, true
}

// SetSeatMuted flips the mute flag of an occupied seat.
func (r *Room) SetSeatMuted(seatNumber int, muted bool) error {
	seat := r.seatByNumber(seatNumber)
	if seat == nil {
		return ErrSeatNotFound
	}
	if !seat.Occupied() {
		return fault.Conflict("seat is empty")
	}

	seat.IsMuted = muted

	return nil
}

// SetSeatLocked locks or unlocks an empty seat.
func (r *Room) SetSeatLocked(seatNumber int, locked bool) error {
	seat := r.seatByNumber(seatNumber)
	if seat == nil {
		return ErrSeatNotFound
	}
	if locked && seat.Occupied() {
		return fault.Conflict("cannot lock an occupied seat")
	}

	seat.IsLocked = locked

	return nil
}

// AddListener records the user as present but unseated. Joining bumps
// the join and peak-participant counters.
func (r *Room) AddListener(userID string, now time.Time) error {
	if r.IsBanned(userID, now) {
		return ErrBanned
	}
	if r.SeatOf(userID) != nil {
		return nil
	}
	for i := range r.Listeners {
		if r.Listeners[i].UserID == userID {
			return nil
		}
	}

	r.Listeners = append(r.Listeners, Listener{UserID: userID, JoinedAt: now})
	r.Stats.TotalJoins++
	r.touch(now)
	r.bumpPeak()

	return nil
}

func (r *Room) RemoveListener(userID string) bool {
	for i := range r.Listeners {
		if r.Listeners[i].UserID == userID {
			r.Listeners = append(r.Listeners[:i], r.Listeners[i+1:]...)
			return true
		}
	}

	return false
}

/// Ban records a ban and cascades: the target loses their seat, queue
// slot and listener entry. duration == 0 means permanent.
func (r *Room) Ban(target, bannedBy, reason string, duration time.Duration, now time.Time) error {
	if target == r.OwnerID {
		return ErrOwnerImmune
	}
	if r.IsBanned(target, now) {
		return ErrAlreadyBanned
	}

	var expiresAt *time.Time
	if duration > 0 {
		t := now.Add(duration)
		expiresAt = &t
	}

	r.BannedUsers = append(r.BannedUsers, Ban{
		UserID:    target,
		BannedAt:  now,
		BannedBy:  bannedBy,
		Reason:    reason,
		ExpiresAt: expiresAt,
	})

	r.LeaveSeat(target)
	r.RemoveFromQueue(target)
	r.RemoveListener(target)
	r.touch(now)

	return nil
}

// Unban drops the ban record only; it does not restore any state.
func (r *Room) Unban(target string) bool {
	for i := range r.BannedUsers {
		if r.BannedUsers[i].UserID == target {
			r.BannedUsers = append(r.BannedUsers[:i], r.BannedUsers[i+1:]...)
			return true
		}
	}

	return false
}

// PromoteAdmin grants admin with default permissions.
func (r *Room) PromoteAdmin(target, assignedBy string, now time.Time) error {
	if target == r.OwnerID {
		return ErrOwnerImmune
	}
	if r.adminOf(target) != nil {
		return ErrAlreadyAdmin
	}

	r.Admins = append(r.Admins, Admin{
		UserID:      target,
		AssignedAt:  now,
		AssignedBy:  assignedBy,
		Permissions: DefaultAdminPermissions(),
	})
	r.touch(now)

	return nil
}

func (r *Room) DemoteAdmin(target string) bool {
	for i := range r.Admins {
		if r.Admins[i].UserID == target {
			r.Admins = append(r.Admins[:i], r.Admins[i+1:]...)
			return true
		}
	}

	return false
}

// Rearrange rebuilds the seat array for a new mic count. Privileged
// occupants (owner, admins) are reseated into VIP slots first, then
// regular occupants fill what remains, both in prior seat order. Anyone
// who does not fit is pushed onto the waiting queue at elevated
// priority and returned as overflow; nobody is silently dropped.
func (r *Room) Rearrange(newTotalMics int, now time.Time) (oldSeats []Seat, overflow []string, err error) {
	if !ValidMicCount(newTotalMics) {
		return nil, nil, ErrInvalidMicCount
	}

	oldSeats = make([]Seat, len(r.Seats))
	copy(oldSeats, r.Seats)

	vip := VIPMicsFor(newTotalMics)
	newSeats := newSeats(newTotalMics)

	var privileged, regular []Seat
	for _, s := range oldSeats {
		if !s.Occupied() {
			continue
		}
		role := r.RoleOf(s.UserID)
		if role == RoleOwner || role == RoleAdmin {
			privileged = append(privileged, s)
		} else {
			regular = append(regular, s)
		}
	}

	next := 0
	for _, s := range privileged {
		if next >= vip {
			break
		}
		newSeats[next].UserID = s.UserID
		newSeats[next].JoinedAt = s.JoinedAt
		newSeats[next].IsMuted = s.IsMuted
		next++
	}
	// privileged occupants beyond the VIP capacity compete for the
	// remaining slots together with regular occupants
	if len(privileged) > vip {
		regular = append(privileged[vip:], regular...)
	}

	next = max(next, vip)
	for _, s := range regular {
		if next >= newTotalMics {
			overflow = append(overflow, s.UserID)
			continue
		}
		newSeats[next].UserID = s.UserID
		newSeats[next].JoinedAt = s.JoinedAt
		newSeats[next].IsMuted = s.IsMuted
		next++
	}

	r.Seats = newSeats
	r.TotalMics = newTotalMics
	r.VIPMics = vip
	r.GuestMics = newTotalMics - vip
	r.touch(now)

	// displaced users are guaranteed a queue slot ahead of ordinary
	// mic requests
	for _, userID := range overflow {
		r.AddToQueue(userID, overflowQueuePriority, now)
	}

	if err := r.checkSeatInvariants(); err != nil {
		return nil, nil, err
	}

	return oldSeats, overflow, nil
}

func (r *Room) checkSeatInvariants() error {
	if len(r.Seats) != r.TotalMics {
		return fault.Invariant(fmt.Sprintf("seat array length %d does not match mic count %d", len(r.Seats), r.TotalMics))
	}
	if r.VIPMics+r.GuestMics != r.TotalMics {
		return fault.Invariant(fmt.Sprintf("vip %d + guest %d does not match total %d", r.VIPMics, r.GuestMics, r.TotalMics))
	}
	seen := make(map[string]int, len(r.Seats))
	for _, s := range r.Seats {
		if s.IsVIP != (s.SeatNumber <= r.VIPMics) {
			return fault.Invariant(fmt.Sprintf("seat %d has wrong vip flag", s.SeatNumber))
		}
		if s.Occupied() {
			if prev, ok := seen[s.UserID]; ok {
				return fault.Invariant(fmt.Sprintf("user %s occupies seats %d and %d", s.UserID, prev, s.SeatNumber))
			}
			seen[s.UserID] = s.SeatNumber
		}
	}

	return nil
}

type MicStatsGroup struct {
	Total     int `json:"total"`
	Occupied  int `json:"occupied"`
	Available int `json:"available"`
}

type MicStats struct {
	Total       int           `json:"total"`
	Occupied    int           `json:"occupied"`
	Available   int           `json:"available"`
	VIP         MicStatsGroup `json:"vip"`
	Guest       MicStatsGroup `json:"guest"`
	Muted       int           `json:"muted"`
	QueueLength int           `json:"queue_length"`
}

func (r *Room) MicStats() MicStats {
	occupied, vipOccupied, muted := 0, 0, 0
	for _, s := range r.Seats {
		if !s.Occupied() {
			continue
		}
		occupied++
		if s.IsVIP {
			vipOccupied++
		}
		if s.IsMuted {
			muted++
		}
	}

	guestOccupied := occupied - vipOccupied

	return MicStats{
		Total:     r.TotalMics,
		Occupied:  occupied,
		Available: r.TotalMics - occupied,
		VIP: MicStatsGroup{
			Total:     r.VIPMics,
			Occupied:  vipOccupied,
			Available: r.VIPMics - vipOccupied,
		},
		Guest: MicStatsGroup{
			Total:     r.GuestMics,
			Occupied:  guestOccupied,
			Available: r.GuestMics - guestOccupied,
		},
		Muted:       muted,
		QueueLength: len(r.WaitingQueue),
	}
}

// ParticipantCount counts seated speakers plus listeners.
func (r *Room) ParticipantCount() int {
	seated := 0
	for _, s := range r.Seats {
		if s.Occupied() {
			seated++
		}
	}

	return seated + len(r.Listeners)
}

func (r *Room) bumpPeak() {
	if c := r.ParticipantCount(); c > r.Stats.PeakParticipants {
		r.Stats.PeakParticipants = c
	}
}

func (r *Room) touch(now time.Time) {
	r.Stats.LastActivity = now
	r.UpdatedAt = now
}

// RecordMessage counts an accepted chat message.
func (r *Room) RecordMessage(now time.Time) {
	r.Stats.TotalMessages++
	r.touch(now)
}

func (r *Room) End(now time.Time) {
	r.Status = StatusEnded
	r.touch(now)
}
