package ledger

import "github.com/tobael/splitledger/crypto"

// Member is the derived record of one group member (§3 "Derived group
// state").
type Member struct {
	DisplayName       string
	JoinedAt          int64
	IsActive          bool
	RemovedAt         *int64
	AuthorizedDevices map[crypto.PublicKey]struct{}
}

// HasDevice reports whether device is currently authorized for this member.
func (m Member) HasDevice(device crypto.PublicKey) bool {
	if m.AuthorizedDevices == nil {
		return false
	}
	_, ok := m.AuthorizedDevices[device]
	return ok
}

// GroupState is the derived group state reconstructed from a chain (§3):
// never transmitted, always a pure function of the ordered entry log.
type GroupState struct {
	GroupID           string
	GroupName         string
	CreatorRootPubkey crypto.PublicKey
	Members           map[crypto.PublicKey]*Member
	LatestEntryHash   crypto.Hash
	CurrentLamport    int64
	Balances          map[crypto.PublicKey]int64
}

// NewEmptyGroupState returns a zero-value state suitable as the starting
// point for replaying a chain from scratch.
func NewEmptyGroupState() *GroupState {
	return &GroupState{
		Members:  make(map[crypto.PublicKey]*Member),
		Balances: make(map[crypto.PublicKey]int64),
	}
}

// Clone performs a deep copy sufficient for speculative validation (the
// validator must never mutate the state it was handed for a rejected
// entry).
func (s *GroupState) Clone() *GroupState {
	if s == nil {
		return NewEmptyGroupState()
	}
	clone := &GroupState{
		GroupID:           s.GroupID,
		GroupName:         s.GroupName,
		CreatorRootPubkey: s.CreatorRootPubkey,
		LatestEntryHash:   s.LatestEntryHash,
		CurrentLamport:    s.CurrentLamport,
		Members:           make(map[crypto.PublicKey]*Member, len(s.Members)),
		Balances:          make(map[crypto.PublicKey]int64, len(s.Balances)),
	}
	for k, m := range s.Members {
		devices := make(map[crypto.PublicKey]struct{}, len(m.AuthorizedDevices))
		for d := range m.AuthorizedDevices {
			devices[d] = struct{}{}
		}
		var removedAt *int64
		if m.RemovedAt != nil {
			v := *m.RemovedAt
			removedAt = &v
		}
		clone.Members[k] = &Member{
			DisplayName:       m.DisplayName,
			JoinedAt:          m.JoinedAt,
			IsActive:          m.IsActive,
			RemovedAt:         removedAt,
			AuthorizedDevices: devices,
		}
	}
	for k, v := range s.Balances {
		clone.Balances[k] = v
	}
	return clone
}

// ActiveMemberCount returns the number of currently active members.
func (s *GroupState) ActiveMemberCount() int {
	n := 0
	for _, m := range s.Members {
		if m.IsActive {
			n++
		}
	}
	return n
}

// FindDeviceOwner returns the active member who owns device, if any.
func (s *GroupState) FindDeviceOwner(device crypto.PublicKey) (crypto.PublicKey, *Member, bool) {
	for root, m := range s.Members {
		if m.IsActive && m.HasDevice(device) {
			return root, m, true
		}
	}
	return "", nil, false
}

// apply mutates state according to e's state-application rule (§4.4). It
// assumes e has already passed validation against state.
func apply(state *GroupState, e Entry) error {
	switch p := e.Payload.(type) {
	case GenesisPayload:
		state.GroupID = p.GroupID
		state.GroupName = p.GroupName
		state.CreatorRootPubkey = p.CreatorRootPubkey
		state.Members[p.CreatorRootPubkey] = &Member{
			DisplayName: p.CreatorDisplayName,
			JoinedAt:    e.Timestamp,
			IsActive:    true,
			AuthorizedDevices: map[crypto.PublicKey]struct{}{
				e.CreatorDevicePubkey: {},
			},
		}
	case MemberAddedPayload:
		state.Members[p.MemberRootPubkey] = &Member{
			DisplayName: p.MemberDisplayName,
			JoinedAt:    e.Timestamp,
			IsActive:    true,
			AuthorizedDevices: map[crypto.PublicKey]struct{}{
				e.CreatorDevicePubkey: {},
			},
		}
	case MemberRemovedPayload:
		m := state.Members[p.MemberRootPubkey]
		m.IsActive = false
		removedAt := e.Timestamp
		m.RemovedAt = &removedAt
	case DeviceAuthorizedPayload:
		m := state.Members[p.OwnerRootPubkey]
		if m.AuthorizedDevices == nil {
			m.AuthorizedDevices = make(map[crypto.PublicKey]struct{})
		}
		m.AuthorizedDevices[p.DevicePublicKey] = struct{}{}
	case DeviceRevokedPayload:
		m := state.Members[p.OwnerRootPubkey]
		delete(m.AuthorizedDevices, p.DevicePublicKey)
	case RootKeyRotationPayload:
		prev := state.Members[p.PreviousRootPubkey]
		prev.IsActive = false
		removedAt := e.Timestamp
		prev.RemovedAt = &removedAt
		state.Members[p.NewRootPubkey] = &Member{
			DisplayName:       prev.DisplayName,
			JoinedAt:          prev.JoinedAt,
			IsActive:          true,
			AuthorizedDevices: make(map[crypto.PublicKey]struct{}),
		}
		if state.CreatorRootPubkey == p.PreviousRootPubkey {
			state.CreatorRootPubkey = p.NewRootPubkey
		}
	case ExpenseCreatedPayload, ExpenseCorrectionPayload, ExpenseVoidedPayload:
		// Membership is unaffected; balances are recomputed from scratch
		// by the balance package after replay (§4.4, §4.5).
	}
	state.LatestEntryHash = e.EntryID
	if e.LamportClock > state.CurrentLamport {
		state.CurrentLamport = e.LamportClock
	}
	return nil
}
