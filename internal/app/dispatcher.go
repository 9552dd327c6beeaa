package app

import (
	"github.com/dkeye/chatrelay/internal/core"
	"github.com/dkeye/chatrelay/internal/domain"
	"github.com/rs/zerolog/log"
)

// Dispatcher fans a frame out to a snapshot of a room's members.
type Dispatcher struct {
	reg    *Registry
	policy Policy
}

func NewDispatcher(reg *Registry, policy Policy) *Dispatcher {
	return &Dispatcher{reg: reg, policy: policy}
}

// Deliver sends f to every member of room except exclude (empty means
// nobody is excluded). Per-recipient failures never surface as errors;
// they are reported in the result and handed to the policy.
func (d *Dispatcher) Deliver(room domain.RoomID, f core.Frame, exclude core.SessionID) core.PublishResult {
	res := core.PublishResult{}
	var failures []error
	for _, m := range d.reg.MembersOf(room) {
		if exclude != "" && m.ID() == exclude {
			continue
		}
		if err := m.Signal().TrySend(f); err != nil {
			res.Dropped = append(res.Dropped, m)
			failures = append(failures, err)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "app.dispatcher").Str("room", string(room)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")

	if d.policy == nil {
		return res
	}
	for i, slow := range res.Dropped {
		switch d.policy.OnBackPressure(room, slow, failures[i]) {
		case KickMember:
			log.Warn().Str("module", "app.dispatcher").Str("room", string(room)).Str("sid", string(slow.ID())).Err(failures[i]).Msg("kicking slow member")
			d.reg.Cancel(slow.ID())
			slow.Signal().Close()
		case DropFrame, NoAction:
		}
	}
	return res
}
