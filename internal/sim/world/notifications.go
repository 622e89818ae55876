package world

import (
	"reflect"
	"sort"
)

// Notification is a user-facing failure report. Repeats of the same
// (tag, params, recipient) triple collapse into one record with a counter
// instead of flooding the recipient.
type Notification struct {
	ID          int64          `json:"id"`
	TitleTag    string         `json:"title_tag"`
	TitleParams map[string]any `json:"title_params,omitempty"`
	TextTag     string         `json:"text_tag"`
	TextParams  map[string]any `json:"text_params,omitempty"`
	Count       int            `json:"count"`
	Recipient   int64          `json:"recipient"`
	GameDate    int64          `json:"game_date"`
}

func (n *Notification) clone() *Notification {
	cp := *n
	cp.TitleParams = cloneParams(n.TitleParams)
	cp.TextParams = cloneParams(n.TextParams)
	return &cp
}

func cloneParams(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

// ReportFailure merges a failure into the recipient's notifications: an
// identical pending one gets its counter bumped and timestamp refreshed, a
// new one is created with count 1.
func (w *World) ReportFailure(tag string, params map[string]any, recipient int64) *Notification {
	if params == nil {
		params = map[string]any{}
	}
	var n *Notification
	for _, cand := range w.state.notifications {
		if cand.Recipient == recipient && cand.TitleTag == tag && reflect.DeepEqual(cand.TitleParams, params) {
			if n == nil || cand.ID < n.ID {
				n = cand
			}
		}
	}
	if n != nil {
		n.Count++
		n.GameDate = w.state.gameDate
	} else {
		n = &Notification{
			ID:          w.nextID(),
			TitleTag:    tag,
			TitleParams: cloneParams(params),
			TextTag:     tag,
			TextParams:  cloneParams(params),
			Count:       1,
			Recipient:   recipient,
			GameDate:    w.state.gameDate,
		}
		w.state.notifications[n.ID] = n
	}
	if w.hooks.OnNotification != nil {
		w.hooks.OnNotification(*n)
	}
	return n
}

// NotificationsFor lists a recipient's notifications, oldest first.
func (w *World) NotificationsFor(recipient int64) []*Notification {
	var out []*Notification
	for _, n := range w.state.notifications {
		if n.Recipient == recipient {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
