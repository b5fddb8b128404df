// Package model defines the core data structures for gotify-dunst.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Urgency is the notification daemon's severity hint.
type Urgency int

// Urgency levels as defined by org.freedesktop.Notifications.
const (
	UrgencyLow Urgency = iota
	UrgencyNormal
	UrgencyCritical
)

// UrgencyNames maps urgency levels to the names dunstify accepts.
var UrgencyNames = map[Urgency]string{
	UrgencyLow:      "low",
	UrgencyNormal:   "normal",
	UrgencyCritical: "critical",
}

// String returns the dunstify name of the urgency.
func (u Urgency) String() string {
	if name, ok := UrgencyNames[u]; ok {
		return name
	}
	return UrgencyNames[UrgencyNormal]
}

// Byte returns the urgency as the byte value of the D-Bus "urgency" hint.
func (u Urgency) Byte() byte {
	return byte(u)
}

// UrgencyForPriority maps a Gotify priority onto the three urgency buckets:
// 0-3 low, 4-7 normal, 8 and above critical.
func UrgencyForPriority(priority int) Urgency {
	switch {
	case priority <= 3:
		return UrgencyLow
	case priority <= 7:
		return UrgencyNormal
	default:
		return UrgencyCritical
	}
}

// Event is one message frame received from the Gotify stream.
type Event struct {
	ID       int     `json:"id,omitempty"`
	AppID    int     `json:"appid"`
	Title    string  `json:"title"`
	Message  string  `json:"message"`
	Priority int     `json:"priority"`
	Date     string  `json:"date,omitempty"`
	Extras   *Extras `json:"extras,omitempty"`
}

// Extras holds the optional fields read from a message's extras object.
// Other extras namespaces (client::display, ...) are ignored.
type Extras struct {
	Category string            `json:"category,omitempty"`
	Actions  map[string]string `json:"actions,omitempty"`

	// Skipped lists extras fields that were present but could not be used.
	Skipped []string `json:"-"`
}

// UnmarshalJSON decodes extras leniently. A field of the wrong type is
// recorded in Skipped instead of failing the whole event.
func (x *Extras) UnmarshalJSON(data []byte) error {
	*x = Extras{}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		x.Skipped = append(x.Skipped, "extras")
		return nil
	}

	if raw, ok := fields["category"]; ok {
		if err := json.Unmarshal(raw, &x.Category); err != nil {
			x.Skipped = append(x.Skipped, "category")
		}
	}

	if raw, ok := fields["actions"]; ok {
		var labels map[string]json.RawMessage
		if err := json.Unmarshal(raw, &labels); err != nil {
			x.Skipped = append(x.Skipped, "actions")
			return nil
		}
		for key, rawLabel := range labels {
			var label string
			if err := json.Unmarshal(rawLabel, &label); err != nil {
				x.Skipped = append(x.Skipped, "actions."+key)
				continue
			}
			if x.Actions == nil {
				x.Actions = make(map[string]string, len(labels))
			}
			x.Actions[key] = label
		}
	}

	sort.Strings(x.Skipped)
	return nil
}

// Action represents a notification action with key and label.
type Action struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Descriptor returns the "key,label" form passed to dunstify -A.
func (a Action) Descriptor() string {
	return a.Key + "," + a.Label
}

// ErrEmptyFrame is returned when a stream frame carries no data.
var ErrEmptyFrame = errors.New("empty frame")

// ParseEvent decodes a single stream frame.
func ParseEvent(data []byte) (Event, error) {
	var ev Event
	if len(data) == 0 {
		return ev, ErrEmptyFrame
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}

// Urgency returns the urgency derived from the event priority.
func (e Event) Urgency() Urgency {
	return UrgencyForPriority(e.Priority)
}

// Category returns extras.category, or "" when absent.
func (e Event) Category() string {
	if e.Extras == nil {
		return ""
	}
	return e.Extras.Category
}

// SkippedExtras returns the extras fields dropped while decoding.
func (e Event) SkippedExtras() []string {
	if e.Extras == nil {
		return nil
	}
	return e.Extras.Skipped
}

// Actions returns extras.actions sorted by key.
func (e Event) Actions() []Action {
	if e.Extras == nil || len(e.Extras.Actions) == 0 {
		return nil
	}

	actions := make([]Action, 0, len(e.Extras.Actions))
	for key, label := range e.Extras.Actions {
		actions = append(actions, Action{Key: key, Label: label})
	}
	sort.Slice(actions, func(i, j int) bool {
		return actions[i].Key < actions[j].Key
	})
	return actions
}

// DispatchResult is what the notification daemon reported back for one
// dispatched event.
type DispatchResult struct {
	ActionKey string // Empty when the user picked no action
}

// HasAction reports whether the user selected an action.
func (r DispatchResult) HasAction() bool {
	return r.ActionKey != ""
}
