// Package api implements the Message Protocol (C7): the request/response
// envelope the UI layer exchanges with the daemon, dispatched onto
// internal/reconcile.Engine (mutations) and internal/registry.Registry
// (queries).
package api

import (
	"encoding/json"
	"strconv"

	"github.com/spacekeeper/spacekeeperd/internal/model"
)

// OrFalse is the wire encoding for spec.md §6's "polymorphic false
// sentinel": every Space field that can be absent marshals as JSON `false`
// instead of null, and a bare `false` decodes back to the zero value. This
// is the one place in the repo where false-as-absence is allowed to leak;
// internal/model and internal/reconcile never use it.
type OrFalse[T any] struct {
	Value   T
	Present bool
}

// Of wraps a present value.
func Of[T any](v T) OrFalse[T] { return OrFalse[T]{Value: v, Present: true} }

func (o OrFalse[T]) MarshalJSON() ([]byte, error) {
	if !o.Present {
		return []byte("false"), nil
	}
	return json.Marshal(o.Value)
}

func (o *OrFalse[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "false" || string(data) == "null" {
		*o = OrFalse[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = OrFalse[T]{Value: v, Present: true}
	return nil
}

// FlexInt64 accepts a JSON number or a numeric string, per spec.md §6's
// "request parameters arriving as strings must be canonicalized" rule.
type FlexInt64 int64

func (f *FlexInt64) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexInt64(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*f = FlexInt64(n)
	return nil
}

// FlexBool accepts a JSON bool or the strings "true"/"false".
type FlexBool bool

func (f *FlexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = FlexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = FlexBool(s == "true")
	return nil
}

// Request is the flat tagged envelope every wire message arrives as.
// Not every action uses every field; see spec.md §6's enumeration.
type Request struct {
	Action string `json:"action"`

	WindowID  OrFalse[FlexInt64] `json:"wid,omitempty"`
	SessionID OrFalse[FlexInt64] `json:"sid,omitempty"`
	Name      string             `json:"name,omitempty"`
	DeleteOld FlexBool           `json:"delete_old,omitempty"`
	TabID     FlexInt64          `json:"tab_id,omitempty"`
	TabURL    string             `json:"tab_url,omitempty"`
	URL       string             `json:"url,omitempty"`
	URLList   json.RawMessage    `json:"url_list,omitempty"`
	Space     json.RawMessage    `json:"space,omitempty"`
	PopupAction string           `json:"popup_action,omitempty"`
}

func (r Request) windowID() (model.WindowID, bool) {
	if !r.WindowID.Present {
		return 0, false
	}
	return model.WindowID(r.WindowID.Value), true
}

func (r Request) sessionID() (model.SessionID, bool) {
	if !r.SessionID.Present {
		return 0, false
	}
	return model.SessionID(r.SessionID.Value), true
}

// Space is the wire shape spec.md §6 returns from every mutation and the
// single-space queries.
type Space struct {
	SessionID OrFalse[model.SessionID] `json:"sessionId"`
	WindowID  OrFalse[model.WindowID]  `json:"windowId"`
	Name      OrFalse[string]          `json:"name"`
	Tabs      []model.Tab              `json:"tabs"`
	History   OrFalse[[]model.Tab]     `json:"history"`
}

func spaceFromSession(s *model.Session) Space {
	sp := Space{Tabs: s.Tabs}
	if sp.Tabs == nil {
		sp.Tabs = []model.Tab{}
	}
	if s.ID.Valid() {
		sp.SessionID = Of(s.ID)
	}
	if s.WindowID.Valid() {
		sp.WindowID = Of(s.WindowID)
	}
	if s.Name != "" {
		sp.Name = Of(s.Name)
	}
	if len(s.History) > 0 {
		sp.History = Of(s.History)
	}
	return sp
}
