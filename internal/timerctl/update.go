package timerctl

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EventName is the Socket.IO event carrying timer control
const EventName = "timer_update"

// Reset defaults when the update omits minutes or seconds
const (
	DefaultResetMinutes = 3
	DefaultResetSeconds = 0
)

// Actions
const (
	ActionStart    = "start"
	ActionStop     = "stop"
	ActionReset    = "reset"
	ActionSettings = "settings"
)

var (
	ErrInvalidJSON   = errors.New("invalid timer update JSON")
	ErrMissingAction = errors.New("timer update without action")
	ErrUnknownAction = errors.New("unknown timer action")
)

// Settings is the optional body of a settings action
type Settings struct {
	EndMessage *string `json:"endMessage,omitempty"`
}

// Update is one timer control command
type Update struct {
	Action   string    `json:"action"`
	Minutes  *int      `json:"minutes,omitempty"`
	Seconds  *int      `json:"seconds,omitempty"`
	Settings *Settings `json:"settings,omitempty"`
}

// Duration is the reset target, applying the defaults for missing fields
func (u *Update) Duration() time.Duration {
	minutes, seconds := DefaultResetMinutes, DefaultResetSeconds
	if u.Minutes != nil {
		minutes = *u.Minutes
	}
	if u.Seconds != nil {
		seconds = *u.Seconds
	}
	return time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second
}

// ParseUpdate extracts a timer update from one of the accepted shapes:
//
//	["timer_update", {...}]
//	{"timer_update": {...}}
//	{"action": "...", ...}
//
// It returns nil and no error for valid JSON that carries no timer update.
func ParseUpdate(payload []byte) (*Update, error) {
	payload = bytes.TrimSpace(payload)
	if !json.Valid(payload) {
		return nil, ErrInvalidJSON
	}

	switch payload[0] {
	case '[':
		var arr []json.RawMessage
		if err := json.Unmarshal(payload, &arr); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
		}
		if len(arr) < 2 || !isObject(arr[1]) {
			return nil, nil
		}
		var name string
		if err := json.Unmarshal(arr[0], &name); err != nil || name != EventName {
			return nil, nil
		}
		return decodeUpdate(arr[1])

	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(payload, &obj); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
		}
		if inner, ok := obj[EventName]; ok && isObject(inner) {
			return decodeUpdate(inner)
		}
		if action, ok := obj["action"]; ok && isString(action) {
			return decodeUpdate(payload)
		}
	}
	return nil, nil
}

func decodeUpdate(raw json.RawMessage) (*Update, error) {
	var u Update
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if u.Action == "" {
		return nil, ErrMissingAction
	}
	return &u, nil
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func isString(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '"'
}
