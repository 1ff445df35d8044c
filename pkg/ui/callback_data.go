package ui

import (
	"errors"
	"strconv"
	"strings"
)

const (
	CallbackPrefix     = "s:"
	MaxCallbackDataLen = 64
)

type Screen string

const (
	ScreenHome     Screen = "home"
	ScreenSlots    Screen = "slots"
	ScreenTimezone Screen = "tz"
	ScreenResume   Screen = "resume"
	ScreenClose    Screen = "close"
)

type Operation string

const (
	OpNone   Operation = ""
	OpInc    Operation = "+1"
	OpDec    Operation = "-1"
	OpSet    Operation = "set"
	OpToggle Operation = "toggle"
)

type Action struct {
	Screen Screen
	Op     Operation
	Value  int
}

const (
	SlotMorning   = 1
	SlotAfternoon = 2
	SlotEvening   = 3
)

var (
	errInvalidPrefix       = errors.New("invalid callback prefix")
	errInvalidAction       = errors.New("invalid callback action")
	errInvalidOperation    = errors.New("invalid callback operation")
	errInvalidValue        = errors.New("invalid callback value")
	errCallbackDataTooLong = errors.New("callback data too long")
)

func BuildHomeCallback() (string, error) {
	return buildSimpleCallback(ScreenHome)
}

func BuildSlotsCallback() (string, error) {
	return buildSimpleCallback(ScreenSlots)
}

func BuildTimezoneCallback() (string, error) {
	return buildSimpleCallback(ScreenTimezone)
}

func BuildResumeCallback() (string, error) {
	return buildSimpleCallback(ScreenResume)
}

func BuildCloseCallback() (string, error) {
	return buildSimpleCallback(ScreenClose)
}

func BuildSlotToggleCallback(slot int) (string, error) {
	if slot != SlotMorning && slot != SlotAfternoon && slot != SlotEvening {
		return "", errInvalidValue
	}
	return validateCallbackData(CallbackPrefix + string(ScreenSlots) + ":" + string(OpToggle) + ":" + strconv.Itoa(slot))
}

func BuildTimezoneIncCallback() (string, error) {
	return validateCallbackData(CallbackPrefix + string(ScreenTimezone) + ":" + string(OpInc))
}

func BuildTimezoneDecCallback() (string, error) {
	return validateCallbackData(CallbackPrefix + string(ScreenTimezone) + ":" + string(OpDec))
}

func BuildTimezoneSetCallback(value int) (string, error) {
	return validateCallbackData(CallbackPrefix + string(ScreenTimezone) + ":" + string(OpSet) + ":" + strconv.Itoa(value))
}

// ParseCallbackData decodes "s:<screen>", "s:tz:<+1|-1>",
// "s:tz:set:<n>" and "s:slots:toggle:<slot>".
func ParseCallbackData(data string) (Action, error) {
	if data == "" {
		return Action{}, errInvalidAction
	}
	if len(data) > MaxCallbackDataLen {
		return Action{}, errCallbackDataTooLong
	}
	if !strings.HasPrefix(data, CallbackPrefix) {
		return Action{}, errInvalidPrefix
	}

	parts := strings.Split(data, ":")
	screen, err := parseScreen(parts[1])
	if err != nil {
		return Action{}, err
	}

	switch len(parts) {
	case 2:
		return Action{Screen: screen, Op: OpNone}, nil
	case 3:
		if screen != ScreenTimezone {
			return Action{}, errInvalidAction
		}
		switch Operation(parts[2]) {
		case OpInc:
			return Action{Screen: screen, Op: OpInc, Value: 1}, nil
		case OpDec:
			return Action{Screen: screen, Op: OpDec, Value: -1}, nil
		default:
			return Action{}, errInvalidOperation
		}
	case 4:
		switch {
		case screen == ScreenTimezone && Operation(parts[2]) == OpSet:
			if !isASCIISignedInt(parts[3]) {
				return Action{}, errInvalidValue
			}
			value, err := strconv.Atoi(parts[3])
			if err != nil {
				return Action{}, errInvalidValue
			}
			return Action{Screen: screen, Op: OpSet, Value: value}, nil
		case screen == ScreenSlots && Operation(parts[2]) == OpToggle:
			value, err := strconv.Atoi(parts[3])
			if err != nil || !isASCIISignedInt(parts[3]) {
				return Action{}, errInvalidValue
			}
			if value != SlotMorning && value != SlotAfternoon && value != SlotEvening {
				return Action{}, errInvalidValue
			}
			return Action{Screen: screen, Op: OpToggle, Value: value}, nil
		default:
			return Action{}, errInvalidOperation
		}
	default:
		return Action{}, errInvalidAction
	}
}

func buildSimpleCallback(screen Screen) (string, error) {
	return validateCallbackData(CallbackPrefix + string(screen))
}

func validateCallbackData(data string) (string, error) {
	if data == "" {
		return "", errInvalidAction
	}
	if len(data) > MaxCallbackDataLen {
		return "", errCallbackDataTooLong
	}
	return data, nil
}

func parseScreen(screenPart string) (Screen, error) {
	switch Screen(screenPart) {
	case ScreenHome, ScreenSlots, ScreenTimezone, ScreenResume, ScreenClose:
		return Screen(screenPart), nil
	default:
		return "", errInvalidAction
	}
}

func isASCIISignedInt(value string) bool {
	if value == "" {
		return false
	}
	start := 0
	if value[0] == '-' {
		if len(value) == 1 {
			return false
		}
		start = 1
	}
	for i := start; i < len(value); i++ {
		if value[i] < '0' || value[i] > '9' {
			return false
		}
	}
	return true
}
