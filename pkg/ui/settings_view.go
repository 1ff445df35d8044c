package ui

import (
	"fmt"
	"strings"

	"github.com/go-telegram/bot/models"
)

// ReminderView is what the reminder settings screens display.
type ReminderView struct {
	Morning        bool
	Afternoon      bool
	Evening        bool
	TimezoneOffset int
	Paused         bool
}

func RenderHome(view ReminderView) (string, *models.InlineKeyboardMarkup, error) {
	slotsData, err := BuildSlotsCallback()
	if err != nil {
		return "", nil, err
	}
	tzData, err := BuildTimezoneCallback()
	if err != nil {
		return "", nil, err
	}
	closeData, err := BuildCloseCallback()
	if err != nil {
		return "", nil, err
	}

	text := fmt.Sprintf(
		"Reminder settings\n- Slots: %s\n- Timezone: UTC%+d",
		formatSlotSummary(view.Morning, view.Afternoon, view.Evening),
		view.TimezoneOffset,
	)
	rows := [][]models.InlineKeyboardButton{
		{
			{Text: "Slots", CallbackData: slotsData},
			{Text: "Timezone", CallbackData: tzData},
		},
	}
	if view.Paused {
		text += "\n- Paused after missed reminders"
		resumeData, err := BuildResumeCallback()
		if err != nil {
			return "", nil, err
		}
		rows = append(rows, []models.InlineKeyboardButton{{Text: "Resume", CallbackData: resumeData}})
	}
	rows = append(rows, []models.InlineKeyboardButton{{Text: "Close", CallbackData: closeData}})

	return text, &models.InlineKeyboardMarkup{InlineKeyboard: rows}, nil
}

func RenderSlots(view ReminderView) (string, *models.InlineKeyboardMarkup, error) {
	morningData, err := BuildSlotToggleCallback(SlotMorning)
	if err != nil {
		return "", nil, err
	}
	afternoonData, err := BuildSlotToggleCallback(SlotAfternoon)
	if err != nil {
		return "", nil, err
	}
	eveningData, err := BuildSlotToggleCallback(SlotEvening)
	if err != nil {
		return "", nil, err
	}
	backData, err := BuildHomeCallback()
	if err != nil {
		return "", nil, err
	}

	text := fmt.Sprintf(
		"Reminder slots\nMorning (08:00): %s\nAfternoon (13:00): %s\nEvening (20:00): %s",
		formatToggle(view.Morning),
		formatToggle(view.Afternoon),
		formatToggle(view.Evening),
	)

	keyboard := &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: toggleLabel("Morning", view.Morning), CallbackData: morningData},
				{Text: toggleLabel("Afternoon", view.Afternoon), CallbackData: afternoonData},
			},
			{
				{Text: toggleLabel("Evening", view.Evening), CallbackData: eveningData},
			},
			{
				{Text: "Back", CallbackData: backData},
			},
		},
	}

	return text, keyboard, nil
}

var timezonePresets = [][]int{{-8, -5, 0}, {1, 3, 8}}

func RenderTimezone(current int) (string, *models.InlineKeyboardMarkup, error) {
	decData, err := BuildTimezoneDecCallback()
	if err != nil {
		return "", nil, err
	}
	incData, err := BuildTimezoneIncCallback()
	if err != nil {
		return "", nil, err
	}
	backData, err := BuildHomeCallback()
	if err != nil {
		return "", nil, err
	}

	rows := [][]models.InlineKeyboardButton{
		{
			{Text: "-1", CallbackData: decData},
			{Text: "+1", CallbackData: incData},
		},
	}
	for _, presets := range timezonePresets {
		row := make([]models.InlineKeyboardButton, 0, len(presets))
		for _, offset := range presets {
			data, err := BuildTimezoneSetCallback(offset)
			if err != nil {
				return "", nil, err
			}
			row = append(row, models.InlineKeyboardButton{Text: fmt.Sprintf("UTC%+d", offset), CallbackData: data})
		}
		rows = append(rows, row)
	}
	rows = append(rows, []models.InlineKeyboardButton{{Text: "Back", CallbackData: backData}})

	text := fmt.Sprintf("Timezone\nCurrent value: UTC%+d", current)
	return text, &models.InlineKeyboardMarkup{InlineKeyboard: rows}, nil
}

func formatSlotSummary(morning, afternoon, evening bool) string {
	parts := []string{}
	if morning {
		parts = append(parts, "Morning")
	}
	if afternoon {
		parts = append(parts, "Afternoon")
	}
	if evening {
		parts = append(parts, "Evening")
	}
	if len(parts) == 0 {
		return "off"
	}
	return strings.Join(parts, ", ")
}

func formatToggle(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}

func toggleLabel(label string, enabled bool) string {
	if enabled {
		return fmt.Sprintf("%s ✅", label)
	}
	return fmt.Sprintf("%s ❌", label)
}
