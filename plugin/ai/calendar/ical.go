package calendar

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"

	"github.com/hrygo/eventchain/plugin/ai"
)

const icsProductID = "-//hrygo//eventchain//EN"

// EncodeICS writes details as a VCALENDAR with a single VEVENT.
// Dates without a zone are read in loc.
func EncodeICS(w io.Writer, details *EventDetails, loc *time.Location) error {
	return encodeICS(w, details, loc, uuid.NewString(), time.Now())
}

func encodeICS(w io.Writer, details *EventDetails, loc *time.Location, uid string, stamp time.Time) error {
	if details == nil {
		return errors.New("no event details to export")
	}
	if loc == nil {
		loc = time.Local
	}

	start, err := ai.ParseISO8601(details.Date, loc)
	if err != nil {
		return fmt.Errorf("event date: %w", err)
	}

	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, uid)
	event.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	event.Props.SetText(ical.PropSummary, details.Name)

	if isDateOnly(details.Date) {
		days := 1
		if details.DurationMinutes > 24*60 {
			days = (details.DurationMinutes + 24*60 - 1) / (24 * 60)
		}
		event.Props.SetDate(ical.PropDateTimeStart, start)
		event.Props.SetDate(ical.PropDateTimeEnd, start.AddDate(0, 0, days))
	} else {
		event.Props.SetDateTime(ical.PropDateTimeStart, start)
		event.Props.SetDateTime(ical.PropDateTimeEnd, start.Add(time.Duration(details.DurationMinutes)*time.Minute))
	}

	if len(details.Participants) > 0 {
		event.Props.SetText(ical.PropDescription, "Participants: "+strings.Join(details.Participants, ", "))
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, icsProductID)
	cal.Children = append(cal.Children, event.Component)

	return ical.NewEncoder(w).Encode(cal)
}

func isDateOnly(value string) bool {
	return len(strings.TrimSpace(value)) == len("2006-01-02")
}
