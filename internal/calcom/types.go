package calcom

import "time"

// CreateBookingRequest describes a booking to create on Cal.com.
type CreateBookingRequest struct {
	EventTypeID     string
	Start           time.Time
	DurationMinutes int
	AttendeeName    string
	AttendeeEmail   string
	AttendeePhone   string
	Timezone        string
	Notes           string
}

// Booking is a booking as returned by Cal.com.
type Booking struct {
	ID        string
	UID       string
	Status    string
	StartTime time.Time
	EndTime   time.Time
}

// TimeSlot is one available interval reported by the slots endpoint.
type TimeSlot struct {
	StartAt time.Time
	EndAt   time.Time
}

type apiEnvelope[T any] struct {
	Status string `json:"status"`
	Data   T      `json:"data"`
	Error  struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type bookingData struct {
	ID     int64  `json:"id"`
	UID    string `json:"uid"`
	Status string `json:"status"`
	Start  string `json:"start"`
	End    string `json:"end"`
}

type slotsData struct {
	Slots map[string][]struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"slots"`
}

type createBookingPayload struct {
	EventTypeID int64             `json:"eventTypeId"`
	Start       string            `json:"start"`
	LengthInMin int               `json:"lengthInMinutes,omitempty"`
	Attendee    attendeePayload   `json:"attendee"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Notes       string            `json:"notes,omitempty"`
}

type attendeePayload struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	TimeZone    string `json:"timeZone"`
}

type cancelPayload struct {
	CancellationReason string `json:"cancellationReason,omitempty"`
}
