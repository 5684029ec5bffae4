package domain

import (
	"time"

	"github.com/jordanmellermagic/Sensus-API/internal/birthday"
)

// Peek names address the four independently clearable field groups of a record.
const (
	PeekData    = "data"
	PeekNote    = "note"
	PeekScreen  = "screen"
	PeekCommand = "command"
)

// Peeks lists the valid peek names.
func Peeks() []string {
	return []string{PeekData, PeekNote, PeekScreen, PeekCommand}
}

// User is a persisted per-user record. Each field group carries its own
// updated_at so peeks can be read and cleared independently.
type User struct {
	ID        string    `json:"user_id"`
	Data      Data      `json:"data"`
	Note      Note      `json:"note"`
	Screen    Screen    `json:"screen"`
	Command   Command   `json:"command"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Data struct {
	FirstName   string          `json:"first_name"`
	LastName    string          `json:"last_name"`
	PhoneNumber string          `json:"phone_number"`
	Birthday    *birthday.Value `json:"birthday,omitempty"`
	Address     string          `json:"address"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type Note struct {
	Name      string    `json:"note_name"`
	Body      string    `json:"note_body"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Screen struct {
	Contact    string    `json:"contact"`
	URL        string    `json:"url"`
	Screenshot string    `json:"screenshot,omitempty"` // blob handle, not file content
	UpdatedAt  time.Time `json:"updated_at"`
}

type Command struct {
	Text      string    `json:"command"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Patch is a partial update of a record. A nil field is left untouched; a
// non-nil empty string clears the field. Birthday carries its own set flag
// because nil is a meaningful (clearing) value for it.
type Patch struct {
	FirstName   *string
	LastName    *string
	PhoneNumber *string
	Address     *string
	Birthday    *birthday.Value
	BirthdaySet bool

	NoteName *string
	NoteBody *string

	Contact    *string
	URL        *string
	Screenshot *string

	Command *string
}

// IsZero reports whether the patch assigns nothing.
func (p Patch) IsZero() bool {
	return !p.BirthdaySet &&
		p.FirstName == nil && p.LastName == nil && p.PhoneNumber == nil &&
		p.Address == nil && p.NoteName == nil && p.NoteBody == nil &&
		p.Contact == nil && p.URL == nil && p.Screenshot == nil && p.Command == nil
}

// Apply assigns the patch's fields onto the record and stamps updated_at on
// every touched peek. Absent fields stay as they are; last write wins.
func (u *User) Apply(p Patch, now time.Time) {
	touched := false
	assign := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
			touched = true
		}
	}

	assign(&u.Data.FirstName, p.FirstName)
	assign(&u.Data.LastName, p.LastName)
	assign(&u.Data.PhoneNumber, p.PhoneNumber)
	assign(&u.Data.Address, p.Address)
	if p.BirthdaySet {
		u.Data.Birthday = p.Birthday
		touched = true
	}
	if touched {
		u.Data.UpdatedAt = now
		u.UpdatedAt = now
	}

	touched = false
	assign(&u.Note.Name, p.NoteName)
	assign(&u.Note.Body, p.NoteBody)
	if touched {
		u.Note.UpdatedAt = now
		u.UpdatedAt = now
	}

	touched = false
	assign(&u.Screen.Contact, p.Contact)
	assign(&u.Screen.URL, p.URL)
	assign(&u.Screen.Screenshot, p.Screenshot)
	if touched {
		u.Screen.UpdatedAt = now
		u.UpdatedAt = now
	}

	touched = false
	assign(&u.Command.Text, p.Command)
	if touched {
		u.Command.UpdatedAt = now
		u.UpdatedAt = now
	}
}

// ClearPeek resets every field of the named peek. Unknown names are ignored.
func (u *User) ClearPeek(peek string, now time.Time) {
	switch peek {
	case PeekData:
		u.Data = Data{UpdatedAt: now}
	case PeekNote:
		u.Note = Note{UpdatedAt: now}
	case PeekScreen:
		u.Screen = Screen{UpdatedAt: now}
	case PeekCommand:
		u.Command = Command{UpdatedAt: now}
	default:
		return
	}
	u.UpdatedAt = now
}

// Subscription is a registered push destination for one user. A user may hold
// several concurrent subscriptions (one per device/browser).
type Subscription struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Endpoint   string    `json:"endpoint"`
	P256dhKey  string    `json:"p256dh_key"`
	AuthKey    string    `json:"auth_key"`
	DeviceName string    `json:"device_name"`
	CreatedAt  time.Time `json:"created_at"`
}
