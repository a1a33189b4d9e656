package poslink

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/arloliu/go-poslink/internal/pool"
)

// Format is the wire representation of a request field.
type Format uint8

const (
	// FormatText sends the value as is.
	FormatText Format = iota
	// FormatTextRightPadded pads the value with spaces up to the field's max length.
	FormatTextRightPadded
	// FormatZeroPadded sends an amount with two decimals, left padded with
	// zeros up to the field's max length, e.g. "000010.00".
	FormatZeroPadded
	// FormatYesNo sends a boolean as "Y" or "N".
	FormatYesNo
	// FormatDate sends a date as ddMMyyyy.
	FormatDate
)

const (
	amountWidth = 9
	dateLayout  = "02012006"
)

// Field is one entry of a request's wire layout.
//
// Requests return their fields in wire order from Fields; a single generic
// encoder formats, checks and frames them.
type Field struct {
	Name      string
	Format    Format
	MaxLength int
	Required  bool

	text   string
	amount Amount
	flag   bool
	date   time.Time
}

// TextField is a plain text field.
func TextField(name string, maxLen int, required bool, v string) Field {
	return Field{Name: name, Format: FormatText, MaxLength: maxLen, Required: required, text: v}
}

// PaddedTextField is a text field right padded with spaces to maxLen.
func PaddedTextField(name string, maxLen int, required bool, v string) Field {
	return Field{Name: name, Format: FormatTextRightPadded, MaxLength: maxLen, Required: required, text: v}
}

// AmountField is a nine character zero padded amount.
func AmountField(name string, required bool, v Amount) Field {
	return Field{Name: name, Format: FormatZeroPadded, MaxLength: amountWidth, Required: required, amount: v}
}

// YesNoField is a single character Y/N flag.
func YesNoField(name string, v bool) Field {
	return Field{Name: name, Format: FormatYesNo, MaxLength: 1, flag: v}
}

// DateField is an eight character ddMMyyyy date.
func DateField(name string, required bool, v time.Time) Field {
	return Field{Name: name, Format: FormatDate, MaxLength: len(dateLayout), Required: required, date: v}
}

// Value formats the field for the wire, before escaping.
//
// It fails with ErrInvalidArgument when a required field holds its zero value.
func (f Field) Value() (string, error) {
	switch f.Format {
	case FormatText, FormatTextRightPadded:
		if f.Required && strings.TrimSpace(f.text) == "" {
			return "", invalidArg("field %s is required", f.Name)
		}
		if f.Format == FormatTextRightPadded && len(f.text) < f.MaxLength {
			return f.text + strings.Repeat(" ", f.MaxLength-len(f.text)), nil
		}

		return f.text, nil

	case FormatZeroPadded:
		if f.Required && f.amount == 0 {
			return "", invalidArg("field %s is required", f.Name)
		}
		if f.amount < 0 {
			return "", invalidArg("field %s: negative amount %s", f.Name, f.amount)
		}
		s := f.amount.String()
		if len(s) < f.MaxLength {
			s = strings.Repeat("0", f.MaxLength-len(s)) + s
		}

		return s, nil

	case FormatYesNo:
		return yesNo(f.flag), nil

	case FormatDate:
		if f.date.IsZero() {
			if f.Required {
				return "", invalidArg("field %s is required", f.Name)
			}
			return "", nil
		}

		return f.date.Format(dateLayout), nil

	default:
		return "", invalidArg("field %s has unknown format %d", f.Name, f.Format)
	}
}

func yesNo(v bool) string {
	if v {
		return "Y"
	}

	return "N"
}

// Encode validates req and returns its complete frame.
//
// Encode fails with ErrInvalidArgument if validation fails, a required field
// is missing, or an escaped field is longer than its declared max length.
func Encode(req Request) ([]byte, error) {
	if req == nil {
		return nil, invalidArg("nil request")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	buf.WriteByte(STX)
	for i, f := range req.Fields() {
		v, err := f.Value()
		if err != nil {
			return nil, err
		}
		v = Escape(v)
		if len(v) > f.MaxLength {
			return nil, invalidArg("field %s is %d bytes, max %d", f.Name, len(v), f.MaxLength)
		}
		if i > 0 {
			buf.WriteByte(Separator)
		}
		buf.WriteString(v)
	}
	buf.WriteByte(ETX)
	buf.WriteByte(LRC(buf.Bytes()[1:]))

	return bytes.Clone(buf.Bytes()), nil
}

func merchantText(m int) string {
	return strconv.Itoa(m)
}
