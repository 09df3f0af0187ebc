package dialog

import "github.com/spf13/cast"

type State string

const (
	StateIdle State = "idle"

	// Ожидание XLSX со списком двигателей
	StateAwaitMotorFile State = "await_motor_file"

	// Настройки
	StateAwaitLength  State = "await_length"
	StateAwaitVoltage State = "await_voltage"
)

// Ключи payload
const (
	KeyCableLength = "cable_length_m"
	KeyVoltage     = "voltage"
)

type Payload map[string]any

type Item struct {
	ChatID  int64
	State   State
	Payload Payload
}

// Settings: параметры расчёта щита для чата.
type Settings struct {
	CableLengthM float64
	Voltage      float64
}

// Settings читает настройки из payload, незаданные берутся из def.
func (it *Item) Settings(def Settings) Settings {
	out := def
	if it == nil || it.Payload == nil {
		return out
	}
	if v, err := cast.ToFloat64E(it.Payload[KeyCableLength]); err == nil && v > 0 {
		out.CableLengthM = v
	}
	if v, err := cast.ToFloat64E(it.Payload[KeyVoltage]); err == nil && v > 0 {
		out.Voltage = v
	}
	return out
}

// WithSettings кладёт настройки в копию payload.
func (p Payload) WithSettings(s Settings) Payload {
	out := make(Payload, len(p)+2)
	for k, v := range p {
		out[k] = v
	}
	out[KeyCableLength] = s.CableLengthM
	out[KeyVoltage] = s.Voltage
	return out
}
