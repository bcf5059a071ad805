package yeelight

import (
	"encoding/json"
	"fmt"
	"time"
)

// DefaultPort is the TCP port Yeelight bulbs listen on for LAN control.
const DefaultPort = 55443

// Protocol limits.
const (
	// maxBrightness and minBrightness bound set_bright.
	maxBrightness = 100
	minBrightness = 1

	// maxRGB is the largest packed 24-bit color.
	maxRGB = 0xFFFFFF

	// minSmoothDuration is the shortest transition a bulb accepts for the
	// smooth effect.
	minSmoothDuration = 30 * time.Millisecond

	// maxLineSize bounds a single response line.
	maxLineSize = 16 << 10

	// lineTerminator ends every request.
	lineTerminator = "\r\n"
)

// Method names.
const (
	methodSetRGB    = "set_rgb"
	methodSetBright = "set_bright"
)

// Effect selects how a bulb moves to a new state.
type Effect string

// Transition effects understood by the bulb.
const (
	// EffectSudden applies the change immediately; duration is ignored.
	EffectSudden Effect = "sudden"

	// EffectSmooth fades to the new state over the given duration.
	EffectSmooth Effect = "smooth"
)

// request is one command sent to the bulb.
type request struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Params []any  `json:"params"`
}

// response is either the answer to a request or an unsolicited notification.
type response struct {
	ID     uint64          `json:"id"`
	Result []any           `json:"result,omitempty"`
	Error  *responseError  `json:"error,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

type responseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// isNotification reports whether the message is a pushed props update.
func (r *response) isNotification() bool {
	return r.ID == 0 && r.Method != ""
}

// encodeRequest renders a request as a protocol line.
func encodeRequest(id uint64, method string, params []any) ([]byte, error) {
	data, err := json.Marshal(request{ID: id, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", method, err)
	}
	return append(data, lineTerminator...), nil
}

// decodeResponse parses one line received from the bulb.
func decodeResponse(line []byte) (*response, error) {
	var resp response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	return &resp, nil
}

// checkResult converts a response into an error, if any.
func (r *response) checkResult(method string) error {
	if r.Error != nil {
		return fmt.Errorf("%w: %s: %s (code %d)", ErrCommandFailed, method, r.Error.Message, r.Error.Code)
	}
	if len(r.Result) == 1 {
		if s, ok := r.Result[0].(string); ok && s == "ok" {
			return nil
		}
	}
	return fmt.Errorf("%w: %s: unexpected result %v", ErrCommandFailed, method, r.Result)
}

// validateEffect checks the effect and duration pair and returns the
// duration in milliseconds as the protocol expects.
func validateEffect(effect Effect, duration time.Duration) (int64, error) {
	switch effect {
	case EffectSudden:
		return 0, nil
	case EffectSmooth:
		if duration < minSmoothDuration {
			return 0, fmt.Errorf("%w: smooth duration %v below %v", ErrInvalidParam, duration, minSmoothDuration)
		}
		return duration.Milliseconds(), nil
	default:
		return 0, fmt.Errorf("%w: unknown effect %q", ErrInvalidParam, effect)
	}
}
