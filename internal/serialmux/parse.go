package serialmux

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNotAnImpulse is returned by ParseImpulseLine for status and comment
// lines, which are expected on the wire and carry no delta.
var ErrNotAnImpulse = errors.New("not an impulse line")

// ParseImpulseLine decodes one line from the impulse counter: the time since
// the previous impulse, in seconds ("0.012345") or microseconds with a "us"
// suffix ("12345us"). Lines starting with '#' are firmware status messages.
func ParseImpulseLine(line string) (float64, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return 0, ErrNotAnImpulse
	}

	scale := 1.0
	if v, ok := strings.CutSuffix(line, "us"); ok {
		line, scale = strings.TrimSpace(v), 1e-6
	}

	v, err := strconv.ParseFloat(line, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid impulse delta %q: %w", line, err)
	}
	return v * scale, nil
}
