package sync

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Date layouts accepted on the case side. The first is what the ZGW forms send.
var transformInputDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"02-01-2006",
	"20060102",
}

func parseCaseDate(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range transformInputDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// applyTransform applies a `name[:arg]` transform to a mapped value.
// exists reports whether the source path held a value; only default uses it.
func applyTransform(transform string, value string, exists bool) (string, error) {
	function, arg, _ := strings.Cut(transform, ":")

	switch function {
	case "toLower":
		return strings.ToLower(value), nil

	case "toUpper":
		return strings.ToUpper(value), nil

	case "trim":
		return strings.TrimSpace(value), nil

	case "default":
		if !exists || value == "" {
			return arg, nil
		}
		return value, nil

	case "padLeft":
		// padLeft:9 pads with zeros, e.g. a BSN that lost its leading zero as a number
		width, err := strconv.Atoi(arg)
		if err != nil || width < 0 {
			return "", fmt.Errorf("invalid transform %q, padLeft needs a width", transform)
		}
		if value == "" || len(value) >= width {
			return value, nil
		}
		return strings.Repeat("0", width-len(value)) + value, nil

	case "dateFormat":
		if arg == "" {
			return "", fmt.Errorf("invalid transform %q, dateFormat needs a layout", transform)
		}
		if value == "" {
			return "", nil
		}
		if t, parsed := parseCaseDate(value); parsed {
			return t.Format(arg), nil
		}
		return "", fmt.Errorf("failed to parse date '%s' for transform %q", value, transform)

	default:
		return "", fmt.Errorf("invalid transform %q", transform)
	}
}
