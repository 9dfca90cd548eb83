package core

import "strconv"

// itoa converts an integer to a string without using fmt package
// This is a lightweight alternative for embedded systems
func itoa(n int) string {
	if n == 0 {
		return "0"
	}

	negative := n < 0
	if negative {
		n = -n
	}

	// Count digits
	temp := n
	digits := 0
	for temp > 0 {
		digits++
		temp /= 10
	}

	if negative {
		digits++
	}

	buf := make([]byte, digits)
	pos := digits - 1

	for n > 0 {
		buf[pos] = byte('0' + n%10)
		n /= 10
		pos--
	}

	if negative {
		buf[0] = '-'
	}

	return string(buf)
}

// utoa converts an unsigned integer to a string
func utoa(n uint32) string {
	return strconv.FormatUint(uint64(n), 10)
}

// valueToString renders a share or queue payload. Named enum types are
// expected to implement String.
func valueToString(v interface{}) string {
	switch val := v.(type) {
	case interface{ String() string }:
		return val.String()
	case bool:
		if val {
			return "true"
		}
		return "false"
	case int:
		return itoa(val)
	case int8:
		return itoa(int(val))
	case int16:
		return itoa(int(val))
	case int32:
		return itoa(int(val))
	case int64:
		return strconv.FormatInt(val, 10)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case uint8:
		return utoa(uint32(val))
	case uint16:
		return utoa(uint32(val))
	case uint32:
		return utoa(val)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'g', 6, 32)
	case float64:
		return strconv.FormatFloat(val, 'g', 6, 64)
	default:
		return "?"
	}
}
