// Package clock converts between wall-clock time and the 64-bit NTP
// timestamp format (32.32 fixed point) used in the WebRTC control channel's
// latency-measurement messages.
package clock

import "time"

// NTPEpoch is the NTP epoch, 1900-01-01T00:00:00Z. NTP timestamps count
// seconds (and fractional seconds) from this instant rather than the Unix
// epoch.
var NTPEpoch = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// CurrentMS returns the current wall-clock time in milliseconds since the
// Unix epoch.
func CurrentMS() int64 {
	return time.Now().UnixMilli()
}

// DatetimeToNTP packs a time.Time into a 64-bit NTP timestamp: the high 32
// bits are whole seconds since the NTP epoch, the low 32 bits are the
// fractional second scaled to a 2^32 range.
func DatetimeToNTP(t time.Time) uint64 {
	delta := t.Sub(NTPEpoch)
	high := uint64(delta / time.Second)
	micros := delta % time.Second
	low := uint64((micros.Microseconds() * (1 << 32)) / 1_000_000)
	return (high << 32) | (low & 0xFFFFFFFF)
}

// NTPToDatetime unpacks a 64-bit NTP timestamp back into a time.Time.
func NTPToDatetime(ntp uint64) time.Time {
	seconds := int64(ntp >> 32)
	frac := ntp & 0xFFFFFFFF
	micros := (frac * 1_000_000) / (1 << 32)
	return NTPEpoch.Add(time.Duration(seconds)*time.Second + time.Duration(micros)*time.Microsecond)
}

// CurrentNTPTime returns the current wall-clock time as a 64-bit NTP
// timestamp, used to stamp outbound latency-measurement control messages.
func CurrentNTPTime() uint64 {
	return DatetimeToNTP(time.Now())
}
