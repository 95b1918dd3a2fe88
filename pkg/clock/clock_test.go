package clock_test

import (
	"testing"
	"time"

	"github.com/selkies-project/selkies-streamer-core/pkg/clock"
)

func TestNTPRoundTrip(t *testing.T) {
	cases := []time.Time{
		time.Date(2024, 3, 15, 12, 30, 45, 0, time.UTC),
		time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2000, 1, 1, 23, 59, 59, 500_000_000, time.UTC),
	}

	for _, want := range cases {
		ntp := clock.DatetimeToNTP(want)
		got := clock.NTPToDatetime(ntp)

		if diff := got.Sub(want); diff < -time.Millisecond || diff > time.Millisecond {
			t.Errorf("round trip for %v: got %v (diff %v)", want, got, diff)
		}
	}
}

func TestNTPEpochIsZero(t *testing.T) {
	ntp := clock.DatetimeToNTP(clock.NTPEpoch)
	if ntp != 0 {
		t.Errorf("NTP epoch should pack to 0, got %d", ntp)
	}
}

func TestCurrentNTPTimeIncreasesMonotonically(t *testing.T) {
	a := clock.CurrentNTPTime()
	time.Sleep(2 * time.Millisecond)
	b := clock.CurrentNTPTime()

	if b <= a {
		t.Errorf("expected CurrentNTPTime to increase, got a=%d b=%d", a, b)
	}
}
