package parser

import "time"

// .NET DateTime binary layout: the top two bits hold the kind, the rest are
// 100ns ticks since 0001-01-01.
const (
	ticksPerSecond = 10_000_000
	ticksPerDay    = 24 * 60 * 60 * ticksPerSecond
	unixEpochTicks = 621_355_968_000_000_000
	ticksMask      = 0x3FFF_FFFF_FFFF_FFFF
	ticksCeiling   = 0x4000_0000_0000_0000
	kindShift      = 62
	kindLocal      = 2
)

// TimeFromBinary converts a DateTime.ToBinary value to a UTC time.
// Local values are stored as UTC ticks, possibly biased below zero by the
// writer's zone offset; the bias is removed the way DateTime.FromBinary does.
func TimeFromBinary(v int64) time.Time {
	ticks := v & ticksMask
	if uint64(v)>>kindShift == kindLocal && ticks > ticksCeiling-ticksPerDay {
		ticks -= ticksCeiling
	}

	unix := ticks - unixEpochTicks
	sec, rem := unix/ticksPerSecond, unix%ticksPerSecond
	if rem < 0 {
		rem += ticksPerSecond
		sec--
	}
	return time.Unix(sec, rem*100).UTC()
}

// TimeToBinary is the inverse of TimeFromBinary for UTC-kind values.
func TimeToBinary(t time.Time) int64 {
	t = t.UTC()
	ticks := t.Unix()*ticksPerSecond + int64(t.Nanosecond())/100 + unixEpochTicks
	return ticks | 1<<kindShift
}
