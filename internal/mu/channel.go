package mu

import "github.com/sinotrade/axob-rebuild/pkg/axsbe"

// ChannelID derives the order/exec channel id a snapshot's channel maps
// to, per exchange convention (spec.md §4.10): SZSE's order/exec channel
// number is the snapshot channel number minus 1000; SSE carries orders,
// execs, and snapshots on a single channel.
func ChannelID(source axsbe.SecurityIDSource, snapshotChannelNo int32) int32 {
	if source == axsbe.SecurityIDSourceSZSE {
		return snapshotChannelNo - 1000
	}
	return snapshotChannelNo
}
