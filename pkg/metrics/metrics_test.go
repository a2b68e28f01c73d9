package metrics

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsRecording(t *testing.T) {
	Convey("Given the metrics helpers", t, func() {
		Convey("When recording business metrics", func() {
			Convey("Then recording never panics", func() {
				So(func() { RecordEvent(3) }, ShouldNotPanic)
				So(func() { RecordEvent(0) }, ShouldNotPanic)
				So(RecordEventDuplicate, ShouldNotPanic)
				So(RecordTeamCommitted, ShouldNotPanic)
				So(RecordTeamReset, ShouldNotPanic)
				So(RecordRescore, ShouldNotPanic)
			})
		})

		Convey("When recording store metrics", func() {
			So(RecordBatchCommit, ShouldNotPanic)
			So(RecordBatchFailure, ShouldNotPanic)
		})

		Convey("When updating gauges", func() {
			So(func() { UpdateDriftUsers(2) }, ShouldNotPanic)
			So(func() { UpdateDriftUsers(0) }, ShouldNotPanic)
			So(func() { UpdateTotalUsers(10) }, ShouldNotPanic)
		})

		Convey("When recording HTTP metrics", func() {
			So(func() { RecordHTTPRequest("leaderboard", "GET", "200") }, ShouldNotPanic)
			So(func() { RecordHTTPRequestDuration("leaderboard", "GET", 12.5) }, ShouldNotPanic)
		})
	})
}
