package vehicle

import (
	"sync"
	"testing"
	"time"

	. "math"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/openfieldag/gosteer/gps"
	"github.com/openfieldag/gosteer/guidance"
)

func TestState_UpdateFix(t *testing.T) {
	Convey("given a fresh state", t, func() {
		st := New()

		Convey("a full fix lands in the snapshot", func() {
			fix := gps.Fix{
				Time:       time.Unix(1000, 0),
				Latitude:   52.5,
				Longitude:  13.4,
				Altitude:   43.2,
				Speed:      2.5,
				Heading:    1.0,
				Quality:    gps.QualityFixedRTK,
				Satellites: 14,
				HDOP:       0.7,
				DiffAge:    1.1,
				Roll:       0.02,
				Pitch:      0.01,
				YawRate:    0.001,
			}
			st.UpdateFix(&fix, 120.5, 340.25, true)

			snap := st.Snapshot()
			So(snap.Latitude, ShouldEqual, 52.5)
			So(snap.Easting, ShouldEqual, 120.5)
			So(snap.Northing, ShouldEqual, 340.25)
			So(snap.Heading, ShouldEqual, 1.0)
			So(snap.Speed, ShouldEqual, 2.5)
			So(snap.Roll, ShouldEqual, 0.02)
			So(snap.IMUValid, ShouldBeTrue)
			So(snap.GPSValid, ShouldBeTrue)
			So(snap.LastFix, ShouldEqual, time.Unix(1000, 0))
		})

		Convey("NaN heading and attitude never clobber known values", func() {
			st.UpdateFix(&gps.Fix{Heading: 1.0, Roll: 0.02, Quality: 4}, 0, 0, true)
			st.UpdateFix(&gps.Fix{Heading: NaN(), Roll: NaN(), Pitch: NaN(), YawRate: NaN(), Quality: 4}, 1, 1, true)

			snap := st.Snapshot()
			So(snap.Heading, ShouldEqual, 1.0)
			So(snap.Roll, ShouldEqual, 0.02)
			So(snap.IMUValid, ShouldBeTrue)
			So(snap.Easting, ShouldEqual, 1)
		})

		Convey("a roll-only IMU update sanitises the missing fields", func() {
			st.UpdateIMU(0.05, NaN(), NaN())

			snap := st.Snapshot()
			So(snap.Roll, ShouldEqual, 0.05)
			So(snap.Pitch, ShouldEqual, 0)
			So(snap.YawRate, ShouldEqual, 0)
			So(snap.IMUValid, ShouldBeTrue)

			st.UpdateIMU(NaN(), 0, 0)
			So(st.Snapshot().Roll, ShouldEqual, 0.05)
		})
	})
}

func TestState_ApplyControl(t *testing.T) {
	Convey("given a state with an engaged operator", t, func() {
		st := New()

		Convey("a valid result carries full authority", func() {
			st.ApplyControl(&guidance.Result{
				Valid:        true,
				SteerAngle:   -12.5,
				CrossTrack:   0.8,
				HeadingError: -3.0,
			}, true, true)

			snap := st.Snapshot()
			So(snap.SteerAngleSet, ShouldEqual, -12.5)
			So(snap.CrossTrack, ShouldEqual, 0.8)
			So(snap.HeadingError, ShouldEqual, -3.0)
			So(snap.GuidanceValid, ShouldBeTrue)
			So(snap.OnTrack, ShouldBeTrue)
			So(snap.SteerEnabled, ShouldBeTrue)
		})

		Convey("an invalid result forces no-authority output", func() {
			st.ApplyControl(&guidance.Result{Valid: true, SteerAngle: -12.5}, true, true)
			st.ApplyControl(&guidance.Result{Valid: false, CrossTrack: 2.0}, true, true)

			snap := st.Snapshot()
			So(snap.SteerAngleSet, ShouldEqual, 0)
			So(snap.GuidanceValid, ShouldBeFalse)
			So(snap.SteerEnabled, ShouldBeFalse)
			So(snap.OnTrack, ShouldBeFalse)
			So(snap.CrossTrack, ShouldEqual, 2.0)
		})

		Convey("a disengaged operator keeps the module disabled", func() {
			st.ApplyControl(&guidance.Result{Valid: true, SteerAngle: 5}, false, true)

			snap := st.Snapshot()
			So(snap.SteerAngleSet, ShouldEqual, 5)
			So(snap.SteerEnabled, ShouldBeFalse)
		})

		Convey("DropAuthority clears every commanding field", func() {
			st.UpdateFix(&gps.Fix{Quality: 4}, 0, 0, true)
			st.ApplyControl(&guidance.Result{Valid: true, SteerAngle: 5}, true, true)
			st.DropAuthority()

			snap := st.Snapshot()
			So(snap.SteerAngleSet, ShouldEqual, 0)
			So(snap.GuidanceValid, ShouldBeFalse)
			So(snap.SteerEnabled, ShouldBeFalse)
			So(snap.GPSValid, ShouldBeFalse)
		})
	})
}

func TestState_FeedbackAndSections(t *testing.T) {
	Convey("module feedback and sections land in the snapshot", t, func() {
		st := New()
		st.ApplySteerFeedback(3.75, true, false, 128)
		st.SetSections(0b0000001111110000)
		st.SetReverse(true)

		snap := st.Snapshot()
		So(snap.SteerAngleActual, ShouldEqual, 3.75)
		So(snap.SteerSwitch, ShouldBeTrue)
		So(snap.WorkSwitch, ShouldBeFalse)
		So(snap.PWM, ShouldEqual, 128)
		So(snap.Sections, ShouldEqual, 0b0000001111110000)
		So(snap.Reverse, ShouldBeTrue)
	})
}

// Snapshots must never mix fields from two different writes. The writer
// keeps easting and northing equal; any snapshot where they differ was
// torn.
func TestState_SnapshotConsistency(t *testing.T) {
	st := New()
	stop := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		fix := gps.Fix{Quality: 4, Heading: 1}
		for i := 1; i <= 5000; i++ {
			v := float64(i)
			st.UpdateFix(&fix, v, v, true)
		}
		close(stop)
	}()

	torn := 0
	for {
		select {
		case <-stop:
			wg.Wait()
			if torn > 0 {
				t.Fatalf("observed %d torn snapshots", torn)
			}
			return
		default:
			snap := st.Snapshot()
			if snap.Easting != snap.Northing {
				torn++
			}
		}
	}
}

func BenchmarkState_UpdateFix(b *testing.B) {
	st := New()
	fix := gps.Fix{Quality: 4, Heading: 1, Roll: 0.01}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		st.UpdateFix(&fix, 1, 1, true)
	}
}

func BenchmarkState_Snapshot(b *testing.B) {
	st := New()
	st.UpdateFix(&gps.Fix{Quality: 4, Heading: 1}, 1, 1, true)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		snap := st.Snapshot()
		if !snap.GPSValid {
			b.Fatal("lost fix")
		}
	}
}
