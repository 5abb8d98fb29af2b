package sim

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/openfieldag/gosteer/pgn"
	"github.com/openfieldag/gosteer/vehicle"
)

func command(angle float64, enabled bool) []byte {
	var f pgn.Frame
	pgn.EncodeSteerData(&vehicle.Snapshot{
		SteerAngleSet: angle,
		SteerEnabled:  enabled,
		GuidanceValid: true,
		GPSValid:      true,
	}, &f)
	return f.Bytes()
}

func TestVehicle_Send(t *testing.T) {
	Convey("given a simulated tractor", t, func() {
		v := New(52.0, 13.0)
		v.Speed = 2

		Convey("an enabled command moves the wheel under the slew limit", func() {
			So(v.Send(command(10, true)), ShouldBeNil)
			So(v.Frames, ShouldEqual, 1)

			v.Step(0.1) // 30 deg/s * 0.1 s
			So(v.SteerAngle(), ShouldAlmostEqual, 3, 1e-9)
			v.Step(0.1)
			v.Step(0.1)
			v.Step(0.1)
			So(v.SteerAngle(), ShouldAlmostEqual, 10, 1e-9)
		})

		Convey("a disabled command centres the wheel again", func() {
			v.Send(command(10, true))
			for i := 0; i < 4; i++ {
				v.Step(0.1)
			}
			v.Send(command(10, false))
			for i := 0; i < 4; i++ {
				v.Step(0.1)
			}
			So(v.SteerAngle(), ShouldAlmostEqual, 0, 1e-9)
		})

		Convey("garbage and foreign frames are ignored", func() {
			So(v.Send([]byte{1, 2, 3}), ShouldBeNil)
			var f pgn.Frame
			pgn.EncodeMachineData(&pgn.MachineControl{}, 0, 0, &f)
			So(v.Send(f.Bytes()), ShouldBeNil)
			So(v.Frames, ShouldEqual, 0)
		})
	})
}

func TestVehicle_Step(t *testing.T) {
	Convey("given a tractor heading north at 2 m/s", t, func() {
		v := New(52.0, 13.0)
		v.Speed = 2

		Convey("with the wheel centred it tracks straight north", func() {
			var fix = v.Step(0.1)
			for i := 0; i < 9; i++ {
				fix = v.Step(0.1)
			}
			_, n, h := v.Pose()
			So(n, ShouldAlmostEqual, 2.0, 1e-9)
			So(h, ShouldAlmostEqual, 0, 1e-12)
			So(fix.Latitude, ShouldBeGreaterThan, 52.0)
			So(fix.Longitude, ShouldAlmostEqual, 13.0, 1e-12)
			So(fix.Quality, ShouldEqual, 4)
			So(fix.Speed, ShouldEqual, 2)
		})

		Convey("a held right wheel angle walks the heading clockwise", func() {
			v.Send(command(10, true))
			for i := 0; i < 50; i++ {
				v.Step(0.1)
			}
			e, _, h := v.Pose()
			So(h, ShouldBeGreaterThan, 0.3)
			So(e, ShouldBeGreaterThan, 0.5)
		})

		Convey("negative speed backs the tractor up", func() {
			fix := v.Step(0.1)
			v.Speed = -2
			for i := 0; i < 20; i++ {
				fix = v.Step(0.1)
			}
			_, n, _ := v.Pose()
			So(n, ShouldBeLessThan, 0)
			So(fix.Speed, ShouldEqual, 2) // ground speed is unsigned
		})
	})
}

func TestVehicle_Feedback(t *testing.T) {
	Convey("the feedback frame reports the actual wheel angle", t, func() {
		v := New(52.0, 13.0)
		v.Speed = 2
		v.Send(command(-8, true))
		for i := 0; i < 10; i++ {
			v.Step(0.1)
		}

		var f pgn.Frame
		v.FeedbackFrame(&f)
		fb, err := pgn.ParseFromSteer(&f)
		So(err, ShouldBeNil)
		So(fb.SteerAngle, ShouldAlmostEqual, -8, 0.01)
		So(fb.SteerSwitch, ShouldBeTrue)
	})
}
