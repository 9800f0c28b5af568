// Package armrecord records state-action trajectories of a two-joint robot
// arm for training, and replays trained policies on it.
//
// A control loop samples the arm, computes an action either from a hand-moved
// controller arm (teleoperation) or from a trained policy, steps the
// environment, and appends each transition to a shard file. Every session's
// last transition is written again as the episode's LAST record, whether the
// session ends normally, on a hardware fault, or on Ctrl-C.
//
// # Installation
//
//	go install github.com/gwillem/armrecord/cmd/armrecord@latest
//
// # Usage
//
// First, run setup to detect and calibrate the controller and follower arms:
//
//	armrecord setup
//
// Then record demonstrations:
//
//	armrecord record --dataset 'data/oracle*.rec'
//
// Run a trained policy, and inspect what was recorded:
//
//	armrecord run --model model.json --checkpoint ckpt.json
//	armrecord inspect data/oracle_0.rec
//
// # Packages
//
//   - cmd/armrecord: CLI with setup, record, run and inspect commands
//   - pkg/robot: servo transport, calibration, joint-angle feedback, configuration
//   - pkg/kinematics: two-link planar forward and inverse kinematics
//   - pkg/env: environment adapter and shared target (reach-v0)
//   - pkg/teleop: teleoperation controller
//   - pkg/policy: observation history and linear policy inference
//   - pkg/trajectory: time steps, transitions and shard files
//   - pkg/control: the control loop and its finalization guarantee
//   - pkg/metrics: Prometheus metrics
package armrecord
