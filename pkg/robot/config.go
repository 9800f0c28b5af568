package robot

import (
	"encoding/json"
	"os"
	"time"
)

// Config holds the robot configuration
type Config struct {
	// Controller is the hand-moved input device read during teleoperation.
	Controller ArmConfig    `json:"controller"`
	Follower   ArmConfig    `json:"follower"`
	Record     RecordConfig `json:"record"`
}

// ArmConfig holds configuration for a single arm
type ArmConfig struct {
	Port        string      `json:"port"`
	BaudRate    int         `json:"baud_rate,omitempty"`
	Calibration Calibration `json:"calibration,omitempty"`
}

// RecordConfig holds the defaults for recording sessions.
type RecordConfig struct {
	Env                   string    `json:"env"`
	Dataset               string    `json:"dataset"`
	TargetUpdateDeltaTime float64   `json:"target_update_delta_time"` // seconds
	CommandDeltaTime      float64   `json:"command_delta_time"`       // seconds
	Observations          []string  `json:"observations,omitempty"`
	ImageShape            []int     `json:"image_shape,omitempty"` // height, width, channels
	LinkLengths           []float64 `json:"link_lengths,omitempty"`
}

// DefaultRecordConfig returns the recording defaults used when the config
// file does not set them.
func DefaultRecordConfig() RecordConfig {
	return RecordConfig{
		Env:                   "reach-v0",
		Dataset:               "data/oracle*.rec",
		TargetUpdateDeltaTime: 0.1,
		CommandDeltaTime:      0.02,
		Observations:          []string{"position", "target"},
		LinkLengths:           []float64{0.12, 0.1},
	}
}

// WithDefaults fills unset fields from DefaultRecordConfig.
func (r RecordConfig) WithDefaults() RecordConfig {
	d := DefaultRecordConfig()
	if r.Env == "" {
		r.Env = d.Env
	}
	if r.Dataset == "" {
		r.Dataset = d.Dataset
	}
	if r.TargetUpdateDeltaTime <= 0 {
		r.TargetUpdateDeltaTime = d.TargetUpdateDeltaTime
	}
	if r.CommandDeltaTime <= 0 {
		r.CommandDeltaTime = d.CommandDeltaTime
	}
	if len(r.Observations) == 0 {
		r.Observations = d.Observations
	}
	if len(r.LinkLengths) != 2 {
		r.LinkLengths = d.LinkLengths
	}
	return r
}

// TargetUpdateDelta returns TargetUpdateDeltaTime as a duration.
func (r RecordConfig) TargetUpdateDelta() time.Duration {
	return time.Duration(r.TargetUpdateDeltaTime * float64(time.Second))
}

// CommandDelta returns CommandDeltaTime as a duration.
func (r RecordConfig) CommandDelta() time.Duration {
	return time.Duration(r.CommandDeltaTime * float64(time.Second))
}

// IsCalibrated returns true if the arm has calibration data
func (a *ArmConfig) IsCalibrated() bool {
	return len(a.Calibration) > 0
}

// LoadConfigFrom loads configuration from a specific file
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExistsAt returns true if the config file exists
func ConfigExistsAt(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
